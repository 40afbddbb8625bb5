package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/txn"
)

// Summary is what the owner sees before approving a signature.
type Summary struct {
	From     common.Address
	To       common.Address
	Contract string
	Method   string
	Args     []any
	Nonce    uint64
	Gas      uint64
	MaxFee   *big.Int // gas × fee cap, in wei
	ChainID  *big.Int
}

func (s Summary) String() string {
	return fmt.Sprintf("%s.%s on %s (nonce %d, max fee %s ETH)",
		s.Contract, s.Method, s.To.Hex(), s.Nonce, chain.FormatEther(s.MaxFee))
}

// ConfirmFunc asks the owner to approve a signature.
type ConfirmFunc func(ctx context.Context, s Summary) (bool, error)

// PromptSigner asks for confirmation before delegating to Inner. A declined
// prompt returns txn.ErrUserRejected.
type PromptSigner struct {
	Inner   txn.Signer
	Confirm ConfirmFunc
	Known   map[common.Address]*contract.Kind // deployed addresses, for naming the target
}

func (p *PromptSigner) Address() common.Address { return p.Inner.Address() }

func (p *PromptSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	if p.Confirm != nil {
		ok, err := p.Confirm(ctx, Describe(p.Inner.Address(), tx, chainID, p.Known))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, txn.ErrUserRejected
		}
	}
	return p.Inner.SignTx(ctx, tx, chainID)
}

// Describe decodes tx against the ABI of the contract deployed at its target,
// or against every academy ABI when the target is not in known.
func Describe(from common.Address, tx *types.Transaction, chainID *big.Int, known map[common.Address]*contract.Kind) Summary {
	s := Summary{
		From:    from,
		Nonce:   tx.Nonce(),
		Gas:     tx.Gas(),
		MaxFee:  new(big.Int).Mul(tx.GasFeeCap(), new(big.Int).SetUint64(tx.Gas())),
		ChainID: chainID,
		Method:  "unknown",
	}
	if tx.To() != nil {
		s.To = *tx.To()
	}
	data := tx.Data()
	kinds := contract.All()
	if k, ok := known[s.To]; ok {
		kinds = []*contract.Kind{k}
	}
	for _, k := range kinds {
		m, err := k.MethodByID(data)
		if err != nil {
			continue
		}
		s.Contract = k.Name
		s.Method = m.Name
		if args, err := m.Inputs.Unpack(data[4:]); err == nil {
			s.Args = args
		}
		break
	}
	return s
}
