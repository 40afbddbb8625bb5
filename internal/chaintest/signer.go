package chaintest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Well-known local development keys (hardhat/anvil accounts #0 and #1).
const (
	AliceKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	BobKey   = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

// Signer signs with a fixed key. Setting Reject makes SignTx return
// RejectErr without signing, as a wallet owner declining would.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address

	mu        sync.Mutex
	reject    error
	signed    int
	beforeSig func()
}

// NewSigner panics on a malformed key.
func NewSigner(hexKey string) *Signer {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		panic(err)
	}
	return &Signer{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *Signer) Address() common.Address { return s.addr }

// Reject makes every following SignTx fail with err; nil restores signing.
func (s *Signer) Reject(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = err
}

// BeforeSign runs fn at the start of every SignTx, e.g. to block on a
// channel while a test probes concurrent behaviour.
func (s *Signer) BeforeSign(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeSig = fn
}

// Signed counts successful signatures.
func (s *Signer) Signed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signed
}

func (s *Signer) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	s.mu.Lock()
	hook, reject := s.beforeSig, s.reject
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reject != nil {
		return nil, reject
	}
	if chainID == nil {
		return nil, errors.New("chain id required")
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.signed++
	s.mu.Unlock()
	return signed.MarshalBinary()
}
