// Package chaintest is an in-process chain for tests. It accepts real signed
// transactions, dispatches calldata through the academy ABIs to Go handlers,
// and only includes transactions when Mine is called.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/contract"
)

// View answers a read. from is msg.sender.
type View func(from common.Address, args []any) ([]any, error)

// Write is a state-changing method. Check decides whether it would revert
// and must not mutate; Apply mutates and runs only at inclusion.
type Write struct {
	Check func(from common.Address, args []any) error
	Apply func(from common.Address, args []any)
}

// Contract routes methods of one deployed contract.
type Contract struct {
	Kind   *contract.Kind
	Views  map[string]View
	Writes map[string]Write
}

// Revert builds the error a reverting handler returns.
func Revert(reason string) error { return &chain.RevertError{Reason: reason} }

type record struct {
	tx      *types.Transaction
	from    common.Address
	block   uint64
	status  uint64
	reason  string
	dropped bool
}

// Chain implements the node APIs used by the cache, submitter and watcher.
type Chain struct {
	mu        sync.Mutex
	chainID   *big.Int
	clk       clock.Clock
	head      uint64
	nonces    map[common.Address]uint64
	pending   []common.Hash
	txs       map[common.Hash]*record
	contracts map[common.Address]*Contract
	faults    map[string][]error
	counts    map[string]int
	onMine    []func(block uint64)
	subs      []chan uint64

	// AutoMine includes each transaction as soon as it is broadcast.
	AutoMine bool
}

// New creates an empty chain at block 1.
func New(chainID int64, clk clock.Clock) *Chain {
	if clk == nil {
		clk = clock.New()
	}
	return &Chain{
		chainID:   big.NewInt(chainID),
		clk:       clk,
		head:      1,
		nonces:    make(map[common.Address]uint64),
		txs:       make(map[common.Hash]*record),
		contracts: make(map[common.Address]*Contract),
		faults:    make(map[string][]error),
		counts:    make(map[string]int),
	}
}

// Install deploys handlers at addr.
func (c *Chain) Install(addr common.Address, ct *Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[addr] = ct
}

// OnMine registers a hook run under the chain lock after each block.
func (c *Chain) OnMine(fn func(block uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMine = append(c.onMine, fn)
}

// Locked runs fn under the chain lock, for test setup of handler state.
func (c *Chain) Locked(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Fail queues errors returned by the next calls of an RPC method, e.g.
// "eth_getTransactionReceipt".
func (c *Chain) Fail(method string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[method] = append(c.faults[method], errs...)
}

// Count reports how many times an RPC method was called.
func (c *Chain) Count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[method]
}

// Mine includes all pending transactions in a new block and returns its
// number.
func (c *Chain) Mine() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mineLocked()
}

// MineEmpty advances the head by n empty blocks.
func (c *Chain) MineEmpty(n int) {
	for i := 0; i < n; i++ {
		c.Mine()
	}
}

// Pending lists hashes awaiting inclusion.
func (c *Chain) Pending() []common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]common.Hash, 0, len(c.pending))
	for _, h := range c.pending {
		if !c.txs[h].dropped {
			out = append(out, h)
		}
	}
	return out
}

// Drop evicts a pending transaction so the node forgets it.
func (c *Chain) Drop(hash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.txs[hash]; ok && rec.block == 0 {
		rec.dropped = true
	}
}

// Heads emits the block number after each Mine.
func (c *Chain) Heads(ctx context.Context) <-chan uint64 {
	ch := make(chan uint64, 16)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch
}

func (c *Chain) mineLocked() uint64 {
	c.head++
	for _, h := range c.pending {
		rec := c.txs[h]
		if rec.dropped {
			continue
		}
		rec.block = c.head
		_, err := c.dispatch(chain.CallMsg{From: rec.from, To: *rec.tx.To(), Data: rec.tx.Data()}, true)
		if err != nil {
			rec.status = 0
			var rev *chain.RevertError
			if errors.As(err, &rev) {
				rec.reason = rev.Reason
			}
		} else {
			rec.status = 1
		}
	}
	c.pending = nil
	for _, fn := range c.onMine {
		fn(c.head)
	}
	for _, s := range c.subs {
		select {
		case s <- c.head:
		default:
		}
	}
	return c.head
}

func (c *Chain) enter(method string) error {
	c.counts[method]++
	q := c.faults[method]
	if len(q) == 0 {
		return nil
	}
	c.faults[method] = q[1:]
	return q[0]
}

func (c *Chain) dispatch(msg chain.CallMsg, commit bool) ([]byte, error) {
	ct, ok := c.contracts[msg.To]
	if !ok {
		return nil, nil
	}
	m, err := ct.Kind.MethodByID(msg.Data)
	if err != nil {
		return nil, Revert("")
	}
	args, err := m.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, Revert("")
	}
	if view, ok := ct.Views[m.Name]; ok {
		out, err := view(msg.From, args)
		if err != nil {
			return nil, err
		}
		return m.Outputs.Pack(out...)
	}
	if w, ok := ct.Writes[m.Name]; ok {
		if w.Check != nil {
			if err := w.Check(msg.From, args); err != nil {
				return nil, err
			}
		}
		if commit && w.Apply != nil {
			w.Apply(msg.From, args)
		}
		return nil, nil
	}
	return nil, Revert("")
}

// --- node API ---

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("eth_chainId"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("eth_blockNumber"); err != nil {
		return 0, err
	}
	return c.head, nil
}

func (c *Chain) PendingNonceAt(_ context.Context, addr common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("eth_getTransactionCount"); err != nil {
		return 0, err
	}
	return c.nonces[addr], nil
}

func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *Chain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(100_000_000), nil
}

func (c *Chain) EstimateGas(_ context.Context, msg chain.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("eth_estimateGas"); err != nil {
		return 0, err
	}
	if _, err := c.dispatch(msg, false); err != nil {
		return 0, err
	}
	return 50_000, nil
}

func (c *Chain) CallContract(_ context.Context, msg chain.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("eth_call"); err != nil {
		return nil, err
	}
	return c.dispatch(msg, false)
}

func (c *Chain) SendRawTransaction(_ context.Context, raw []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("eth_sendRawTransaction"); err != nil {
		return common.Hash{}, err
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, &chain.RPCError{Code: -32000, Message: "rlp: " + err.Error()}
	}
	if tx.ChainId().Cmp(c.chainID) != 0 {
		return common.Hash{}, &chain.RPCError{Code: -32000, Message: "invalid chain id for signer"}
	}
	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return common.Hash{}, &chain.RPCError{Code: -32000, Message: "invalid sender"}
	}
	switch next := c.nonces[from]; {
	case tx.Nonce() < next:
		return common.Hash{}, &chain.RPCError{Code: -32000, Message: "nonce too low"}
	case tx.Nonce() > next:
		return common.Hash{}, &chain.RPCError{Code: -32000, Message: "nonce too high"}
	}
	c.nonces[from]++

	c.txs[tx.Hash()] = &record{tx: tx, from: from}
	c.pending = append(c.pending, tx.Hash())
	if c.AutoMine {
		c.mineLocked()
	}
	return tx.Hash(), nil
}

func (c *Chain) TransactionReceipt(_ context.Context, hash common.Hash) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	rec, ok := c.txs[hash]
	if !ok || rec.dropped || rec.block == 0 {
		return nil, nil
	}
	return &chain.Receipt{Hash: hash, Status: rec.status, BlockNumber: rec.block, GasUsed: 50_000}, nil
}

func (c *Chain) TransactionByHash(_ context.Context, hash common.Hash) (*chain.TxInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("eth_getTransactionByHash"); err != nil {
		return nil, err
	}
	rec, ok := c.txs[hash]
	if !ok || rec.dropped {
		return nil, nil
	}
	info := &chain.TxInfo{
		Hash:  hash,
		From:  rec.from,
		To:    rec.tx.To(),
		Input: rec.tx.Data(),
		Value: rec.tx.Value(),
	}
	if rec.block != 0 {
		n := rec.block
		info.BlockNumber = &n
	}
	return info, nil
}

func (c *Chain) RevertReason(_ context.Context, hash common.Hash, _ uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.txs[hash]; ok {
		return rec.reason, nil
	}
	return "", nil
}

// Sends reports how many transactions were accepted.
func (c *Chain) Sends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.txs)
}
