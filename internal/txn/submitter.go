// Package txn signs and broadcasts contract transactions and follows them
// until they confirm, fail or stall.
package txn

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/metrics"
	"github.com/trustless-academy/academy/internal/readcache"
)

// Signer signs a transaction for its account and returns the raw encoding.
// It returns ErrUserRejected when the owner declines.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) ([]byte, error)
}

// Backend is the node API used to build and broadcast transactions.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg chain.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg chain.CallMsg, block *big.Int) ([]byte, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}

// fallbackGas is used when estimation fails for a reason other than a revert.
const fallbackGas = 200_000

// Submitter broadcasts at most one transaction per action at a time and
// serialises access to the wallet.
type Submitter struct {
	backend Backend
	caller  *contract.Caller
	reads   *readcache.Cache
	clk     clock.Clock
	log     *zap.Logger
	metrics *metrics.Registry

	chainMu sync.Mutex
	chainID *big.Int

	walletMu sync.Mutex // one signing prompt and nonce at a time

	mu       sync.Mutex
	signer   Signer
	inflight map[string]*Handle
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithReadCache enables allowance pre-flight checks through the cache.
func WithReadCache(c *readcache.Cache) Option { return func(s *Submitter) { s.reads = c } }

func WithClock(clk clock.Clock) Option { return func(s *Submitter) { s.clk = clk } }

func WithLogger(log *zap.Logger) Option { return func(s *Submitter) { s.log = log } }

func WithMetrics(m *metrics.Registry) Option { return func(s *Submitter) { s.metrics = m } }

// WithChainID skips the eth_chainId lookup.
func WithChainID(id *big.Int) Option { return func(s *Submitter) { s.chainID = id } }

// NewSubmitter creates a submitter. signer may be nil until a wallet is
// selected.
func NewSubmitter(backend Backend, signer Signer, opts ...Option) *Submitter {
	s := &Submitter{
		backend:  backend,
		caller:   contract.NewCaller(backend),
		signer:   signer,
		clk:      clock.New(),
		log:      zap.NewNop(),
		inflight: make(map[string]*Handle),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetSigner switches the active account.
func (s *Submitter) SetSigner(signer Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signer = signer
}

// Account returns the active account address.
func (s *Submitter) Account() (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signer == nil {
		return common.Address{}, false
	}
	return s.signer.Address(), true
}

// InFlight returns the pending handle for action, if any.
func (s *Submitter) InFlight(action string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.inflight[action]
	if h == nil || h.Hash == (common.Hash{}) {
		return nil
	}
	return h
}

type submitConfig struct {
	allowance *allowanceRequirement
	value     *big.Int
}

type allowanceRequirement struct {
	token   contract.Token
	spender common.Address
	amount  *big.Int
}

// SubmitOption adjusts one submission.
type SubmitOption func(*submitConfig)

// RequireAllowance fails the submission before signing unless the account
// has approved at least amount of token for spender.
func RequireAllowance(token contract.Token, spender common.Address, amount *big.Int) SubmitOption {
	return func(c *submitConfig) {
		c.allowance = &allowanceRequirement{token: token, spender: spender, amount: amount}
	}
}

// WithValue attaches ether to the call.
func WithValue(v *big.Int) SubmitOption { return func(c *submitConfig) { c.value = v } }

// Submit runs pre-flight checks, asks the signer to sign and broadcasts the
// transaction exactly once. On any error nothing has been broadcast and the
// action slot is free again.
func (s *Submitter) Submit(ctx context.Context, action string, call contract.Call, opts ...SubmitOption) (*Handle, error) {
	cfg := submitConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	s.mu.Lock()
	signer := s.signer
	if signer == nil {
		s.mu.Unlock()
		return nil, ErrNoAccount
	}
	if _, busy := s.inflight[action]; busy {
		s.mu.Unlock()
		s.metrics.Submit(action, "in_flight")
		return nil, ErrInFlight
	}
	reservation := &Handle{Action: action, owner: s}
	s.inflight[action] = reservation
	s.mu.Unlock()

	h, err := s.submit(ctx, action, call, signer, cfg)
	if err != nil {
		s.release(action, common.Hash{})
		s.metrics.Submit(action, resultLabel(err))
		s.log.Debug("submission failed", zap.String("action", action), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.inflight[action] = h
	s.mu.Unlock()
	s.metrics.Submit(action, "broadcast")
	s.log.Info("transaction broadcast",
		zap.String("action", action),
		zap.String("call", call.String()),
		zap.Stringer("hash", h.Hash),
		zap.Uint64("nonce", h.Nonce))
	return h, nil
}

func (s *Submitter) submit(ctx context.Context, action string, call contract.Call, signer Signer, cfg submitConfig) (*Handle, error) {
	if !call.Valid() || call.IsRead() {
		return nil, fmt.Errorf("%w: %s is not a transaction", ErrBadArguments, call)
	}
	from := signer.Address()
	call.From = from
	data, err := call.Pack()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}

	if req := cfg.allowance; req != nil {
		if err := s.checkAllowance(ctx, from, req); err != nil {
			return nil, err
		}
	}

	if err := s.caller.Simulate(ctx, call, cfg.value); err != nil {
		return nil, preflightError(err)
	}

	msg := chain.CallMsg{From: from, To: call.To, Data: data, Value: cfg.value}

	gas, err := s.backend.EstimateGas(ctx, msg)
	if err != nil {
		var rev *chain.RevertError
		if errors.As(err, &rev) {
			return nil, &RevertedError{Reason: rev.Reason}
		}
		gas = fallbackGas
	} else {
		gas = gas * 120 / 100
	}

	chainID, err := s.chainIDFor(ctx)
	if err != nil {
		return nil, newSubmissionError(err)
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, newSubmissionError(err)
	}
	tip, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, newSubmissionError(err)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(gasPrice, big.NewInt(2)), tip)

	value := cfg.value
	if value == nil {
		value = new(big.Int)
	}

	s.walletMu.Lock()
	defer s.walletMu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, newSubmissionError(err)
	}

	to := call.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	raw, err := signer.SignTx(ctx, tx, chainID)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return nil, ErrUserRejected
		}
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	hash, err := s.backend.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, newSubmissionError(err)
	}

	return &Handle{
		Action:      action,
		Hash:        hash,
		Nonce:       nonce,
		Call:        call,
		SubmittedAt: s.clk.Now(),
		owner:       s,
	}, nil
}

func (s *Submitter) checkAllowance(ctx context.Context, owner common.Address, req *allowanceRequirement) error {
	if s.reads == nil {
		return fmt.Errorf("allowance check requires a read cache")
	}
	val, err := s.reads.Refetch(ctx, req.token.Allowance(owner, req.spender))
	if err != nil {
		return err
	}
	have := val.Uint()
	if have == nil {
		have = new(big.Int)
	}
	if have.Cmp(req.amount) < 0 {
		return &InsufficientAllowanceError{
			Token:   req.token.Address,
			Spender: req.spender,
			Have:    have,
			Need:    req.amount,
		}
	}
	return nil
}

func (s *Submitter) chainIDFor(ctx context.Context) (*big.Int, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	if s.chainID != nil {
		return s.chainID, nil
	}
	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	s.chainID = id
	return id, nil
}

func (s *Submitter) release(action string, hash common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.inflight[action]; ok && h.Hash == hash {
		delete(s.inflight, action)
	}
}

func preflightError(err error) error {
	var rev *chain.RevertError
	if errors.As(err, &rev) {
		return &RevertedError{Reason: rev.Reason}
	}
	return newSubmissionError(err)
}

func resultLabel(err error) string {
	var (
		rev   *RevertedError
		sub   *SubmissionError
		allow *InsufficientAllowanceError
	)
	switch {
	case errors.Is(err, ErrUserRejected):
		return "rejected"
	case errors.As(err, &rev):
		return "reverted"
	case errors.As(err, &allow):
		return "allowance"
	case errors.As(err, &sub):
		return "refused_" + string(sub.Reason)
	default:
		return "error"
	}
}
