package txn

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trustless-academy/academy/internal/chain"
)

var (
	// ErrUserRejected is returned when the wallet owner declines to sign.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrStalled means the watcher gave up polling without a terminal
	// receipt. The transaction may still confirm.
	ErrStalled = errors.New("confirmation is taking longer than expected")
	// ErrDropped means the node no longer knows the transaction.
	ErrDropped = errors.New("transaction dropped from the mempool")
	// ErrInFlight is returned when the action already has a pending
	// transaction.
	ErrInFlight = errors.New("transaction already in flight")
	// ErrNoAccount is returned when no signing wallet is selected.
	ErrNoAccount = errors.New("no wallet connected")
	// ErrBadArguments wraps calldata that cannot be packed.
	ErrBadArguments = errors.New("bad arguments")
	// ErrAlreadyWatched is returned when a handle is watched twice.
	ErrAlreadyWatched = errors.New("handle already watched")
)

// Reason classifies a node's refusal to accept a transaction.
type Reason string

const (
	ReasonNonce       Reason = "nonce"
	ReasonFunds       Reason = "funds"
	ReasonUnderpriced Reason = "underpriced"
	ReasonGas         Reason = "gas"
	ReasonOther       Reason = "other"
)

// SubmissionError is a broadcast the node refused. Message is the node's
// text, shown to the user verbatim.
type SubmissionError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed (%s): %s", e.Reason, e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func newSubmissionError(err error) *SubmissionError {
	msg := err.Error()
	var rpcErr *chain.RPCError
	if errors.As(err, &rpcErr) {
		msg = rpcErr.Message
	}
	return &SubmissionError{Reason: classifyMessage(msg), Message: msg, Err: err}
}

func classifyMessage(msg string) Reason {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "insufficient funds"):
		return ReasonFunds
	case strings.Contains(m, "underpriced"),
		strings.Contains(m, "less than block base fee"),
		strings.Contains(m, "fee cap"):
		return ReasonUnderpriced
	case strings.Contains(m, "nonce"):
		return ReasonNonce
	case strings.Contains(m, "gas"):
		return ReasonGas
	default:
		return ReasonOther
	}
}

// RevertedError is a transaction that reverted, either in pre-flight
// simulation (Hash is zero) or on chain.
type RevertedError struct {
	Reason string
	Hash   common.Hash
}

func (e *RevertedError) Error() string {
	if e.Reason == "" {
		return "transaction reverted"
	}
	return "transaction reverted: " + e.Reason
}

// Simulated reports whether the revert was caught before broadcast.
func (e *RevertedError) Simulated() bool { return e.Hash == (common.Hash{}) }

// WatchError is a non-terminal RPC failure while polling for a receipt.
type WatchError struct{ Err error }

func (e *WatchError) Error() string { return "checking transaction status: " + e.Err.Error() }

func (e *WatchError) Unwrap() error { return e.Err }

// InsufficientAllowanceError is a pre-flight failure: the spender may not
// move enough of the owner's tokens.
type InsufficientAllowanceError struct {
	Token   common.Address
	Spender common.Address
	Have    *big.Int
	Need    *big.Int
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("allowance too low: %s approved for %s, need %s",
		chain.FormatEther(e.Have), e.Spender.Hex(), chain.FormatEther(e.Need))
}
