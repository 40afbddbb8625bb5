package readcache

import (
	"errors"
	"fmt"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/contract"
)

// ErrInvalidQuery is returned for reads without a contract address or method,
// or for methods that are not views.
var ErrInvalidQuery = errors.New("invalid query")

// Kind classifies a failed read.
type Kind int

const (
	Unreachable Kind = iota // network or node failure
	Reverted                // the view reverted
	Malformed               // return data did not match the ABI
)

func (k Kind) String() string {
	switch k {
	case Reverted:
		return "reverted"
	case Malformed:
		return "malformed"
	default:
		return "unreachable"
	}
}

// ReadError wraps a failed contract read.
type ReadError struct {
	Kind Kind
	Call string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %s: %v", e.Call, e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func classify(call contract.Call, err error) *ReadError {
	var rev *chain.RevertError
	kind := Unreachable
	switch {
	case errors.As(err, &rev):
		kind = Reverted
	case errors.Is(err, contract.ErrDecode):
		kind = Malformed
	}
	return &ReadError{Kind: kind, Call: call.String(), Err: err}
}
