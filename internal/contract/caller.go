package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/trustless-academy/academy/internal/chain"
)

var (
	// ErrUnknownMethod is returned when a method is not in the contract's ABI.
	ErrUnknownMethod = errors.New("method not in ABI")
	// ErrNotRead is returned when a state-changing method is used as a read.
	ErrNotRead = errors.New("not a read function")
	// ErrDecode wraps return data that does not match the ABI.
	ErrDecode = errors.New("malformed return data")
)

// Backend executes eth_call.
type Backend interface {
	CallContract(ctx context.Context, msg chain.CallMsg, block *big.Int) ([]byte, error)
}

// Caller performs read-only (view/pure) contract calls.
type Caller struct {
	backend Backend
}

// NewCaller creates a Caller over backend.
func NewCaller(backend Backend) *Caller {
	return &Caller{backend: backend}
}

// Read executes a view call at the latest block and decodes its outputs.
// Reverts come back as *chain.RevertError, undecodable output wraps ErrDecode.
func (c *Caller) Read(ctx context.Context, call Call) ([]any, error) {
	if !call.IsRead() {
		if call.Kind == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call)
		}
		if _, ok := call.Kind.Method(call.Method); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotRead, call)
	}
	data, err := call.Pack()
	if err != nil {
		return nil, err
	}
	raw, err := c.backend.CallContract(ctx, chain.CallMsg{From: call.From, To: call.To, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call %s: %w", call, err)
	}
	return call.Unpack(raw)
}

// Simulate runs a state-changing call from call.From through eth_call
// without broadcasting it. value may be nil.
func (c *Caller) Simulate(ctx context.Context, call Call, value *big.Int) error {
	data, err := call.Pack()
	if err != nil {
		return err
	}
	_, err = c.backend.CallContract(ctx, chain.CallMsg{From: call.From, To: call.To, Data: data, Value: value}, nil)
	return err
}

// Uint extracts a single uint256 output.
func Uint(out []any) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: want 1 output, got %d", ErrDecode, len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: want uint256, got %T", ErrDecode, out[0])
	}
	return n, nil
}

// Bool extracts a single bool output.
func Bool(out []any) (bool, error) {
	if len(out) != 1 {
		return false, fmt.Errorf("%w: want 1 output, got %d", ErrDecode, len(out))
	}
	b, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: want bool, got %T", ErrDecode, out[0])
	}
	return b, nil
}
