package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Call identifies one contract function invocation: which contract, at which
// address, on behalf of which account, with which arguments.
type Call struct {
	Kind   *Kind
	To     common.Address
	From   common.Address
	Method string
	Args   []any
}

// Key is the cache identity of a read: target, caller, method and arguments.
// From is part of the key because some views depend on msg.sender.
func (c Call) Key() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(c.To.Hex()))
	b.WriteByte(':')
	b.WriteString(c.Method)
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatArg(a))
	}
	b.WriteByte(')')
	if c.From != (common.Address{}) {
		b.WriteString("@")
		b.WriteString(strings.ToLower(c.From.Hex()))
	}
	return b.String()
}

// String renders the call for logs, e.g. "KitchenToken.faucet()".
func (c Call) String() string {
	name := "?"
	if c.Kind != nil {
		name = c.Kind.Name
	}
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = formatArg(a)
	}
	return fmt.Sprintf("%s.%s(%s)", name, c.Method, strings.Join(args, ", "))
}

// Valid reports whether the call names a target and a method.
func (c Call) Valid() bool {
	return c.Kind != nil && c.To != (common.Address{}) && c.Method != ""
}

// IsRead reports whether the call targets a view or pure function.
func (c Call) IsRead() bool {
	return c.Kind != nil && c.Kind.IsRead(c.Method)
}

// Pack ABI-encodes the call into calldata.
func (c Call) Pack() ([]byte, error) {
	if c.Kind == nil {
		return nil, fmt.Errorf("call %s has no contract", c.Method)
	}
	if _, ok := c.Kind.Method(c.Method); !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, c.Kind.Name, c.Method)
	}
	data, err := c.Kind.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", c, err)
	}
	return data, nil
}

// Unpack decodes return data of the call's method.
func (c Call) Unpack(data []byte) ([]any, error) {
	out, err := c.Kind.ABI.Unpack(c.Method, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, c, err)
	}
	return out, nil
}

func formatArg(a any) string {
	switch v := a.(type) {
	case common.Address:
		return strings.ToLower(v.Hex())
	case *big.Int:
		if v == nil {
			return "nil"
		}
		return v.String()
	case []*big.Int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = formatArg(n)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
