package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Kind describes one academy contract whose ABI is embedded in the binary.
// Each contract has exactly one authoritative ABI, registered from a package
// variable in its own file.
type Kind struct {
	ID          string // machine key, e.g. "kitchen-token"
	Name        string // contract name, e.g. "KitchenToken"
	Description string
	ABI         abi.ABI
}

var registry = map[string]*Kind{}

// Register parses abiJSON and adds the kind to the registry. It panics on a
// malformed ABI or a duplicate ID since both are programming errors.
func Register(id, name, description, abiJSON string) *Kind {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("contract %s: parsing ABI: %v", name, err))
	}
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("contract %s registered twice", id))
	}
	k := &Kind{ID: id, Name: name, Description: description, ABI: parsed}
	registry[id] = k
	return k
}

// Get returns a registered kind by ID.
func Get(id string) (*Kind, bool) {
	k, ok := registry[id]
	return k, ok
}

// All returns all registered kinds sorted by ID.
func All() []*Kind {
	out := make([]*Kind, 0, len(registry))
	for _, k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Method returns the ABI method by name.
func (k *Kind) Method(name string) (abi.Method, bool) {
	m, ok := k.ABI.Methods[name]
	return m, ok
}

// IsRead reports whether the method is view or pure.
func (k *Kind) IsRead(name string) bool {
	m, ok := k.Method(name)
	return ok && m.IsConstant()
}

// MethodByID resolves a 4-byte selector back to a method.
func (k *Kind) MethodByID(data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short for a selector")
	}
	return k.ABI.MethodById(data[:4])
}
