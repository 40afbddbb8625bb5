package txn

import (
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trustless-academy/academy/internal/contract"
)

// Handle tracks one broadcast transaction. It holds its action's slot in
// the submitter until released.
type Handle struct {
	Action      string
	Hash        common.Hash
	Nonce       uint64
	Call        contract.Call
	SubmittedAt time.Time

	owner   *Submitter
	watched atomic.Bool
}

// Release frees the action slot so the action can be submitted again. The
// transaction itself is unaffected.
func (h *Handle) Release() {
	if h.owner != nil {
		h.owner.release(h.Action, h.Hash)
	}
}

// Rewatch returns a fresh handle for the same transaction so it can be
// watched again after a stall.
func (h *Handle) Rewatch() *Handle {
	return &Handle{
		Action:      h.Action,
		Hash:        h.Hash,
		Nonce:       h.Nonce,
		Call:        h.Call,
		SubmittedAt: h.SubmittedAt,
		owner:       h.owner,
	}
}

func (h *Handle) claimWatch() bool { return h.watched.CompareAndSwap(false, true) }
