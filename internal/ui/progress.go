package ui

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/trustless-academy/academy/internal/countdown"
	"github.com/trustless-academy/academy/internal/txn"
	"github.com/trustless-academy/academy/internal/workflow"
)

// Progress prints one line per meaningful workflow transition. Repeated
// watcher polls that change nothing are not printed.
type Progress struct {
	Out   io.Writer
	Flow  *workflow.Workflow
	Label string

	mu   sync.Mutex
	last string
}

// Attach registers the printer on its workflow.
func (p *Progress) Attach() { p.Flow.OnTransition(p.Print) }

// Print renders one transition.
func (p *Progress) Print(tr workflow.Transition) {
	line := p.line(tr)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.Out, line)
}

func (p *Progress) line(tr workflow.Transition) string {
	if tr.Update != nil {
		return updateLine(*tr.Update)
	}
	switch tr.To {
	case workflow.Checking:
		return Info("checking " + p.Label + "…")
	case workflow.Eligible:
		return Success(p.Label + " is available")
	case workflow.OnCooldown:
		left := p.Flow.Eligibility().Remaining(tr.At)
		return Warn(fmt.Sprintf("%s on cooldown, next claim in %s", p.Label, countdown.Format(left)))
	case workflow.Blocked:
		return Warn(p.Label + " unavailable: " + p.Flow.Eligibility().Reason)
	case workflow.Submitting:
		return Info("waiting for signature…")
	case workflow.Confirming:
		if h := p.Flow.Handle(); h != nil {
			return Info("sent " + Addr(h.Hash.Hex()))
		}
	case workflow.Success:
		if u := p.Flow.LastUpdate(); u.Receipt != nil {
			return Success(fmt.Sprintf("%s confirmed in block %d", p.Label, u.Receipt.BlockNumber))
		}
		return Success(p.Label + " confirmed")
	case workflow.Failed:
		return Err(workflow.Describe(tr.Err))
	case workflow.Idle:
		if tr.Err != nil && tr.From == workflow.Checking {
			return Err(workflow.Describe(tr.Err))
		}
	}
	return ""
}

func updateLine(u txn.Update) string {
	var we *txn.WatchError
	switch {
	case errors.Is(u.Err, txn.ErrStalled):
		return Warn(workflow.Describe(u.Err))
	case errors.As(u.Err, &we):
		return Warn("node unreachable, still watching")
	case u.Status == txn.Pending:
		return Meta("  pending…")
	case u.Status == txn.Confirming:
		return Meta(fmt.Sprintf("  mined in block %d, %d confirmation(s)", u.Block, u.Confirmations))
	}
	return ""
}
