// Package workflow drives one user action through check, submit and
// confirm: Idle, Checking, then Eligible, OnCooldown or Blocked; from
// Eligible through Submitting and Confirming to Success or Failed, and back
// to Idle.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/countdown"
	"github.com/trustless-academy/academy/internal/metrics"
	"github.com/trustless-academy/academy/internal/readcache"
	"github.com/trustless-academy/academy/internal/txn"
)

var (
	// ErrNotEligible is returned by Submit outside Eligible.
	ErrNotEligible = errors.New("action is not eligible")
	// ErrBusy is returned while a check or transaction is in progress.
	ErrBusy = errors.New("action is busy")
	// ErrAbandoned is returned to a caller whose check or watch was
	// overtaken by Abandon.
	ErrAbandoned = errors.New("workflow abandoned")
)

// Action describes the transaction a workflow submits.
type Action struct {
	Name  string
	Call  func(account common.Address) contract.Call
	Check Checker
	// Affects lists the reads a confirmed transaction changes. They are
	// invalidated and refetched before the workflow returns to Idle.
	Affects func(account common.Address) []contract.Call
	// Options adds per-submission options such as RequireAllowance.
	Options func(account common.Address) []txn.SubmitOption
}

// Workflow is safe for concurrent use. Observers are called in transition
// order and must not call back into Check, Submit or Abandon.
type Workflow struct {
	action  Action
	sub     *txn.Submitter
	watcher *txn.Watcher
	reads   *readcache.Cache
	clk     clock.Clock
	log     *zap.Logger
	metrics *metrics.Registry

	notifyMu sync.Mutex

	mu        sync.Mutex
	state     State
	elig      Eligibility
	timer     *countdown.Timer
	handle    *txn.Handle
	lastErr   error
	last      txn.Update
	observers []func(Transition)
	queue     []Transition
	epoch     uint64
}

// Option configures a Workflow.
type Option func(*Workflow)

func WithClock(clk clock.Clock) Option { return func(w *Workflow) { w.clk = clk } }

func WithLogger(log *zap.Logger) Option { return func(w *Workflow) { w.log = log } }

func WithMetrics(m *metrics.Registry) Option { return func(w *Workflow) { w.metrics = m } }

// New creates a workflow in Idle.
func New(action Action, sub *txn.Submitter, watcher *txn.Watcher, reads *readcache.Cache, opts ...Option) *Workflow {
	if action.Check == nil {
		action.Check = Always
	}
	w := &Workflow{
		action:  action,
		sub:     sub,
		watcher: watcher,
		reads:   reads,
		clk:     clock.New(),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	w.log = w.log.With(zap.String("workflow", action.Name))
	return w
}

// Name is the action name.
func (w *Workflow) Name() string { return w.action.Name }

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Eligibility returns the result of the last check.
func (w *Workflow) Eligibility() Eligibility {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elig
}

// Timer returns the cooldown countdown while OnCooldown, else nil.
func (w *Workflow) Timer() *countdown.Timer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer
}

// Handle returns the transaction being confirmed, if any.
func (w *Workflow) Handle() *txn.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handle
}

// LastError is the error of the most recent failed check or transaction.
func (w *Workflow) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// LastUpdate is the most recent observation of the watched transaction.
func (w *Workflow) LastUpdate() txn.Update {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// OnTransition registers an observer.
func (w *Workflow) OnTransition(fn func(Transition)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, fn)
}

// moveLocked changes state and queues the transition for unlock.
func (w *Workflow) moveLocked(to State, err error) {
	from := w.state
	w.state = to
	w.queue = append(w.queue, Transition{Workflow: w.action.Name, From: from, To: to, Err: err, At: w.clk.Now()})
	w.metrics.State(w.action.Name, from.String(), to.String())
	w.log.Debug("transition", zap.Stringer("from", from), zap.Stringer("to", to), zap.Error(err))
}

func (w *Workflow) progressLocked(u txn.Update) {
	w.last = u
	w.queue = append(w.queue, Transition{Workflow: w.action.Name, From: w.state, To: w.state, Update: &u, Err: u.Err, At: w.clk.Now()})
}

// unlock releases mu and delivers queued transitions in order.
func (w *Workflow) unlock() {
	queue, observers := w.queue, w.observers
	w.queue = nil
	w.notifyMu.Lock()
	w.mu.Unlock()
	defer w.notifyMu.Unlock()
	for _, tr := range queue {
		for _, fn := range observers {
			fn(tr)
		}
	}
}

func (w *Workflow) stopTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Check asks the chain whether the action may run and moves to Eligible,
// OnCooldown or Blocked. A read failure returns to Idle with the error.
func (w *Workflow) Check(ctx context.Context) (Eligibility, error) {
	w.mu.Lock()
	if w.state.Busy() || w.state == Checking {
		w.unlock()
		return Eligibility{}, ErrBusy
	}
	account, ok := w.sub.Account()
	if !ok {
		w.lastErr = txn.ErrNoAccount
		w.unlock()
		return Eligibility{}, txn.ErrNoAccount
	}
	w.stopTimerLocked()
	w.moveLocked(Checking, nil)
	epoch := w.epoch
	w.unlock()

	elig, err := w.action.Check(ctx, w.reads, account)

	w.mu.Lock()
	defer w.unlock()
	if w.epoch != epoch || w.state != Checking {
		return elig, ErrAbandoned
	}
	if err != nil {
		w.lastErr = err
		w.moveLocked(Idle, err)
		return Eligibility{}, err
	}
	w.elig = elig
	switch {
	case elig.Eligible:
		w.moveLocked(Eligible, nil)
	case elig.OnCooldown():
		w.timer = countdown.New(w.clk, elig.Cooldown)
		w.timer.Start(elig.LastClaim)
		w.moveLocked(OnCooldown, nil)
	default:
		w.moveLocked(Blocked, nil)
	}
	return elig, nil
}

// WaitEligible checks and, while on cooldown, waits for the countdown to
// reach zero and checks again. It returns once Eligible, or with an
// ErrNotEligible error when Blocked.
func (w *Workflow) WaitEligible(ctx context.Context) (Eligibility, error) {
	for {
		w.mu.Lock()
		state, timer, elig := w.state, w.timer, w.elig
		w.mu.Unlock()

		switch state {
		case Eligible:
			return elig, nil
		case Blocked:
			return elig, fmt.Errorf("%w: %s", ErrNotEligible, elig.Reason)
		case OnCooldown:
			select {
			case <-timer.Done():
			case <-ctx.Done():
				return elig, ctx.Err()
			}
		case Submitting, Confirming, Checking:
			return elig, ErrBusy
		}
		if _, err := w.Check(ctx); err != nil {
			return Eligibility{}, err
		}
	}
}

// Submit broadcasts the action and follows it to a terminal state. It
// returns the handle once broadcast even when confirmation then fails.
// On Success the affected reads are refetched before returning to Idle.
func (w *Workflow) Submit(ctx context.Context) (*txn.Handle, error) {
	w.mu.Lock()
	switch {
	case w.state.Busy() || w.state == Checking:
		w.unlock()
		return nil, ErrBusy
	case w.state != Eligible:
		w.unlock()
		return nil, ErrNotEligible
	}
	account, ok := w.sub.Account()
	if !ok {
		w.unlock()
		return nil, txn.ErrNoAccount
	}
	w.lastErr = nil
	w.last = txn.Update{}
	w.moveLocked(Submitting, nil)
	epoch := w.epoch
	w.unlock()

	var opts []txn.SubmitOption
	if w.action.Options != nil {
		opts = w.action.Options(account)
	}
	h, err := w.sub.Submit(ctx, w.action.Name, w.action.Call(account), opts...)
	if err != nil {
		w.mu.Lock()
		if w.epoch == epoch {
			w.failLocked(err)
		}
		w.unlock()
		return nil, err
	}

	w.mu.Lock()
	if w.epoch != epoch {
		w.unlock()
		h.Release()
		return h, ErrAbandoned
	}
	w.handle = h
	w.moveLocked(Confirming, nil)
	w.unlock()

	return h, w.follow(ctx, h, account, epoch)
}

// KeepWaiting resumes watching a transaction whose confirmation stalled or
// whose watch was cancelled.
func (w *Workflow) KeepWaiting(ctx context.Context) error {
	w.mu.Lock()
	if w.state != Confirming || w.handle == nil {
		w.unlock()
		return fmt.Errorf("%w: nothing to wait for", ErrNotEligible)
	}
	h := w.handle.Rewatch()
	w.handle = h
	epoch := w.epoch
	w.unlock()

	account := h.Call.From
	return w.follow(ctx, h, account, epoch)
}

// Abandon stops following the current transaction, frees its action slot
// and returns to Idle. A broadcast transaction is not affected and may
// still confirm.
func (w *Workflow) Abandon() {
	w.mu.Lock()
	defer w.unlock()
	w.epoch++
	w.stopTimerLocked()
	if w.handle != nil {
		w.handle.Release()
		w.handle = nil
	}
	if w.state != Idle {
		w.moveLocked(Idle, nil)
	}
}

func (w *Workflow) follow(ctx context.Context, h *txn.Handle, account common.Address, epoch uint64) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates, err := w.watcher.Watch(wctx, h)
	if err != nil {
		return err
	}

	var final txn.Update
	var terminal bool
	for u := range updates {
		w.mu.Lock()
		if w.epoch != epoch {
			w.unlock()
			return ErrAbandoned
		}
		w.progressLocked(u)
		w.unlock()
		if u.Terminal() {
			final, terminal = u, true
		}
	}
	if !terminal {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrAbandoned
	}

	switch {
	case final.Status == txn.Confirmed:
		w.refresh(ctx, account)
		w.mu.Lock()
		defer w.unlock()
		if w.epoch != epoch {
			return ErrAbandoned
		}
		h.Release()
		w.handle = nil
		w.moveLocked(Success, nil)
		w.moveLocked(Idle, nil)
		return nil
	case errors.Is(final.Err, txn.ErrStalled):
		w.mu.Lock()
		w.lastErr = txn.ErrStalled
		w.unlock()
		return txn.ErrStalled
	default:
		w.mu.Lock()
		defer w.unlock()
		if w.epoch != epoch {
			return ErrAbandoned
		}
		h.Release()
		w.handle = nil
		w.failLocked(final.Err)
		return final.Err
	}
}

// failLocked records err and passes through Failed back to Idle.
func (w *Workflow) failLocked(err error) {
	w.lastErr = err
	w.moveLocked(Failed, err)
	w.moveLocked(Idle, nil)
}

// refresh invalidates and refetches the action's affected reads.
func (w *Workflow) refresh(ctx context.Context, account common.Address) {
	if w.action.Affects == nil || w.reads == nil {
		return
	}
	calls := w.action.Affects(account)
	w.reads.Invalidate(calls...)
	for _, c := range calls {
		if _, err := w.reads.Refetch(ctx, c); err != nil {
			w.log.Warn("refresh after confirmation failed", zap.String("call", c.String()), zap.Error(err))
		}
	}
}
