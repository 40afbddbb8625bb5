package txn

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/metrics"
)

// Status is the lifecycle stage of a broadcast transaction.
type Status int

const (
	Pending    Status = iota // broadcast, no receipt yet
	Confirming               // mined, waiting for confirmations
	Confirmed
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirming:
		return "confirming"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Update is one observation of a watched transaction.
type Update struct {
	Status        Status
	Hash          common.Hash
	Block         uint64
	Confirmations uint64
	Attempt       int
	Receipt       *chain.Receipt
	Err           error // *WatchError (transient), ErrStalled, ErrDropped or *RevertedError
}

// Terminal reports whether this is the last update of the sequence.
func (u Update) Terminal() bool {
	return u.Status == Confirmed || u.Status == Failed || u.Err == ErrStalled
}

// WatchBackend is the node API used to follow a transaction.
type WatchBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*chain.TxInfo, error)
	RevertReason(ctx context.Context, hash common.Hash, block uint64) (string, error)
}

// Watcher polls for receipts on a jittered interval.
type Watcher struct {
	backend       WatchBackend
	clk           clock.Clock
	log           *zap.Logger
	metrics       *metrics.Registry
	interval      time.Duration
	jitter        time.Duration
	maxAttempts   int
	confirmations uint64
	dropTimeout   time.Duration
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

func WatchClock(clk clock.Clock) WatchOption { return func(w *Watcher) { w.clk = clk } }

func WatchLogger(log *zap.Logger) WatchOption { return func(w *Watcher) { w.log = log } }

func WatchMetrics(m *metrics.Registry) WatchOption { return func(w *Watcher) { w.metrics = m } }

// PollEvery sets the base poll interval and its random spread.
func PollEvery(interval, jitter time.Duration) WatchOption {
	return func(w *Watcher) { w.interval, w.jitter = interval, jitter }
}

// MaxAttempts bounds the number of receipt polls before ErrStalled.
func MaxAttempts(n int) WatchOption { return func(w *Watcher) { w.maxAttempts = n } }

// Confirmations is the number of blocks, counting the inclusion block,
// required before Confirmed.
func Confirmations(n uint64) WatchOption { return func(w *Watcher) { w.confirmations = n } }

// DropTimeout is how long a hash may be unknown to the node before the
// transaction is reported dropped.
func DropTimeout(d time.Duration) WatchOption { return func(w *Watcher) { w.dropTimeout = d } }

// NewWatcher creates a watcher polling every 4s±1s, up to 90 attempts.
func NewWatcher(backend WatchBackend, opts ...WatchOption) *Watcher {
	w := &Watcher{
		backend:       backend,
		clk:           clock.New(),
		log:           zap.NewNop(),
		interval:      4 * time.Second,
		jitter:        time.Second,
		maxAttempts:   90,
		confirmations: 1,
		dropTimeout:   2 * time.Minute,
	}
	for _, o := range opts {
		o(w)
	}
	if w.confirmations == 0 {
		w.confirmations = 1
	}
	return w
}

// Watch follows h until it confirms, fails or stalls. The channel is closed
// after the terminal update, or silently when ctx ends. Cancelling ctx never
// touches the transaction itself.
func (w *Watcher) Watch(ctx context.Context, h *Handle) (<-chan Update, error) {
	if !h.claimWatch() {
		return nil, ErrAlreadyWatched
	}
	out := make(chan Update, 4)
	go w.run(ctx, h, out)
	return out, nil
}

func (w *Watcher) run(ctx context.Context, h *Handle, out chan<- Update) {
	defer close(out)
	log := w.log.With(zap.String("action", h.Action), zap.Stringer("hash", h.Hash))

	emit := func(u Update) bool {
		u.Hash = h.Hash
		select {
		case out <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Update{Status: Pending}) {
		return
	}

	last := Update{Status: Pending}
	var unknownSince time.Time

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-w.clk.After(chain.Jittered(w.interval, w.jitter)):
			case <-ctx.Done():
				return
			}
		}

		u, done := w.poll(ctx, h, &unknownSince)
		if ctx.Err() != nil {
			return
		}
		u.Attempt = attempt
		var werr *WatchError
		if errors.As(u.Err, &werr) {
			w.metrics.WatchError()
			log.Debug("receipt poll failed", zap.Int("attempt", attempt), zap.Error(u.Err))
			u.Status = last.Status
			u.Block, u.Confirmations = last.Block, last.Confirmations
			if !emit(u) {
				return
			}
			continue
		}

		if done {
			w.finish(h, u, log)
			emit(u)
			return
		}
		if u.Status != last.Status || u.Confirmations != last.Confirmations {
			if !emit(u) {
				return
			}
		}
		last = u
	}

	w.metrics.Stall()
	log.Warn("confirmation stalled", zap.Int("attempts", w.maxAttempts))
	last.Err = ErrStalled
	last.Attempt = w.maxAttempts
	emit(last)
}

// poll makes one observation. done is true for terminal outcomes.
func (w *Watcher) poll(ctx context.Context, h *Handle, unknownSince *time.Time) (Update, bool) {
	receipt, err := w.backend.TransactionReceipt(ctx, h.Hash)
	if err != nil {
		return Update{Err: &WatchError{Err: err}}, false
	}

	if receipt == nil {
		tx, err := w.backend.TransactionByHash(ctx, h.Hash)
		if err != nil {
			return Update{Err: &WatchError{Err: err}}, false
		}
		if tx != nil {
			*unknownSince = time.Time{}
			return Update{Status: Pending}, false
		}
		now := w.clk.Now()
		if unknownSince.IsZero() {
			*unknownSince = now
		}
		if now.Sub(*unknownSince) >= w.dropTimeout {
			return Update{Status: Failed, Err: ErrDropped}, true
		}
		return Update{Status: Pending}, false
	}

	if receipt.Status == 0 {
		reason, err := w.backend.RevertReason(ctx, h.Hash, receipt.BlockNumber)
		if err != nil {
			w.log.Debug("revert reason unavailable", zap.Error(err))
		}
		return Update{
			Status:  Failed,
			Block:   receipt.BlockNumber,
			Receipt: receipt,
			Err:     &RevertedError{Reason: reason, Hash: h.Hash},
		}, true
	}

	head, err := w.backend.BlockNumber(ctx)
	if err != nil {
		return Update{Err: &WatchError{Err: err}}, false
	}
	var confs uint64
	if head >= receipt.BlockNumber {
		confs = head - receipt.BlockNumber + 1
	}
	u := Update{Status: Confirming, Block: receipt.BlockNumber, Confirmations: confs, Receipt: receipt}
	if confs >= w.confirmations {
		u.Status = Confirmed
		return u, true
	}
	return u, false
}

func (w *Watcher) finish(h *Handle, u Update, log *zap.Logger) {
	elapsed := w.clk.Since(h.SubmittedAt)
	status := u.Status.String()
	if u.Err == ErrDropped {
		status = "dropped"
	}
	w.metrics.Confirm(h.Action, status, elapsed)
	if u.Status == Confirmed {
		log.Info("transaction confirmed", zap.Uint64("block", u.Block))
	} else {
		log.Warn("transaction failed", zap.Error(u.Err))
	}
}
