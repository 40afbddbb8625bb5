// Package readcache keeps the last good result of contract view calls and
// refreshes them on demand or when a new block arrives.
package readcache

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/metrics"
)

// Reader performs one contract view call.
type Reader interface {
	Read(ctx context.Context, call contract.Call) ([]any, error)
}

// Value is the cached result of one read.
type Value struct {
	Data      []any
	FetchedAt time.Time
	Known     bool  // at least one successful fetch
	Stale     bool  // invalidated or last refresh failed
	Err       error // last refresh error, nil after a success
}

// Uint returns the single uint256 output, or nil when unknown.
func (v Value) Uint() *big.Int {
	if !v.Known {
		return nil
	}
	n, err := contract.Uint(v.Data)
	if err != nil {
		return nil
	}
	return n
}

// Bool returns the single bool output, false when unknown.
func (v Value) Bool() bool {
	if !v.Known {
		return false
	}
	b, _ := contract.Bool(v.Data)
	return b
}

type entry struct {
	call     contract.Call
	val      Value
	failedAt time.Time
	gen      uint64 // bumped by Invalidate; older fetches may not store
}

// Cache is safe for concurrent use. Reads of different keys never wait on
// each other; concurrent fetches of the same key share one RPC.
type Cache struct {
	reader     Reader
	clk        clock.Clock
	log        *zap.Logger
	metrics    *metrics.Registry
	retryAfter time.Duration
	timeout    time.Duration

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	watched map[string]contract.Call
	bg      sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

func WithClock(clk clock.Clock) Option { return func(c *Cache) { c.clk = clk } }

func WithLogger(log *zap.Logger) Option { return func(c *Cache) { c.log = log } }

func WithMetrics(m *metrics.Registry) Option { return func(c *Cache) { c.metrics = m } }

// WithRetryAfter sets how long a failed key is left alone by Read. It should
// match the poll interval.
func WithRetryAfter(d time.Duration) Option { return func(c *Cache) { c.retryAfter = d } }

// WithTimeout bounds each RPC round trip.
func WithTimeout(d time.Duration) Option { return func(c *Cache) { c.timeout = d } }

// New creates a cache over reader.
func New(reader Reader, opts ...Option) *Cache {
	c := &Cache{
		reader:     reader,
		clk:        clock.New(),
		log:        zap.NewNop(),
		retryAfter: 4 * time.Second,
		timeout:    10 * time.Second,
		entries:    make(map[string]*entry),
		watched:    make(map[string]contract.Call),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func validate(call contract.Call) error {
	if !call.Valid() || !call.IsRead() {
		return fmt.Errorf("%w: %s", ErrInvalidQuery, call)
	}
	return nil
}

// Read returns the cached value without waiting on the network. An unknown
// or stale key schedules a background refresh unless it failed within the
// retry window.
func (c *Cache) Read(call contract.Call) (Value, error) {
	if err := validate(call); err != nil {
		return Value{}, err
	}
	key := call.Key()

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{call: call}
		c.entries[key] = e
	}
	val := e.val
	refresh := (!val.Known || val.Stale) &&
		(e.failedAt.IsZero() || c.clk.Since(e.failedAt) >= c.retryAfter)
	c.mu.Unlock()

	if val.Known && !val.Stale {
		c.metrics.Cache("hit")
	} else {
		c.metrics.Cache("miss")
	}
	if refresh {
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			_, _ = c.Refetch(context.Background(), call)
		}()
	}
	return val, nil
}

// Get returns a fresh cached value or fetches one.
func (c *Cache) Get(ctx context.Context, call contract.Call) (Value, error) {
	if err := validate(call); err != nil {
		return Value{}, err
	}
	c.mu.Lock()
	e, ok := c.entries[call.Key()]
	var val Value
	if ok {
		val = e.val
	}
	c.mu.Unlock()
	if val.Known && !val.Stale {
		c.metrics.Cache("hit")
		return val, nil
	}
	c.metrics.Cache("miss")
	return c.Refetch(ctx, call)
}

// Refetch forces a round trip. On failure the previous good value is kept,
// marked stale, and returned alongside a *ReadError. Concurrent refetches
// share one RPC, but a refetch after Invalidate never joins a fetch that
// started before it.
func (c *Cache) Refetch(ctx context.Context, call contract.Call) (Value, error) {
	if err := validate(call); err != nil {
		return Value{}, err
	}
	key := call.Key()

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{call: call}
		c.entries[key] = e
	}
	gen := e.gen
	c.mu.Unlock()

	ch := c.group.DoChan(flightKey(key, gen), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetch(fctx, key, gen, call)
	})

	select {
	case res := <-ch:
		val, _ := res.Val.(Value)
		return val, res.Err
	case <-ctx.Done():
		return c.Peek(call), ctx.Err()
	}
}

func flightKey(key string, gen uint64) string { return fmt.Sprintf("%s#%d", key, gen) }

// fetch stores the result only while gen is current. A result that was
// overtaken by Invalidate is returned to its callers as stale.
func (c *Cache) fetch(ctx context.Context, key string, gen uint64, call contract.Call) (Value, error) {
	out, err := c.reader.Read(ctx, call)
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{call: call, gen: gen}
		c.entries[key] = e
	}

	if e.gen != gen {
		c.log.Debug("discarding read from before invalidation", zap.String("call", call.String()))
		if err != nil {
			return e.val, classify(call, err)
		}
		return Value{Data: out, FetchedAt: now, Known: true, Stale: true}, nil
	}

	if err != nil {
		rerr := classify(call, err)
		e.val.Stale = true
		e.val.Err = rerr
		e.failedAt = now
		c.metrics.Read(call.Method, rerr.Kind.String())
		c.log.Debug("read failed",
			zap.String("call", call.String()),
			zap.Stringer("kind", rerr.Kind),
			zap.Error(err))
		return e.val, rerr
	}

	e.val = Value{Data: out, FetchedAt: now, Known: true}
	e.failedAt = time.Time{}
	c.metrics.Read(call.Method, "ok")
	return e.val, nil
}

// Peek returns the cached value without scheduling anything.
func (c *Cache) Peek(call contract.Call) Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[call.Key()]; ok {
		return e.val
	}
	return Value{}
}

// Invalidate marks entries stale so the next Read refreshes them. The retry
// window is cleared, and fetches already in flight can no longer store
// their result.
func (c *Cache) Invalidate(calls ...contract.Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range calls {
		key := call.Key()
		if e, ok := c.entries[key]; ok {
			c.group.Forget(flightKey(key, e.gen))
			e.gen++
			e.val.Stale = true
			e.failedAt = time.Time{}
		}
	}
}

// Watch registers calls for refresh on every new head.
func (c *Cache) Watch(calls ...contract.Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range calls {
		if validate(call) == nil {
			c.watched[call.Key()] = call
		}
	}
}

// Unwatch stops head-driven refresh for calls.
func (c *Cache) Unwatch(calls ...contract.Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range calls {
		delete(c.watched, call.Key())
	}
}

// Run refreshes every watched key whenever heads delivers a new block. A new
// head also opens the retry window for keys that failed. Run returns when
// heads is closed or ctx ends.
func (c *Cache) Run(ctx context.Context, heads <-chan uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-heads:
			if !ok {
				return
			}
			c.refreshWatched(ctx, n)
		}
	}
}

func (c *Cache) refreshWatched(ctx context.Context, block uint64) {
	c.mu.Lock()
	calls := make([]contract.Call, 0, len(c.watched))
	for _, call := range c.watched {
		calls = append(calls, call)
	}
	for _, e := range c.entries {
		e.failedAt = time.Time{}
	}
	c.mu.Unlock()

	c.log.Debug("refreshing watched reads", zap.Uint64("block", block), zap.Int("keys", len(calls)))
	var wg sync.WaitGroup
	for _, call := range calls {
		wg.Add(1)
		go func(call contract.Call) {
			defer wg.Done()
			_, _ = c.Refetch(ctx, call)
		}(call)
	}
	wg.Wait()
}

// Wait blocks until background refreshes started by Read have finished.
func (c *Cache) Wait() { c.bg.Wait() }
