package readcache

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/metrics"
)

var (
	me    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token = contract.NewKitchenToken(common.HexToAddress("0x0000000000000000000000000000000000000001"))
)

// fakeReader serves reads from a function and counts calls per key.
type fakeReader struct {
	mu    sync.Mutex
	calls map[string]int
	gate  chan struct{}
	fn    func(call contract.Call) ([]any, error)
}

func newFakeReader(fn func(call contract.Call) ([]any, error)) *fakeReader {
	return &fakeReader{calls: map[string]int{}, fn: fn}
}

func (f *fakeReader) Read(_ context.Context, call contract.Call) ([]any, error) {
	f.mu.Lock()
	f.calls[call.Key()]++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.fn(call)
}

func (f *fakeReader) count(call contract.Call) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call.Key()]
}

func constant(n int64) func(contract.Call) ([]any, error) {
	return func(contract.Call) ([]any, error) { return []any{big.NewInt(n)}, nil }
}

var ctx = context.Background()

// ---------------------------------------------------------------------------
// validation
// ---------------------------------------------------------------------------

func TestInvalidQuery(t *testing.T) {
	c := New(newFakeReader(constant(1)))

	_, err := c.Read(contract.Call{Kind: contract.KitchenTokenKind, Method: "balanceOf"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = c.Read(contract.Call{Kind: contract.KitchenTokenKind, To: me})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = c.Refetch(ctx, token.Faucet())
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

// ---------------------------------------------------------------------------
// Read / Refetch
// ---------------------------------------------------------------------------

func TestReadUnknownThenBackgroundFill(t *testing.T) {
	r := newFakeReader(constant(1000))
	c := New(r)

	v, err := c.Read(token.BalanceOf(me))
	require.NoError(t, err)
	assert.False(t, v.Known)
	assert.Nil(t, v.Uint())

	c.Wait()
	v, err = c.Read(token.BalanceOf(me))
	require.NoError(t, err)
	assert.True(t, v.Known)
	assert.False(t, v.Stale)
	assert.Equal(t, int64(1000), v.Uint().Int64())
	assert.Equal(t, 1, r.count(token.BalanceOf(me)))
}

func TestRefetchRoundTrip(t *testing.T) {
	var balance atomic.Int64
	balance.Store(5)
	r := newFakeReader(func(contract.Call) ([]any, error) {
		return []any{big.NewInt(balance.Load())}, nil
	})
	c := New(r)

	v, err := c.Refetch(ctx, token.BalanceOf(me))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Uint().Int64())

	balance.Store(1005)
	v, err = c.Refetch(ctx, token.BalanceOf(me))
	require.NoError(t, err)
	assert.Equal(t, int64(1005), v.Uint().Int64())
}

func TestGetUsesFreshValue(t *testing.T) {
	r := newFakeReader(constant(7))
	c := New(r)

	_, err := c.Get(ctx, token.BalanceOf(me))
	require.NoError(t, err)
	_, err = c.Get(ctx, token.BalanceOf(me))
	require.NoError(t, err)
	assert.Equal(t, 1, r.count(token.BalanceOf(me)))

	c.Invalidate(token.BalanceOf(me))
	_, err = c.Get(ctx, token.BalanceOf(me))
	require.NoError(t, err)
	assert.Equal(t, 2, r.count(token.BalanceOf(me)))
}

func TestConcurrentRefetchCoalesces(t *testing.T) {
	r := newFakeReader(constant(1))
	r.gate = make(chan struct{})
	c := New(r)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Refetch(ctx, token.BalanceOf(me))
		}()
	}
	require.Eventually(t, func() bool { return r.count(token.BalanceOf(me)) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(r.gate)
	wg.Wait()
	assert.Equal(t, 1, r.count(token.BalanceOf(me)))
}

func TestUnrelatedKeysDoNotBlock(t *testing.T) {
	block := make(chan struct{})
	r := newFakeReader(func(call contract.Call) ([]any, error) {
		if call.Method == "balanceOf" {
			<-block
		}
		return []any{true}, nil
	})
	c := New(r)

	go func() { _, _ = c.Refetch(ctx, token.BalanceOf(me)) }()
	require.Eventually(t, func() bool { return r.count(token.BalanceOf(me)) == 1 }, time.Second, time.Millisecond)

	v, err := c.Refetch(ctx, token.CanClaimFaucet(me))
	require.NoError(t, err)
	assert.True(t, v.Bool())
	close(block)
}

// ---------------------------------------------------------------------------
// errors
// ---------------------------------------------------------------------------

func TestFailureKeepsLastGoodValue(t *testing.T) {
	var fail atomic.Bool
	r := newFakeReader(func(contract.Call) ([]any, error) {
		if fail.Load() {
			return nil, errors.New("dial tcp: connection refused")
		}
		return []any{big.NewInt(42)}, nil
	})
	c := New(r)

	_, err := c.Refetch(ctx, token.BalanceOf(me))
	require.NoError(t, err)

	fail.Store(true)
	v, err := c.Refetch(ctx, token.BalanceOf(me))
	var rerr *ReadError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, Unreachable, rerr.Kind)
	assert.True(t, v.Known)
	assert.True(t, v.Stale)
	assert.Equal(t, int64(42), v.Uint().Int64())
	assert.Equal(t, rerr, v.Err)
}

func TestClassifyRevertAndMalformed(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("call: %w", &chain.RevertError{Reason: "paused"}), Reverted},
		{fmt.Errorf("x: %w", contract.ErrDecode), Malformed},
		{&chain.RPCError{Code: -32005, Message: "rate limited"}, Unreachable},
	}
	for _, tt := range tests {
		r := newFakeReader(func(contract.Call) ([]any, error) { return nil, tt.err })
		_, err := New(r).Refetch(ctx, token.BalanceOf(me))
		var rerr *ReadError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, tt.want, rerr.Kind, tt.err.Error())
		assert.ErrorIs(t, err, tt.err)
	}
}

func TestFailedKeyNotRetriedUntilWindowOrHead(t *testing.T) {
	mock := clock.NewMock()
	r := newFakeReader(func(contract.Call) ([]any, error) { return nil, errors.New("down") })
	c := New(r, WithClock(mock), WithRetryAfter(4*time.Second))

	_, _ = c.Read(token.BalanceOf(me))
	c.Wait()
	assert.Equal(t, 1, r.count(token.BalanceOf(me)))

	// Within the window the failed key is served stale without a fetch.
	v, err := c.Read(token.BalanceOf(me))
	require.NoError(t, err)
	assert.True(t, v.Stale)
	c.Wait()
	assert.Equal(t, 1, r.count(token.BalanceOf(me)))

	mock.Add(4 * time.Second)
	_, _ = c.Read(token.BalanceOf(me))
	c.Wait()
	assert.Equal(t, 2, r.count(token.BalanceOf(me)))
}

func TestRefetchHonoursCallerContext(t *testing.T) {
	r := newFakeReader(constant(1))
	r.gate = make(chan struct{})
	defer close(r.gate)
	c := New(r)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := c.Refetch(cctx, token.BalanceOf(me))
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Invalidate / Watch / Run
// ---------------------------------------------------------------------------

func TestInvalidateMarksStaleAndReadRefreshes(t *testing.T) {
	r := newFakeReader(constant(3))
	c := New(r)
	_, err := c.Refetch(ctx, token.BalanceOf(me))
	require.NoError(t, err)

	c.Invalidate(token.BalanceOf(me))
	v, err := c.Read(token.BalanceOf(me))
	require.NoError(t, err)
	assert.True(t, v.Stale)
	assert.Equal(t, int64(3), v.Uint().Int64())

	c.Wait()
	assert.Equal(t, 2, r.count(token.BalanceOf(me)))
	assert.False(t, c.Peek(token.BalanceOf(me)).Stale)
}

func TestRefetchAfterInvalidateSkipsOlderFetch(t *testing.T) {
	var balance atomic.Int64
	balance.Store(100)
	var first atomic.Bool
	read := make(chan struct{})
	release := make(chan struct{})
	r := newFakeReader(func(contract.Call) ([]any, error) {
		n := balance.Load()
		if first.CompareAndSwap(false, true) {
			close(read)
			<-release
		}
		return []any{big.NewInt(n)}, nil
	})
	c := New(r)
	call := token.BalanceOf(me)

	older := make(chan Value, 1)
	go func() {
		v, _ := c.Refetch(ctx, call)
		older <- v
	}()
	<-read

	// the transaction confirms while the head refresh is still in flight
	balance.Store(200)
	c.Invalidate(call)
	v, err := c.Refetch(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, int64(200), v.Uint().Int64())
	assert.Equal(t, 2, r.count(call))

	close(release)
	old := <-older
	assert.Equal(t, int64(100), old.Uint().Int64())
	assert.True(t, old.Stale)

	cached := c.Peek(call)
	assert.False(t, cached.Stale)
	assert.Equal(t, int64(200), cached.Uint().Int64())
}

func TestRunRefreshesWatchedOnEachHead(t *testing.T) {
	r := newFakeReader(constant(9))
	c := New(r)
	c.Watch(token.BalanceOf(me), token.CanClaimFaucet(me), token.Faucet())

	heads := make(chan uint64)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, heads)
		close(done)
	}()

	heads <- 100
	heads <- 101
	close(heads)
	<-done

	assert.Equal(t, 2, r.count(token.BalanceOf(me)))
	assert.Equal(t, 2, r.count(token.CanClaimFaucet(me)))
	assert.Equal(t, 0, r.count(token.Faucet()))

	c.Unwatch(token.BalanceOf(me))
	heads = make(chan uint64, 1)
	heads <- 102
	close(heads)
	c.Run(ctx, heads)
	assert.Equal(t, 2, r.count(token.BalanceOf(me)))
	assert.Equal(t, 3, r.count(token.CanClaimFaucet(me)))
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	c := New(newFakeReader(constant(1)), WithMetrics(m))
	_, err := c.Get(ctx, token.BalanceOf(me))
	require.NoError(t, err)
	_, err = c.Get(ctx, token.BalanceOf(me))
	require.NoError(t, err)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["academy_chain_reads_total"])
	assert.True(t, names["academy_read_cache_total"])
}
