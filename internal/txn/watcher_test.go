package txn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastWatcher polls every few milliseconds on the real clock.
func fastWatcher(f *fixture, opts ...WatchOption) *Watcher {
	base := []WatchOption{PollEvery(5*time.Millisecond, 0), MaxAttempts(200), WatchMetrics(f.reg)}
	return NewWatcher(f.chain, append(base, opts...)...)
}

func next(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "channel closed early")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return Update{}
	}
}

// drain collects updates until the channel closes.
func drain(t *testing.T, ch <-chan Update) []Update {
	t.Helper()
	var out []Update
	deadline := time.After(3 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-deadline:
			t.Fatal("watch did not finish")
			return out
		}
	}
}

func statuses(us []Update) []Status {
	out := make([]Status, len(us))
	for i, u := range us {
		out[i] = u.Status
	}
	return out
}

func TestWatchPendingThenConfirmed(t *testing.T) {
	f := newFixture(t)
	h, err := f.sub.Submit(ctx, "faucet", kitchen.Faucet())
	require.NoError(t, err)

	ch, err := fastWatcher(f).Watch(ctx, h)
	require.NoError(t, err)

	first := next(t, ch)
	assert.Equal(t, Pending, first.Status)
	assert.Equal(t, h.Hash, first.Hash)
	assert.False(t, first.Terminal())

	block := f.chain.Mine()
	rest := drain(t, ch)
	require.NotEmpty(t, rest)
	last := rest[len(rest)-1]
	assert.Equal(t, Confirmed, last.Status)
	assert.True(t, last.Terminal())
	assert.Equal(t, block, last.Block)
	assert.Equal(t, uint64(1), last.Confirmations)
	require.NotNil(t, last.Receipt)
	assert.Equal(t, uint64(1), last.Receipt.Status)
	assert.NoError(t, last.Err)
}

func TestWatchNeverConfirmsBeforeInclusion(t *testing.T) {
	f := newFixture(t)
	h, err := f.sub.Submit(ctx, "faucet", kitchen.Faucet())
	require.NoError(t, err)

	ch, err := fastWatcher(f, MaxAttempts(5)).Watch(ctx, h)
	require.NoError(t, err)
	for _, u := range drain(t, ch) {
		assert.Equal(t, Pending, u.Status)
	}
}

func TestWatchCountsConfirmations(t *testing.T) {
	f := newFixture(t)
	h, err := f.sub.Submit(ctx, "faucet", kitchen.Faucet())
	require.NoError(t, err)
	f.chain.Mine()

	ch, err := fastWatcher(f, Confirmations(3)).Watch(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, Pending, next(t, ch).Status)

	u := next(t, ch)
	assert.Equal(t, Confirming, u.Status)
	assert.Equal(t, uint64(1), u.Confirmations)

	f.chain.MineEmpty(2)
	rest := drain(t, ch)
	last := rest[len(rest)-1]
	assert.Equal(t, Confirmed, last.Status)
	assert.Equal(t, uint64(3), last.Confirmations)

	seq := append([]Status{Pending, Confirming}, statuses(rest)...)
	for i := 1; i < len(seq); i++ {
		assert.GreaterOrEqual(t, seq[i], seq[i-1], "status never goes backwards")
	}
}

func TestWatchRevertedOnChain(t *testing.T) {
	f := newFixture(t)
	first, err := f.sub.Submit(ctx, "faucet-a", kitchen.Faucet())
	require.NoError(t, err)
	second, err := f.sub.Submit(ctx, "faucet-b", kitchen.Faucet())
	require.NoError(t, err)
	f.chain.Mine()

	w := fastWatcher(f)
	ok, err := w.Watch(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, Confirmed, lastOf(drain(t, ok)).Status)

	bad, err := w.Watch(ctx, second)
	require.NoError(t, err)
	last := lastOf(drain(t, bad))
	assert.Equal(t, Failed, last.Status)
	var rev *RevertedError
	require.True(t, errors.As(last.Err, &rev))
	assert.Equal(t, "Faucet: cooldown active", rev.Reason)
	assert.Equal(t, second.Hash, rev.Hash)
	assert.False(t, rev.Simulated())
}

func TestWatchErrorIsNotTerminal(t *testing.T) {
	f := newFixture(t)
	h, err := f.sub.Submit(ctx, "faucet", kitchen.Faucet())
	require.NoError(t, err)
	f.chain.Mine()
	boom := errors.New("upstream timeout")
	f.chain.Fail("eth_getTransactionReceipt", boom, boom)

	ch, err := fastWatcher(f).Watch(ctx, h)
	require.NoError(t, err)
	us := drain(t, ch)

	var transient int
	for _, u := range us[:len(us)-1] {
		var werr *WatchError
		if errors.As(u.Err, &werr) {
			transient++
			assert.ErrorIs(t, u.Err, boom)
			assert.False(t, u.Terminal())
			assert.Equal(t, Pending, u.Status)
		}
	}
	assert.Equal(t, 2, transient)
	assert.Equal(t, Confirmed, lastOf(us).Status)
}

func TestWatchStallsThenRewatch(t *testing.T) {
	f := newFixture(t)
	h, err := f.sub.Submit(ctx, "faucet", kitchen.Faucet())
	require.NoError(t, err)

	w := fastWatcher(f, MaxAttempts(3))
	ch, err := w.Watch(ctx, h)
	require.NoError(t, err)
	last := lastOf(drain(t, ch))
	assert.ErrorIs(t, last.Err, ErrStalled)
	assert.Equal(t, Pending, last.Status)
	assert.Equal(t, 3, last.Attempt)
	assert.True(t, last.Terminal())

	_, err = w.Watch(ctx, h)
	assert.ErrorIs(t, err, ErrAlreadyWatched)

	f.chain.Mine()
	ch, err = w.Watch(ctx, h.Rewatch())
	require.NoError(t, err)
	assert.Equal(t, Confirmed, lastOf(drain(t, ch)).Status)
}

func TestWatchDropped(t *testing.T) {
	f := newFixture(t)
	h, err := f.sub.Submit(ctx, "faucet", kitchen.Faucet())
	require.NoError(t, err)
	f.chain.Drop(h.Hash)

	ch, err := fastWatcher(f, DropTimeout(20*time.Millisecond)).Watch(ctx, h)
	require.NoError(t, err)
	last := lastOf(drain(t, ch))
	assert.Equal(t, Failed, last.Status)
	assert.ErrorIs(t, last.Err, ErrDropped)
}

func TestWatchCancelledSilently(t *testing.T) {
	f := newFixture(t)
	h, err := f.sub.Submit(ctx, "faucet", kitchen.Faucet())
	require.NoError(t, err)

	c, cancel := context.WithCancel(ctx)
	ch, err := fastWatcher(f).Watch(c, h)
	require.NoError(t, err)
	assert.Equal(t, Pending, next(t, ch).Status)
	cancel()

	for _, u := range drain(t, ch) {
		assert.False(t, u.Terminal())
	}
	assert.Same(t, h, f.sub.InFlight("faucet"), "the transaction and its slot are untouched")
	assert.Len(t, f.chain.Pending(), 1)
}

func TestWatchRecordsMetrics(t *testing.T) {
	f := newFixture(t)
	h, err := f.sub.Submit(ctx, "faucet", kitchen.Faucet())
	require.NoError(t, err)
	f.chain.Mine()

	ch, err := fastWatcher(f).Watch(ctx, h)
	require.NoError(t, err)
	drain(t, ch)
	assert.Contains(t, scrape(t, f.reg), `academy_confirmations_total{action="faucet",status="confirmed"} 1`)
}

func lastOf(us []Update) Update {
	if len(us) == 0 {
		return Update{}
	}
	return us[len(us)-1]
}
