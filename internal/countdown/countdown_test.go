package countdown

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func newMock() *clock.Mock {
	m := clock.NewMock()
	m.Set(time.Unix(1_700_000_000, 0))
	return m
}

// ---------------------------------------------------------------------------
// pure helpers
// ---------------------------------------------------------------------------

func TestRemainingSecondsExactExpiry(t *testing.T) {
	assert.Equal(t, int64(0), RemainingSeconds(1000, 86400, 87400))
	assert.Equal(t, "00:00:00", Format(time.Duration(RemainingSeconds(1000, 86400, 87400))*time.Second))
}

func TestRemainingSecondsOneHourAfterClaim(t *testing.T) {
	r := RemainingSeconds(1000, 86400, 1000+3600)
	assert.Equal(t, int64(82800), r)
	assert.Equal(t, "23:00:00", Format(time.Duration(r)*time.Second))
}

func TestRemainingSecondsClampsAtZero(t *testing.T) {
	assert.Equal(t, int64(0), RemainingSeconds(0, 86400, 1_000_000))
}

func TestRemainingRoundsUpPartialSeconds(t *testing.T) {
	now := time.Unix(100, 0)
	last := now.Add(-day).Add(500 * time.Millisecond)
	assert.Equal(t, time.Second, Remaining(last, day, now))
	assert.Equal(t, time.Duration(0), Remaining(now.Add(-day), day, now))
}

func TestRemainingMonotonic(t *testing.T) {
	last := time.Unix(1000, 0)
	prev := Remaining(last, day, last)
	for step := time.Duration(0); step <= day+time.Minute; step += 7 * time.Minute {
		r := Remaining(last, day, last.Add(step))
		assert.LessOrEqual(t, r, prev)
		assert.GreaterOrEqual(t, r, time.Duration(0))
		prev = r
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-time.Second, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{day, "24:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.d), tt.d.String())
	}
}

// ---------------------------------------------------------------------------
// Timer
// ---------------------------------------------------------------------------

func TestTimerStartsFromAuthoritativeTimestamp(t *testing.T) {
	mock := newMock()
	tm := New(mock, day)
	tm.Start(mock.Now().Add(-time.Hour))
	defer tm.Stop()

	assert.Equal(t, 23*time.Hour, tm.Remaining())
	assert.True(t, tm.Running())

	mock.Add(time.Second)
	require.Eventually(t, func() bool {
		return tm.Remaining() == 23*time.Hour-time.Second
	}, time.Second, 5*time.Millisecond)
}

func TestTimerReachesZeroAndStops(t *testing.T) {
	mock := newMock()
	tm := New(mock, day)
	tm.Start(mock.Now().Add(-day + 3*time.Second))

	var seen []time.Duration
	for i := 0; i < 3; i++ {
		want := time.Duration(2-i) * time.Second
		mock.Add(time.Second)
		require.Eventually(t, func() bool { return tm.Remaining() == want }, time.Second, 5*time.Millisecond)
		seen = append(seen, tm.Remaining())
	}

	select {
	case <-tm.Done():
	case <-time.After(time.Second):
		t.Fatal("timer did not finish")
	}
	assert.False(t, tm.Running())
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second, 0}, seen)
}

func TestTimerAlreadyElapsed(t *testing.T) {
	mock := newMock()
	tm := New(mock, day)
	tm.Start(mock.Now().Add(-25 * time.Hour))

	assert.Equal(t, time.Duration(0), tm.Remaining())
	assert.False(t, tm.Running())
	select {
	case <-tm.Done():
	default:
		t.Fatal("done should be closed")
	}
}

func TestTimerResetAfterDone(t *testing.T) {
	mock := newMock()
	tm := New(mock, day)
	tm.Start(mock.Now().Add(-day))
	<-tm.Done()

	tm.Reset(mock.Now())
	defer tm.Stop()
	assert.Equal(t, day, tm.Remaining())
	assert.True(t, tm.Running())
	select {
	case <-tm.Done():
		t.Fatal("done should be open after reset")
	default:
	}
}

func TestTimerTicksDeliverLatest(t *testing.T) {
	mock := newMock()
	tm := New(mock, day)
	tm.Start(mock.Now().Add(-time.Hour))
	defer tm.Stop()

	assert.Equal(t, 23*time.Hour, <-tm.Ticks())
	mock.Add(time.Second)
	select {
	case d := <-tm.Ticks():
		assert.Equal(t, 23*time.Hour-time.Second, d)
	case <-time.After(time.Second):
		t.Fatal("no tick")
	}
}

func TestTimerStopHaltsTicks(t *testing.T) {
	mock := newMock()
	tm := New(mock, day)
	tm.Start(mock.Now().Add(-time.Hour))
	tm.Stop()
	assert.False(t, tm.Running())

	mock.Add(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 23*time.Hour, tm.Remaining())
}
