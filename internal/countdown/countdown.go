// Package countdown computes how long until a cooldown expires and drives a
// once-per-second timer that recomputes from the authoritative timestamp.
package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Remaining returns the whole seconds left until last+cooldown, clamped at
// zero.
func Remaining(last time.Time, cooldown time.Duration, now time.Time) time.Duration {
	d := last.Add(cooldown).Sub(now)
	if d <= 0 {
		return 0
	}
	// Round up so a countdown never shows 00:00:00 while still ineligible.
	return (d + time.Second - 1).Truncate(time.Second)
}

// RemainingSeconds is Remaining on unix seconds.
func RemainingSeconds(lastUnix, cooldownSecs, nowUnix int64) int64 {
	r := lastUnix + cooldownSecs - nowUnix
	if r < 0 {
		return 0
	}
	return r
}

// Format renders d as HH:MM:SS. Hours are not wrapped at 24.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// Timer ticks once per second while a cooldown is running. Every tick
// recomputes the remaining time from the last claim timestamp rather than
// decrementing a counter, so a late tick never drifts.
type Timer struct {
	clk      clock.Clock
	cooldown time.Duration

	mu        sync.Mutex
	last      time.Time
	remaining time.Duration
	ticker    *clock.Ticker
	stop      chan struct{}
	done      chan struct{}
	ticks     chan time.Duration
}

// New creates a stopped timer. A nil clock means wall time.
func New(clk clock.Clock, cooldown time.Duration) *Timer {
	if clk == nil {
		clk = clock.New()
	}
	return &Timer{
		clk:      clk,
		cooldown: cooldown,
		done:     make(chan struct{}),
		ticks:    make(chan time.Duration, 1),
	}
}

// Start begins counting down from last. If the cooldown has already elapsed
// the timer is done immediately and nothing is scheduled.
func (t *Timer) Start(last time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked(last)
}

// Reset recomputes from a new authoritative timestamp and restarts the
// ticker if time remains.
func (t *Timer) Reset(last time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	select {
	case <-t.done:
		t.done = make(chan struct{})
	default:
	}
	t.startLocked(last)
}

// Stop cancels the ticker without closing Done.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Remaining is the value computed at the last tick.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether a ticker is scheduled.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker != nil
}

// Done is closed when the remaining time reaches zero.
func (t *Timer) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Ticks delivers the latest remaining value after each tick. Slow readers
// only see the most recent value.
func (t *Timer) Ticks() <-chan time.Duration { return t.ticks }

func (t *Timer) startLocked(last time.Time) {
	t.last = last
	t.remaining = Remaining(last, t.cooldown, t.clk.Now())
	t.publish(t.remaining)
	if t.remaining == 0 {
		close(t.done)
		return
	}
	t.ticker = t.clk.Ticker(time.Second)
	t.stop = make(chan struct{})
	go t.loop(t.ticker, t.stop)
}

func (t *Timer) stopLocked() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.stop)
	t.ticker = nil
}

func (t *Timer) loop(ticker *clock.Ticker, stop chan struct{}) {
	for {
		select {
		case now := <-ticker.C:
			t.mu.Lock()
			if t.ticker != ticker {
				t.mu.Unlock()
				return
			}
			r := Remaining(t.last, t.cooldown, now)
			if r > t.remaining {
				r = t.remaining
			}
			t.remaining = r
			t.publish(r)
			if r == 0 {
				t.stopLocked()
				close(t.done)
				t.mu.Unlock()
				return
			}
			t.mu.Unlock()
		case <-stop:
			return
		}
	}
}

func (t *Timer) publish(d time.Duration) {
	select {
	case <-t.ticks:
	default:
	}
	t.ticks <- d
}
