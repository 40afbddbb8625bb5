package workflow

import (
	"time"

	"github.com/trustless-academy/academy/internal/countdown"
	"github.com/trustless-academy/academy/internal/txn"
)

// State is a workflow stage.
type State int

const (
	Idle State = iota
	Checking
	Eligible
	OnCooldown
	Blocked // ineligible for a reason other than a cooldown
	Submitting
	Confirming
	Success
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Checking:   "checking",
	Eligible:   "eligible",
	OnCooldown: "on_cooldown",
	Blocked:    "blocked",
	Submitting: "submitting",
	Confirming: "confirming",
	Success:    "success",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Busy reports whether a transaction is being submitted or confirmed.
func (s State) Busy() bool { return s == Submitting || s == Confirming }

// Eligibility is the outcome of a check.
type Eligibility struct {
	Eligible  bool
	LastClaim time.Time     // start of the current cooldown, zero when none
	Cooldown  time.Duration // full cooldown window
	Reason    string        // why the action is blocked
}

// OnCooldown reports whether the action is waiting out a cooldown.
func (e Eligibility) OnCooldown() bool {
	return !e.Eligible && e.Cooldown > 0 && !e.LastClaim.IsZero()
}

// Remaining is the cooldown left at now.
func (e Eligibility) Remaining(now time.Time) time.Duration {
	if !e.OnCooldown() {
		return 0
	}
	return countdown.Remaining(e.LastClaim, e.Cooldown, now)
}

// Transition is published to observers on every state change. Progress of
// a watched transaction is published as Confirming to Confirming with
// Update set.
type Transition struct {
	Workflow string
	From, To State
	Err      error
	Update   *txn.Update
	At       time.Time
}
