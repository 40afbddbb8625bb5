package workflow

import (
	"errors"

	"github.com/trustless-academy/academy/internal/readcache"
	"github.com/trustless-academy/academy/internal/txn"
)

// GenericNotice is shown for errors without a more specific description.
const GenericNotice = "Something went wrong. Please try again."

// Describe turns a workflow error into the line shown next to the action.
// Node messages and revert reasons are shown as given; anything unexpected
// gets a generic notice.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var (
		sub   *txn.SubmissionError
		rev   *txn.RevertedError
		allow *txn.InsufficientAllowanceError
		read  *readcache.ReadError
	)
	switch {
	case errors.Is(err, txn.ErrUserRejected):
		return "Transaction rejected in your wallet. Nothing was sent."
	case errors.As(err, &sub):
		return "The network refused the transaction: " + sub.Message
	case errors.As(err, &rev):
		if rev.Reason == "" {
			return "Transaction reverted."
		}
		return "Transaction reverted: " + rev.Reason
	case errors.As(err, &allow):
		return "Approval needed: " + allow.Error()
	case errors.Is(err, txn.ErrStalled):
		return "Confirmation is taking longer than expected. Keep waiting or resubmit."
	case errors.Is(err, txn.ErrDropped):
		return "The transaction was dropped by the network. Try again."
	case errors.Is(err, txn.ErrNoAccount):
		return "Select a wallet first."
	case errors.Is(err, ErrNotEligible):
		return err.Error()
	case errors.Is(err, ErrBusy), errors.Is(err, txn.ErrInFlight):
		return "A transaction for this action is already in progress."
	case errors.As(err, &read):
		return "Could not read from the chain (" + read.Kind.String() + "). Showing last known values."
	default:
		return GenericNotice
	}
}
