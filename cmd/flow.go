package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trustless-academy/academy/internal/countdown"
	"github.com/trustless-academy/academy/internal/txn"
	"github.com/trustless-academy/academy/internal/ui"
	"github.com/trustless-academy/academy/internal/workflow"
)

// errStoppedWaiting is returned when the user gives up on a stalled
// transaction. The transaction itself may still confirm.
var errStoppedWaiting = errors.New("stopped waiting; the transaction may still confirm, check again later")

// driver runs workflows from the command line, printing progress as it goes.
type driver struct {
	Out    io.Writer
	Prompt *ui.Prompter
	// Wait sits out a cooldown instead of refusing.
	Wait bool
}

// attach prints wf's transitions under label.
func (d *driver) attach(wf *workflow.Workflow, label string) {
	(&ui.Progress{Out: d.Out, Flow: wf, Label: label}).Attach()
}

// claim checks wf and submits it once eligible.
func (d *driver) claim(ctx context.Context, wf *workflow.Workflow, label string) error {
	d.attach(wf, label)
	if err := d.eligible(ctx, wf); err != nil {
		return err
	}
	_, err := wf.Submit(ctx)
	return d.settle(ctx, wf, err)
}

// eligible brings wf to Eligible. Without Wait a cooldown is refused with
// the time left.
func (d *driver) eligible(ctx context.Context, wf *workflow.Workflow) error {
	if d.Wait {
		_, err := wf.WaitEligible(ctx)
		return err
	}
	elig, err := wf.Check(ctx)
	if err != nil {
		return err
	}
	switch wf.State() {
	case workflow.Eligible:
		return nil
	case workflow.OnCooldown:
		left := countdown.Format(wf.Timer().Remaining())
		wf.Abandon()
		return fmt.Errorf("%w: next claim in %s, rerun with --wait to claim then", workflow.ErrNotEligible, left)
	default:
		return fmt.Errorf("%w: %s", workflow.ErrNotEligible, elig.Reason)
	}
}

// settle handles a stalled confirmation by asking whether to keep waiting.
// Declining abandons the workflow.
func (d *driver) settle(ctx context.Context, wf *workflow.Workflow, err error) error {
	for errors.Is(err, txn.ErrStalled) {
		ok, perr := d.Prompt.Confirm("Keep waiting?")
		if perr != nil {
			return perr
		}
		if !ok {
			wf.Abandon()
			return errStoppedWaiting
		}
		err = wf.KeepWaiting(ctx)
	}
	return err
}

// twoStep runs an approve-then-act flow, settling a stall in either step.
func (d *driver) twoStep(ctx context.Context, ts *workflow.TwoStep, account common.Address, approveLabel, actLabel string) error {
	d.attach(ts.Approve, approveLabel)
	d.attach(ts.Act, actLabel)
	for {
		_, err := ts.Run(ctx, account)
		if !errors.Is(err, txn.ErrStalled) {
			return err
		}
		wf := ts.Act
		if ts.Approve.State() == workflow.Confirming {
			wf = ts.Approve
		}
		if err := d.settle(ctx, wf, txn.ErrStalled); err != nil {
			return err
		}
		if wf == ts.Act {
			return nil
		}
	}
}
