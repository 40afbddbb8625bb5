package workflow

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/readcache"
	"github.com/trustless-academy/academy/internal/txn"
)

// TwoStep runs Approve and then Act, where Act needs an allowance. Act's
// checker must include AllowanceAtLeast for the same amount.
type TwoStep struct {
	Approve *Workflow
	Act     *Workflow

	// Allowance builds the allowance read for the account.
	Allowance func(account common.Address) contract.Call
	Amount    *big.Int

	Reads *readcache.Cache
	Clock clock.Clock
	// Retries bounds the allowance refetches after approve confirms,
	// RetryEvery apart, for nodes that lag the receipt.
	Retries    int
	RetryEvery time.Duration
}

// NewTwoStep pairs approve with act for amount.
func NewTwoStep(approve, act *Workflow, allowance func(common.Address) contract.Call, amount *big.Int, reads *readcache.Cache) *TwoStep {
	return &TwoStep{
		Approve:    approve,
		Act:        act,
		Allowance:  allowance,
		Amount:     amount,
		Reads:      reads,
		Clock:      clock.New(),
		Retries:    5,
		RetryEvery: time.Second,
	}
}

// NeedsApproval reports whether the current allowance is below Amount.
func (t *TwoStep) NeedsApproval(ctx context.Context, account common.Address) (bool, error) {
	v, err := t.Reads.Refetch(ctx, t.Allowance(account))
	if err != nil {
		return false, err
	}
	have := v.Uint()
	return have == nil || have.Cmp(t.Amount) < 0, nil
}

// Run approves when needed, waits until the allowance is visible and then
// runs Act. It returns Act's handle.
func (t *TwoStep) Run(ctx context.Context, account common.Address) (*txn.Handle, error) {
	need, err := t.NeedsApproval(ctx, account)
	if err != nil {
		return nil, err
	}
	if need {
		if err := t.approve(ctx, account); err != nil {
			return nil, err
		}
	}

	if _, err := t.Act.Check(ctx); err != nil {
		return nil, err
	}
	if st := t.Act.State(); st != Eligible {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, t.Act.Eligibility().Reason)
	}
	return t.Act.Submit(ctx)
}

func (t *TwoStep) approve(ctx context.Context, account common.Address) error {
	if _, err := t.Approve.WaitEligible(ctx); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	if _, err := t.Approve.Submit(ctx); err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	clk := t.Clock
	if clk == nil {
		clk = clock.New()
	}
	for attempt := 0; ; attempt++ {
		need, err := t.NeedsApproval(ctx, account)
		if err != nil {
			return err
		}
		if !need {
			return nil
		}
		if attempt >= t.Retries {
			return fmt.Errorf("%w: allowance still below %s after approval", ErrNotEligible, t.Amount)
		}
		select {
		case <-clk.After(t.RetryEvery):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
