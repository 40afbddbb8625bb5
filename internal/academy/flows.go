package academy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/readcache"
	"github.com/trustless-academy/academy/internal/txn"
	"github.com/trustless-academy/academy/internal/workflow"
)

// ErrNothingPlanted is returned by Uproot with no stake and no vault shares.
var ErrNothingPlanted = errors.New("nothing planted in the garden")

// Order is a shop purchase ready to run.
type Order struct {
	Basket contract.Basket
	Cost   *big.Int
	Flow   *workflow.TwoStep
}

// Shop prices basket and returns the approve-then-buy flow. The pantry
// pulls the cost from the kitchen token balance.
func (a *Academy) Shop(ctx context.Context, basket contract.Basket) (*Order, error) {
	if basket.Total() == 0 {
		return nil, fmt.Errorf("empty order")
	}
	price, err := a.read(ctx, a.Pantry.PricePerIngredient())
	if err != nil {
		return nil, fmt.Errorf("reading ingredient price: %w", err)
	}
	cost := basket.Cost(price)
	ids, amounts := basket.Arrays()

	approve := a.approval(a.Kitchen, "kitchen", a.dep.Ingredients, "ingredients", cost)
	buy := a.flow("shop:buy:"+basketKey(basket), func() workflow.Action {
		return workflow.Action{
			Call: func(common.Address) contract.Call { return a.Pantry.BuyBatch(ids, amounts) },
			Check: workflow.AllOf(
				workflow.AllowanceAtLeast(a.Kitchen, a.dep.Ingredients, cost),
				workflow.BalanceAtLeast(a.Kitchen, cost),
			),
			Options: func(common.Address) []txn.SubmitOption {
				return []txn.SubmitOption{txn.RequireAllowance(a.Kitchen, a.dep.Ingredients, cost)}
			},
			Affects: func(acct common.Address) []contract.Call {
				calls := []contract.Call{
					a.Kitchen.BalanceOf(acct),
					a.Kitchen.Allowance(acct, a.dep.Ingredients),
				}
				for _, id := range basket.IDs() {
					calls = append(calls, a.Pantry.BalanceOf(acct, id))
				}
				return calls
			},
		}
	})
	return &Order{
		Basket: basket,
		Cost:   cost,
		Flow:   a.twoStep(approve, buy, a.Kitchen, a.dep.Ingredients, cost),
	}, nil
}

func basketKey(b contract.Basket) string {
	parts := make([]string, 0, len(b))
	for _, id := range b.IDs() {
		parts = append(parts, fmt.Sprintf("%dx%d", id, b[id]))
	}
	return strings.Join(parts, ",")
}

// PantryContents reads the account's ingredient balances.
func (a *Academy) PantryContents(ctx context.Context, acct common.Address) (map[int64]*big.Int, error) {
	out := make(map[int64]*big.Int, len(contract.Ingredients))
	for _, ing := range contract.Ingredients {
		n, err := a.read(ctx, a.Pantry.BalanceOf(acct, ing.ID))
		if err != nil {
			return nil, err
		}
		out[ing.ID] = n
	}
	return out, nil
}

// Cook returns the workflow that burns recipe's ingredients for a dish. It
// is blocked until the pantry holds everything the recipe needs.
func (a *Academy) Cook(recipe contract.Recipe) *workflow.Workflow {
	ids, amounts := recipe.Needs.Arrays()
	return a.flow("oven:cook:"+recipe.ID, func() workflow.Action {
		return workflow.Action{
			Call: func(common.Address) contract.Call { return a.Dishes.Cook(ids, amounts) },
			Check: func(ctx context.Context, reads *readcache.Cache, acct common.Address) (workflow.Eligibility, error) {
				have := make(map[int64]*big.Int, len(recipe.Needs))
				for _, id := range recipe.Needs.IDs() {
					v, err := reads.Refetch(ctx, a.Pantry.BalanceOf(acct, id))
					if err != nil {
						return workflow.Eligibility{}, err
					}
					have[id] = uintOf(v)
				}
				if short := recipe.Missing(have); len(short) > 0 {
					return workflow.Eligibility{Reason: "missing " + short.String()}, nil
				}
				return workflow.Eligibility{Eligible: true}, nil
			},
			Affects: func(acct common.Address) []contract.Call {
				calls := []contract.Call{a.Dishes.BalanceOf(acct)}
				for _, id := range recipe.Needs.IDs() {
					calls = append(calls, a.Pantry.BalanceOf(acct, id))
				}
				return calls
			},
		}
	})
}

// Deposit plants amount of SEED in the garden: staked for sSEED, or
// compounding in the greenhouse vault.
func (a *Academy) Deposit(amount *big.Int, compound bool) (*workflow.TwoStep, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive")
	}
	mode := "stake"
	if compound {
		mode = "compound"
	}
	approve := a.approval(a.Seed, "seed", a.dep.Garden, "garden", amount)
	deposit := a.flow(fmt.Sprintf("garden:deposit:%s:%s", mode, amount), func() workflow.Action {
		return workflow.Action{
			Call: func(acct common.Address) contract.Call { return a.Garden.Deposit(amount, acct, compound) },
			Check: workflow.AllOf(
				workflow.AllowanceAtLeast(a.Seed, a.dep.Garden, amount),
				workflow.BalanceAtLeast(a.Seed, amount),
			),
			Options: func(common.Address) []txn.SubmitOption {
				return []txn.SubmitOption{txn.RequireAllowance(a.Seed, a.dep.Garden, amount)}
			},
			Affects: func(acct common.Address) []contract.Call {
				return []contract.Call{
					a.Seed.BalanceOf(acct),
					a.Seed.Allowance(acct, a.dep.Garden),
					a.StakedSeed.BalanceOf(acct),
					a.Greenhouse.BalanceOf(acct),
					a.Garden.TotalStaked(),
				}
			},
		}
	})
	return a.twoStep(approve, deposit, a.Seed, a.dep.Garden, amount), nil
}

// Harvest claims staking rewards; it is blocked while none have accrued.
func (a *Academy) Harvest() *workflow.Workflow {
	return a.flow("garden:harvest", func() workflow.Action {
		return workflow.Action{
			Call:  func(common.Address) contract.Call { return a.Garden.Harvest() },
			Check: workflow.Positive("rewards to harvest", a.Garden.EarnedRewards),
			Affects: func(acct common.Address) []contract.Call {
				return []contract.Call{a.Seed.BalanceOf(acct), a.Garden.EarnedRewards(acct)}
			},
		}
	})
}

// Uproot withdraws everything planted: vault shares are redeemed from the
// greenhouse, otherwise the staked SEED is redeemed from the garden.
func (a *Academy) Uproot(ctx context.Context) (*workflow.Workflow, error) {
	acct, err := a.Account()
	if err != nil {
		return nil, err
	}
	shares, err := a.reads.Refetch(ctx, a.Greenhouse.BalanceOf(acct))
	if err != nil {
		return nil, err
	}
	if n := uintOf(shares); n.Sign() > 0 {
		return a.flow("garden:uproot:vault:"+n.String(), func() workflow.Action {
			return workflow.Action{
				Call:    func(acct common.Address) contract.Call { return a.Greenhouse.Redeem(n, acct, acct) },
				Check:   workflow.AtLeast("vault shares", a.Greenhouse.BalanceOf, n),
				Affects: a.gardenReads,
			}
		}), nil
	}

	staked, err := a.reads.Refetch(ctx, a.StakedSeed.BalanceOf(acct))
	if err != nil {
		return nil, err
	}
	n := uintOf(staked)
	if n.Sign() == 0 {
		return nil, ErrNothingPlanted
	}
	return a.flow("garden:uproot:stake:"+n.String(), func() workflow.Action {
		return workflow.Action{
			Call:    func(common.Address) contract.Call { return a.Garden.Redeem(n) },
			Check:   workflow.BalanceAtLeast(a.StakedSeed, n),
			Affects: a.gardenReads,
		}
	}), nil
}

func (a *Academy) gardenReads(acct common.Address) []contract.Call {
	return []contract.Call{
		a.Seed.BalanceOf(acct),
		a.StakedSeed.BalanceOf(acct),
		a.Greenhouse.BalanceOf(acct),
		a.Garden.TotalStaked(),
	}
}
