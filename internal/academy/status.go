package academy

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/readcache"
	"github.com/trustless-academy/academy/internal/workflow"
)

// Reading is one displayed value. A read that failed keeps its last good
// value with Stale set; Value is nil when nothing was ever fetched.
type Reading struct {
	Value *big.Int
	Stale bool
	Err   error
}

// Known reports whether a value is available.
func (r Reading) Known() bool { return r.Value != nil }

// Status is the account's view of every tutorial.
type Status struct {
	Account common.Address

	Kitchen       Reading
	Seed          Reading
	StakedSeed    Reading
	VaultShares   Reading
	VaultAssets   Reading
	Rewards       Reading
	TotalStaked   Reading
	Dishes        Reading
	Pantry        map[int64]Reading
	KitchenFaucet workflow.Eligibility
	SeedFaucet    workflow.Eligibility
	FaucetErr     error
}

// Status reads balances, pantry, garden position and faucet eligibility.
// Read failures degrade to stale or unknown readings instead of failing.
func (a *Academy) Status(ctx context.Context) (*Status, error) {
	acct, err := a.Account()
	if err != nil {
		return nil, err
	}
	s := a.collect(acct, func(call contract.Call) (readcache.Value, error) {
		return a.reads.Get(ctx, call)
	})
	if s.KitchenFaucet, err = workflow.Faucet(a.Kitchen, a.cooldown, a.clk)(ctx, a.reads, acct); err != nil {
		s.FaucetErr = err
	}
	if s.SeedFaucet, err = workflow.Faucet(a.Seed, a.cooldown, a.clk)(ctx, a.reads, acct); err != nil && s.FaucetErr == nil {
		s.FaucetErr = err
	}
	return s, nil
}

// Snapshot is Status from the cache alone; it never waits on the network.
// Unknown or stale values are refreshed in the background and show up in a
// later snapshot. Faucet windows are carried over from prev and only flip
// to eligible once the cached canClaimFaucet says so.
func (a *Academy) Snapshot(prev *Status) (*Status, error) {
	acct, err := a.Account()
	if err != nil {
		return nil, err
	}
	s := a.collect(acct, a.reads.Read)
	if prev != nil && prev.Account == acct {
		s.KitchenFaucet, s.SeedFaucet, s.FaucetErr = prev.KitchenFaucet, prev.SeedFaucet, prev.FaucetErr
	}
	s.KitchenFaucet = a.cachedFaucet(a.Kitchen, acct, s.KitchenFaucet)
	s.SeedFaucet = a.cachedFaucet(a.Seed, acct, s.SeedFaucet)
	return s, nil
}

func (a *Academy) cachedFaucet(token contract.Token, acct common.Address, prev workflow.Eligibility) workflow.Eligibility {
	v, err := a.reads.Read(token.CanClaimFaucet(acct))
	if err == nil && v.Known && !v.Stale && v.Bool() {
		return workflow.Eligibility{Eligible: true, Cooldown: a.cooldown}
	}
	return prev
}

func (a *Academy) collect(acct common.Address, read func(contract.Call) (readcache.Value, error)) *Status {
	reading := func(call contract.Call) Reading {
		v, err := read(call)
		if err == nil {
			err = v.Err
		}
		if err != nil {
			a.log.Debug("status read failed", zap.String("call", call.String()), zap.Error(err))
		}
		r := Reading{Stale: v.Stale, Err: err}
		if v.Known {
			r.Value = uintOf(v)
		}
		return r
	}
	s := &Status{
		Account:     acct,
		Kitchen:     reading(a.Kitchen.BalanceOf(acct)),
		Seed:        reading(a.Seed.BalanceOf(acct)),
		StakedSeed:  reading(a.StakedSeed.BalanceOf(acct)),
		VaultShares: reading(a.Greenhouse.BalanceOf(acct)),
		Rewards:     reading(a.Garden.EarnedRewards(acct)),
		TotalStaked: reading(a.Garden.TotalStaked()),
		Dishes:      reading(a.Dishes.BalanceOf(acct)),
		Pantry:      make(map[int64]Reading, len(contract.Ingredients)),
	}
	for _, ing := range contract.Ingredients {
		s.Pantry[ing.ID] = reading(a.Pantry.BalanceOf(acct, ing.ID))
	}
	if s.VaultShares.Known() && s.VaultShares.Value.Sign() > 0 {
		s.VaultAssets = reading(a.Greenhouse.ConvertToAssets(s.VaultShares.Value))
	}
	return s
}

// Watch registers the account's balances for refresh on every new head.
func (a *Academy) Watch(acct common.Address) {
	calls := []contract.Call{
		a.Kitchen.BalanceOf(acct),
		a.Seed.BalanceOf(acct),
		a.StakedSeed.BalanceOf(acct),
		a.Greenhouse.BalanceOf(acct),
		a.Garden.EarnedRewards(acct),
		a.Kitchen.CanClaimFaucet(acct),
		a.Seed.CanClaimFaucet(acct),
	}
	for _, ing := range contract.Ingredients {
		calls = append(calls, a.Pantry.BalanceOf(acct, ing.ID))
	}
	a.reads.Watch(calls...)
}
