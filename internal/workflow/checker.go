package workflow

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/readcache"
)

// Checker decides whether account may run the action now. Checkers must
// read through reads.Refetch: the chain is the authority, not the cache.
type Checker func(ctx context.Context, reads *readcache.Cache, account common.Address) (Eligibility, error)

// Always is the checker of actions with no precondition.
func Always(context.Context, *readcache.Cache, common.Address) (Eligibility, error) {
	return Eligibility{Eligible: true}, nil
}

// Faucet checks canClaimFaucet and locates the cooldown window. It prefers
// lastFaucetClaim and otherwise derives the window start from
// timeUntilNextClaim.
func Faucet(token contract.Token, cooldown time.Duration, clk clock.Clock) Checker {
	if clk == nil {
		clk = clock.New()
	}
	return func(ctx context.Context, reads *readcache.Cache, account common.Address) (Eligibility, error) {
		can, err := reads.Refetch(ctx, token.CanClaimFaucet(account))
		if err != nil {
			return Eligibility{}, err
		}
		if can.Bool() {
			return Eligibility{Eligible: true, Cooldown: cooldown}, nil
		}

		left, err := reads.Refetch(ctx, token.TimeUntilNextClaim(account))
		if err != nil {
			return Eligibility{}, err
		}
		secs := left.Uint()
		if secs == nil {
			secs = new(big.Int)
		}
		remaining := cooldown
		if secs.IsInt64() && secs.Int64() < int64(cooldown/time.Second) {
			remaining = time.Duration(secs.Int64()) * time.Second
		}
		if remaining <= 0 {
			// block time trails the local clock
			remaining = time.Second
		}
		last := clk.Now().Add(remaining - cooldown)

		if token.HasLastClaim() {
			v, err := reads.Refetch(ctx, token.LastFaucetClaim(account))
			if err != nil {
				return Eligibility{}, err
			}
			if ts := v.Uint(); ts != nil && ts.Sign() > 0 {
				onChain := time.Unix(ts.Int64(), 0)
				if onChain.Add(cooldown).After(clk.Now()) {
					last = onChain
				}
			}
		}
		return Eligibility{LastClaim: last, Cooldown: cooldown, Reason: "faucet cooldown active"}, nil
	}
}

// AtLeast blocks until the uint read by call is at least min. what names
// the quantity in the reason.
func AtLeast(what string, call func(account common.Address) contract.Call, min *big.Int) Checker {
	return func(ctx context.Context, reads *readcache.Cache, account common.Address) (Eligibility, error) {
		v, err := reads.Refetch(ctx, call(account))
		if err != nil {
			return Eligibility{}, err
		}
		have := v.Uint()
		if have == nil {
			have = new(big.Int)
		}
		if have.Cmp(min) < 0 {
			return Eligibility{Reason: fmt.Sprintf("%s is %s, need %s",
				what, chain.FormatEther(have), chain.FormatEther(min))}, nil
		}
		return Eligibility{Eligible: true}, nil
	}
}

// AllowanceAtLeast requires spender to be approved for amount of token.
func AllowanceAtLeast(token contract.Token, spender common.Address, amount *big.Int) Checker {
	return AtLeast("allowance", func(a common.Address) contract.Call { return token.Allowance(a, spender) }, amount)
}

// BalanceAtLeast requires a token balance of at least amount.
func BalanceAtLeast(token contract.Token, amount *big.Int) Checker {
	return AtLeast("balance", token.BalanceOf, amount)
}

// Positive requires the read to be non-zero.
func Positive(what string, call func(account common.Address) contract.Call) Checker {
	return func(ctx context.Context, reads *readcache.Cache, account common.Address) (Eligibility, error) {
		v, err := reads.Refetch(ctx, call(account))
		if err != nil {
			return Eligibility{}, err
		}
		if n := v.Uint(); n == nil || n.Sign() == 0 {
			return Eligibility{Reason: "no " + what}, nil
		}
		return Eligibility{Eligible: true}, nil
	}
}

// AllOf runs checkers in order and returns the first ineligible result.
func AllOf(checks ...Checker) Checker {
	return func(ctx context.Context, reads *readcache.Cache, account common.Address) (Eligibility, error) {
		out := Eligibility{Eligible: true}
		for _, c := range checks {
			e, err := c(ctx, reads, account)
			if err != nil {
				return Eligibility{}, err
			}
			if !e.Eligible {
				return e, nil
			}
			if e.Cooldown > 0 {
				out.Cooldown = e.Cooldown
			}
		}
		return out, nil
	}
}
