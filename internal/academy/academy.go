// Package academy wires the tutorial flows (faucets, shop, oven, garden) to
// claim workflows over the deployed contracts.
package academy

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/metrics"
	"github.com/trustless-academy/academy/internal/readcache"
	"github.com/trustless-academy/academy/internal/txn"
	"github.com/trustless-academy/academy/internal/workflow"
)

// Deployment holds the contract addresses of one network.
type Deployment struct {
	Kitchen     common.Address
	Ingredients common.Address
	Dishes      common.Address
	Seed        common.Address
	StakedSeed  common.Address
	Garden      common.Address
	Greenhouse  common.Address
}

// Missing names the contracts without an address.
func (d Deployment) Missing() []string {
	var out []string
	for _, c := range []struct {
		name string
		addr common.Address
	}{
		{"kitchen_token", d.Kitchen},
		{"ingredients", d.Ingredients},
		{"dish_nft", d.Dishes},
		{"seed_token", d.Seed},
		{"staked_seed_token", d.StakedSeed},
		{"garden_deposit", d.Garden},
		{"greenhouse", d.Greenhouse},
	} {
		if c.addr == (common.Address{}) {
			out = append(out, c.name)
		}
	}
	return out
}

// Faucet names accepted by Faucet.
const (
	KitchenFaucet = "kitchen"
	SeedFaucet    = "seed"
)

// Academy builds workflows for the active account. Workflows are created
// once per action and reused, so an action in flight stays busy across
// calls.
type Academy struct {
	dep      Deployment
	sub      *txn.Submitter
	watcher  *txn.Watcher
	reads    *readcache.Cache
	clk      clock.Clock
	log      *zap.Logger
	metrics  *metrics.Registry
	cooldown time.Duration

	Kitchen    contract.Token
	Seed       contract.Token
	StakedSeed contract.Token
	Pantry     contract.Pantry
	Dishes     contract.Dishes
	Garden     contract.Garden
	Greenhouse contract.Vault

	mu        sync.Mutex
	flows     map[string]*workflow.Workflow
	approvals map[string]*big.Int // latest requested amount per approve action
}

// Option configures an Academy.
type Option func(*Academy)

func WithClock(clk clock.Clock) Option { return func(a *Academy) { a.clk = clk } }

func WithLogger(log *zap.Logger) Option { return func(a *Academy) { a.log = log } }

func WithMetrics(m *metrics.Registry) Option { return func(a *Academy) { a.metrics = m } }

// WithCooldown sets the faucet cooldown window; 24h by default.
func WithCooldown(d time.Duration) Option { return func(a *Academy) { a.cooldown = d } }

// New creates the academy over one deployment.
func New(dep Deployment, sub *txn.Submitter, watcher *txn.Watcher, reads *readcache.Cache, opts ...Option) *Academy {
	a := &Academy{
		dep:        dep,
		sub:        sub,
		watcher:    watcher,
		reads:      reads,
		clk:        clock.New(),
		log:        zap.NewNop(),
		cooldown:   24 * time.Hour,
		Kitchen:    contract.NewKitchenToken(dep.Kitchen),
		Seed:       contract.NewSeedToken(dep.Seed),
		StakedSeed: contract.NewStakedSeedToken(dep.StakedSeed),
		Pantry:     contract.Pantry{Address: dep.Ingredients},
		Dishes:     contract.Dishes{Address: dep.Dishes},
		Garden:     contract.Garden{Address: dep.Garden},
		Greenhouse: contract.Vault{Address: dep.Greenhouse},
		flows:      make(map[string]*workflow.Workflow),
		approvals:  make(map[string]*big.Int),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Reads is the shared read cache.
func (a *Academy) Reads() *readcache.Cache { return a.reads }

// Account is the active wallet address.
func (a *Academy) Account() (common.Address, error) {
	acct, ok := a.sub.Account()
	if !ok {
		return common.Address{}, txn.ErrNoAccount
	}
	return acct, nil
}

// SwitchAccount changes the signer and abandons every workflow so each
// starts over from Idle for the new account.
func (a *Academy) SwitchAccount(signer txn.Signer) {
	a.sub.SetSigner(signer)
	a.mu.Lock()
	flows := make([]*workflow.Workflow, 0, len(a.flows))
	for _, w := range a.flows {
		flows = append(flows, w)
	}
	a.mu.Unlock()
	for _, w := range flows {
		w.Abandon()
	}
}

// flow returns the workflow for name, building it on first use. Actions
// whose parameters change (amounts, recipes) carry them in the name.
func (a *Academy) flow(name string, build func() workflow.Action) *workflow.Workflow {
	a.mu.Lock()
	defer a.mu.Unlock()
	if w, ok := a.flows[name]; ok {
		return w
	}
	act := build()
	act.Name = name
	w := workflow.New(act, a.sub, a.watcher, a.reads,
		workflow.WithClock(a.clk),
		workflow.WithLogger(a.log),
		workflow.WithMetrics(a.metrics))
	a.flows[name] = w
	return w
}

// Faucet returns the claim workflow for the kitchen or seed faucet.
func (a *Academy) Faucet(which string) (*workflow.Workflow, error) {
	var token contract.Token
	switch which {
	case KitchenFaucet, "":
		token, which = a.Kitchen, KitchenFaucet
	case SeedFaucet:
		token = a.Seed
	default:
		return nil, fmt.Errorf("unknown faucet %q (want kitchen or seed)", which)
	}
	return a.flow("faucet:"+which, func() workflow.Action {
		return workflow.Action{
			Call:  func(common.Address) contract.Call { return token.Faucet() },
			Check: workflow.Faucet(token, a.cooldown, a.clk),
			Affects: func(acct common.Address) []contract.Call {
				return []contract.Call{
					token.BalanceOf(acct),
					token.CanClaimFaucet(acct),
					token.TimeUntilNextClaim(acct),
				}
			},
		}
	}), nil
}

// approval is the approve half of a two-step flow. There is one approve
// action per token and spender, so approvals never race each other; it
// approves the amount of the latest request.
func (a *Academy) approval(token contract.Token, tokenName string, spender common.Address, spenderName string, amount *big.Int) *workflow.Workflow {
	name := fmt.Sprintf("approve:%s:%s", tokenName, spenderName)
	a.mu.Lock()
	a.approvals[name] = amount
	a.mu.Unlock()
	return a.flow(name, func() workflow.Action {
		return workflow.Action{
			Call: func(common.Address) contract.Call {
				a.mu.Lock()
				defer a.mu.Unlock()
				return token.Approve(spender, a.approvals[name])
			},
			Affects: func(acct common.Address) []contract.Call {
				return []contract.Call{token.Allowance(acct, spender)}
			},
		}
	})
}

func (a *Academy) twoStep(approve, act *workflow.Workflow, token contract.Token, spender common.Address, amount *big.Int) *workflow.TwoStep {
	ts := workflow.NewTwoStep(approve, act, func(acct common.Address) contract.Call {
		return token.Allowance(acct, spender)
	}, amount, a.reads)
	ts.Clock = a.clk
	return ts
}

func uintOf(v readcache.Value) *big.Int {
	if n := v.Uint(); n != nil {
		return n
	}
	return new(big.Int)
}

// read fetches a uint view through the cache, waiting for the first value.
func (a *Academy) read(ctx context.Context, call contract.Call) (*big.Int, error) {
	v, err := a.reads.Get(ctx, call)
	if err != nil {
		return nil, err
	}
	return uintOf(v), nil
}
