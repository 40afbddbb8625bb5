package chaintest

import (
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trustless-academy/academy/internal/contract"
)

// LocalChainID matches a local hardhat/anvil node.
const LocalChainID = 31337

// Addresses of the academy contracts on the fake chain.
var (
	KitchenAddr     = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	IngredientsAddr = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	DishesAddr      = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	SeedAddr        = common.HexToAddress("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9")
	StakedSeedAddr  = common.HexToAddress("0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9")
	GardenAddr      = common.HexToAddress("0x5FC8d32690cc91D4c39d9d3abcBD16989F875707")
	GreenhouseAddr  = common.HexToAddress("0x0165878A594ca255338adfa4d48449f69242Eb8F")
)

var ether = big.NewInt(1_000_000_000_000_000_000)

// Ether returns n whole tokens in base units.
func Ether(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), ether) }

type token struct {
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
	lastClaim  map[common.Address]time.Time
}

func newToken() *token {
	return &token{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
		lastClaim:  make(map[common.Address]time.Time),
	}
}

func (t *token) balance(a common.Address) *big.Int {
	if b, ok := t.balances[a]; ok {
		return b
	}
	return new(big.Int)
}

func (t *token) allowance(owner, spender common.Address) *big.Int {
	if m, ok := t.allowances[owner]; ok {
		if v, ok := m[spender]; ok {
			return v
		}
	}
	return new(big.Int)
}

func (t *token) setAllowance(owner, spender common.Address, v *big.Int) {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(v)
}

func (t *token) credit(a common.Address, v *big.Int) {
	t.balances[a] = new(big.Int).Add(t.balance(a), v)
}

func (t *token) debit(a common.Address, v *big.Int) {
	t.balances[a] = new(big.Int).Sub(t.balance(a), v)
}

// spend checks that spender may move amount of owner's tokens.
func (t *token) spend(owner, spender common.Address, amount *big.Int) error {
	if t.allowance(owner, spender).Cmp(amount) < 0 {
		return Revert("ERC20: insufficient allowance")
	}
	if t.balance(owner).Cmp(amount) < 0 {
		return Revert("ERC20: transfer amount exceeds balance")
	}
	return nil
}

func (t *token) take(owner, spender common.Address, amount *big.Int) {
	t.setAllowance(owner, spender, new(big.Int).Sub(t.allowance(owner, spender), amount))
	t.debit(owner, amount)
}

// Academy is a chain with every academy contract deployed.
type Academy struct {
	*Chain

	Cooldown     time.Duration
	FaucetAmount *big.Int
	Price        *big.Int

	kitchen, seed, staked *token

	pantry map[common.Address]map[int64]*big.Int
	dishes map[common.Address]int64

	rewards     map[common.Address]*big.Int
	vaultShares map[common.Address]*big.Int
	vaultAssets *big.Int
	vaultSupply *big.Int
	totalStaked *big.Int
}

// NewAcademy deploys the kitchen, garden and greenhouse contracts with a 24h
// faucet cooldown, 100 token faucet and 10 token ingredient price. Stakers
// earn 1% of their stake per block and the greenhouse grows 1% per block.
func NewAcademy(clk clock.Clock) *Academy {
	a := &Academy{
		Chain:        New(LocalChainID, clk),
		Cooldown:     24 * time.Hour,
		FaucetAmount: Ether(100),
		Price:        Ether(10),
		kitchen:      newToken(),
		seed:         newToken(),
		staked:       newToken(),
		pantry:       make(map[common.Address]map[int64]*big.Int),
		dishes:       make(map[common.Address]int64),
		rewards:      make(map[common.Address]*big.Int),
		vaultShares:  make(map[common.Address]*big.Int),
		vaultAssets:  new(big.Int),
		vaultSupply:  new(big.Int),
		totalStaked:  new(big.Int),
	}
	a.Install(KitchenAddr, a.tokenContract(contract.KitchenTokenKind, a.kitchen))
	a.Install(SeedAddr, a.tokenContract(contract.SeedTokenKind, a.seed))
	a.Install(StakedSeedAddr, &Contract{
		Kind:  contract.StakedSeedTokenKind,
		Views: map[string]View{"balanceOf": a.balanceView(a.staked)},
	})
	a.Install(IngredientsAddr, a.ingredients())
	a.Install(DishesAddr, a.dishNFT())
	a.Install(GardenAddr, a.garden())
	a.Install(GreenhouseAddr, a.greenhouse())
	a.OnMine(a.accrue)
	return a
}

func (a *Academy) now() time.Time { return a.clk.Now() }

func (a *Academy) canClaim(t *token, user common.Address) bool {
	last, ok := t.lastClaim[user]
	return !ok || !a.now().Before(last.Add(a.Cooldown))
}

func (a *Academy) balanceView(t *token) View {
	return func(_ common.Address, args []any) ([]any, error) {
		return []any{new(big.Int).Set(t.balance(args[0].(common.Address)))}, nil
	}
}

func (a *Academy) tokenContract(kind *contract.Kind, t *token) *Contract {
	views := map[string]View{
		"balanceOf": a.balanceView(t),
		"allowance": func(_ common.Address, args []any) ([]any, error) {
			return []any{new(big.Int).Set(t.allowance(args[0].(common.Address), args[1].(common.Address)))}, nil
		},
		"canClaimFaucet": func(_ common.Address, args []any) ([]any, error) {
			return []any{a.canClaim(t, args[0].(common.Address))}, nil
		},
		"timeUntilNextClaim": func(_ common.Address, args []any) ([]any, error) {
			user := args[0].(common.Address)
			if a.canClaim(t, user) {
				return []any{new(big.Int)}, nil
			}
			left := t.lastClaim[user].Add(a.Cooldown).Sub(a.now())
			secs := int64((left + time.Second - 1) / time.Second)
			return []any{big.NewInt(secs)}, nil
		},
		"FAUCET_AMOUNT": func(common.Address, []any) ([]any, error) {
			return []any{new(big.Int).Set(a.FaucetAmount)}, nil
		},
	}
	if _, ok := kind.Method("lastFaucetClaim"); ok {
		views["lastFaucetClaim"] = func(_ common.Address, args []any) ([]any, error) {
			last, ok := t.lastClaim[args[0].(common.Address)]
			if !ok {
				return []any{new(big.Int)}, nil
			}
			return []any{big.NewInt(last.Unix())}, nil
		}
	}
	return &Contract{
		Kind:  kind,
		Views: views,
		Writes: map[string]Write{
			"approve": {
				Apply: func(from common.Address, args []any) {
					t.setAllowance(from, args[0].(common.Address), args[1].(*big.Int))
				},
			},
			"faucet": {
				Check: func(from common.Address, _ []any) error {
					if !a.canClaim(t, from) {
						return Revert("Faucet: cooldown active")
					}
					return nil
				},
				Apply: func(from common.Address, _ []any) {
					t.credit(from, a.FaucetAmount)
					t.lastClaim[from] = a.now()
				},
			},
		},
	}
}

func (a *Academy) pantryOf(owner common.Address, id int64) *big.Int {
	if m, ok := a.pantry[owner]; ok {
		if v, ok := m[id]; ok {
			return v
		}
	}
	return new(big.Int)
}

func (a *Academy) addPantry(owner common.Address, id int64, delta *big.Int) {
	if a.pantry[owner] == nil {
		a.pantry[owner] = make(map[int64]*big.Int)
	}
	a.pantry[owner][id] = new(big.Int).Add(a.pantryOf(owner, id), delta)
}

func batchTotal(ids, amounts []*big.Int) (*big.Int, error) {
	if len(ids) != len(amounts) || len(ids) == 0 {
		return nil, Revert("ERC1155: ids and amounts length mismatch")
	}
	total := new(big.Int)
	for i, id := range ids {
		if id.Sign() <= 0 || id.Int64() > 3 {
			return nil, Revert("Invalid ingredient")
		}
		total.Add(total, amounts[i])
	}
	return total, nil
}

func (a *Academy) ingredients() *Contract {
	cost := func(args []any) (*big.Int, error) {
		total, err := batchTotal(args[0].([]*big.Int), args[1].([]*big.Int))
		if err != nil {
			return nil, err
		}
		return total.Mul(total, a.Price), nil
	}
	return &Contract{
		Kind: contract.IngredientsKind,
		Views: map[string]View{
			"balanceOf": func(_ common.Address, args []any) ([]any, error) {
				return []any{new(big.Int).Set(a.pantryOf(args[0].(common.Address), args[1].(*big.Int).Int64()))}, nil
			},
			"PRICE_PER_INGREDIENT": func(common.Address, []any) ([]any, error) {
				return []any{new(big.Int).Set(a.Price)}, nil
			},
		},
		Writes: map[string]Write{
			"buyBatch": {
				Check: func(from common.Address, args []any) error {
					c, err := cost(args)
					if err != nil {
						return err
					}
					return a.kitchen.spend(from, IngredientsAddr, c)
				},
				Apply: func(from common.Address, args []any) {
					c, _ := cost(args)
					a.kitchen.take(from, IngredientsAddr, c)
					ids, amounts := args[0].([]*big.Int), args[1].([]*big.Int)
					for i, id := range ids {
						a.addPantry(from, id.Int64(), amounts[i])
					}
				},
			},
		},
	}
}

func (a *Academy) dishNFT() *Contract {
	return &Contract{
		Kind: contract.DishNFTKind,
		Views: map[string]View{
			"balanceOf": func(_ common.Address, args []any) ([]any, error) {
				return []any{big.NewInt(a.dishes[args[0].(common.Address)])}, nil
			},
		},
		Writes: map[string]Write{
			"cook": {
				Check: func(from common.Address, args []any) error {
					ids, amounts := args[0].([]*big.Int), args[1].([]*big.Int)
					if _, err := batchTotal(ids, amounts); err != nil {
						return err
					}
					for i, id := range ids {
						if a.pantryOf(from, id.Int64()).Cmp(amounts[i]) < 0 {
							return Revert("Not enough ingredients")
						}
					}
					return nil
				},
				Apply: func(from common.Address, args []any) {
					ids, amounts := args[0].([]*big.Int), args[1].([]*big.Int)
					for i, id := range ids {
						a.addPantry(from, id.Int64(), new(big.Int).Neg(amounts[i]))
					}
					a.dishes[from]++
				},
			},
		},
	}
}

func (a *Academy) reward(acct common.Address) *big.Int {
	if r, ok := a.rewards[acct]; ok {
		return r
	}
	return new(big.Int)
}

func (a *Academy) shares(acct common.Address) *big.Int {
	if s, ok := a.vaultShares[acct]; ok {
		return s
	}
	return new(big.Int)
}

func (a *Academy) toAssets(shares *big.Int) *big.Int {
	if a.vaultSupply.Sign() == 0 {
		return new(big.Int).Set(shares)
	}
	out := new(big.Int).Mul(shares, a.vaultAssets)
	return out.Quo(out, a.vaultSupply)
}

func (a *Academy) toShares(assets *big.Int) *big.Int {
	if a.vaultSupply.Sign() == 0 || a.vaultAssets.Sign() == 0 {
		return new(big.Int).Set(assets)
	}
	out := new(big.Int).Mul(assets, a.vaultSupply)
	return out.Quo(out, a.vaultAssets)
}

func (a *Academy) garden() *Contract {
	return &Contract{
		Kind: contract.GardenDepositKind,
		Views: map[string]View{
			"earnedRewards": func(from common.Address, _ []any) ([]any, error) {
				return []any{new(big.Int).Set(a.reward(from))}, nil
			},
			"totalStaked": func(common.Address, []any) ([]any, error) {
				return []any{new(big.Int).Set(a.totalStaked)}, nil
			},
		},
		Writes: map[string]Write{
			"deposit": {
				Check: func(from common.Address, args []any) error {
					amount := args[0].(*big.Int)
					if amount.Sign() <= 0 {
						return Revert("Cannot deposit 0")
					}
					return a.seed.spend(from, GardenAddr, amount)
				},
				Apply: func(from common.Address, args []any) {
					amount, receiver, compound := args[0].(*big.Int), args[1].(common.Address), args[2].(bool)
					a.seed.take(from, GardenAddr, amount)
					a.totalStaked.Add(a.totalStaked, amount)
					if compound {
						minted := a.toShares(amount)
						a.vaultShares[receiver] = new(big.Int).Add(a.shares(receiver), minted)
						a.vaultSupply.Add(a.vaultSupply, minted)
						a.vaultAssets.Add(a.vaultAssets, amount)
						return
					}
					a.staked.credit(receiver, amount)
				},
			},
			"harvest": {
				Check: func(from common.Address, _ []any) error {
					if a.reward(from).Sign() == 0 {
						return Revert("No rewards to harvest")
					}
					return nil
				},
				Apply: func(from common.Address, _ []any) {
					a.seed.credit(from, a.reward(from))
					delete(a.rewards, from)
				},
			},
			"redeem": {
				Check: func(from common.Address, args []any) error {
					amount := args[0].(*big.Int)
					if amount.Sign() <= 0 || a.staked.balance(from).Cmp(amount) < 0 {
						return Revert("Insufficient staked balance")
					}
					return nil
				},
				Apply: func(from common.Address, args []any) {
					amount := args[0].(*big.Int)
					a.staked.debit(from, amount)
					a.totalStaked.Sub(a.totalStaked, amount)
					a.seed.credit(from, amount)
				},
			},
		},
	}
}

func (a *Academy) greenhouse() *Contract {
	return &Contract{
		Kind: contract.GreenhouseKind,
		Views: map[string]View{
			"balanceOf": func(_ common.Address, args []any) ([]any, error) {
				return []any{new(big.Int).Set(a.shares(args[0].(common.Address)))}, nil
			},
			"convertToAssets": func(_ common.Address, args []any) ([]any, error) {
				return []any{a.toAssets(args[0].(*big.Int))}, nil
			},
		},
		Writes: map[string]Write{
			"redeem": {
				Check: func(from common.Address, args []any) error {
					shares, owner := args[0].(*big.Int), args[2].(common.Address)
					if from != owner {
						return Revert("ERC4626: caller is not owner")
					}
					if shares.Sign() <= 0 || a.shares(owner).Cmp(shares) < 0 {
						return Revert("ERC4626: redeem more than max")
					}
					return nil
				},
				Apply: func(_ common.Address, args []any) {
					shares, receiver, owner := args[0].(*big.Int), args[1].(common.Address), args[2].(common.Address)
					assets := a.toAssets(shares)
					a.vaultShares[owner] = new(big.Int).Sub(a.shares(owner), shares)
					a.vaultSupply.Sub(a.vaultSupply, shares)
					a.vaultAssets.Sub(a.vaultAssets, assets)
					if a.totalStaked.Cmp(assets) >= 0 {
						a.totalStaked.Sub(a.totalStaked, assets)
					} else {
						a.totalStaked.SetInt64(0)
					}
					a.seed.credit(receiver, assets)
				},
			},
		},
	}
}

func (a *Academy) accrue(uint64) {
	for acct, bal := range a.staked.balances {
		if bal.Sign() > 0 {
			a.rewards[acct] = new(big.Int).Add(a.reward(acct), new(big.Int).Quo(bal, big.NewInt(100)))
		}
	}
	if a.vaultSupply.Sign() > 0 {
		a.vaultAssets.Add(a.vaultAssets, new(big.Int).Quo(a.vaultAssets, big.NewInt(100)))
	}
}

// --- test setup and inspection ---

// Fund mints kitchen and seed tokens to acct.
func (a *Academy) Fund(acct common.Address, kitchen, seed *big.Int) {
	a.Locked(func() {
		if kitchen != nil {
			a.kitchen.credit(acct, kitchen)
		}
		if seed != nil {
			a.seed.credit(acct, seed)
		}
	})
}

// Stock puts ingredients straight into acct's pantry.
func (a *Academy) Stock(acct common.Address, id, amount int64) {
	a.Locked(func() { a.addPantry(acct, id, big.NewInt(amount)) })
}

// SetLastClaim backdates the last faucet claim on the kitchen (seed=false)
// or seed token.
func (a *Academy) SetLastClaim(seed bool, acct common.Address, at time.Time) {
	a.Locked(func() {
		t := a.kitchen
		if seed {
			t = a.seed
		}
		t.lastClaim[acct] = at
	})
}

// KitchenBalance returns acct's kitchen token balance.
func (a *Academy) KitchenBalance(acct common.Address) *big.Int {
	var out *big.Int
	a.Locked(func() { out = new(big.Int).Set(a.kitchen.balance(acct)) })
	return out
}

// SeedBalance returns acct's seed token balance.
func (a *Academy) SeedBalance(acct common.Address) *big.Int {
	var out *big.Int
	a.Locked(func() { out = new(big.Int).Set(a.seed.balance(acct)) })
	return out
}

// StakedBalance returns acct's sSEED balance.
func (a *Academy) StakedBalance(acct common.Address) *big.Int {
	var out *big.Int
	a.Locked(func() { out = new(big.Int).Set(a.staked.balance(acct)) })
	return out
}

// VaultShares returns acct's greenhouse shares.
func (a *Academy) VaultShares(acct common.Address) *big.Int {
	var out *big.Int
	a.Locked(func() { out = new(big.Int).Set(a.shares(acct)) })
	return out
}

// Allowance returns the allowance owner gave spender on the kitchen or
// seed token at tokenAddr.
func (a *Academy) Allowance(tokenAddr, owner, spender common.Address) *big.Int {
	var out *big.Int
	a.Locked(func() {
		t := a.kitchen
		if tokenAddr == SeedAddr {
			t = a.seed
		}
		out = new(big.Int).Set(t.allowance(owner, spender))
	})
	return out
}

// PantryCount returns how many of ingredient id acct holds.
func (a *Academy) PantryCount(acct common.Address, id int64) int64 {
	var out int64
	a.Locked(func() { out = a.pantryOf(acct, id).Int64() })
	return out
}

// DishCount returns how many dishes acct has cooked.
func (a *Academy) DishCount(acct common.Address) int64 {
	var out int64
	a.Locked(func() { out = a.dishes[acct] })
	return out
}
