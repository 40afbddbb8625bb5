package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an ERC-20 deployment. KitchenToken and SeedToken also expose the
// faucet methods; StakedSeedToken only supports balance reads.
type Token struct {
	Kind    *Kind
	Address common.Address
}

func NewKitchenToken(addr common.Address) Token    { return Token{KitchenTokenKind, addr} }
func NewSeedToken(addr common.Address) Token       { return Token{SeedTokenKind, addr} }
func NewStakedSeedToken(addr common.Address) Token { return Token{StakedSeedTokenKind, addr} }

func (t Token) call(from common.Address, method string, args ...any) Call {
	return Call{Kind: t.Kind, To: t.Address, From: from, Method: method, Args: args}
}

func (t Token) BalanceOf(owner common.Address) Call {
	return t.call(common.Address{}, "balanceOf", owner)
}

func (t Token) Allowance(owner, spender common.Address) Call {
	return t.call(common.Address{}, "allowance", owner, spender)
}

func (t Token) Approve(spender common.Address, amount *big.Int) Call {
	return t.call(common.Address{}, "approve", spender, amount)
}

// HasFaucet reports whether the token exposes faucet().
func (t Token) HasFaucet() bool {
	_, ok := t.Kind.Method("faucet")
	return ok
}

func (t Token) CanClaimFaucet(user common.Address) Call {
	return t.call(common.Address{}, "canClaimFaucet", user)
}

func (t Token) TimeUntilNextClaim(user common.Address) Call {
	return t.call(common.Address{}, "timeUntilNextClaim", user)
}

// HasLastClaim reports whether the token exposes lastFaucetClaim(address).
func (t Token) HasLastClaim() bool {
	_, ok := t.Kind.Method("lastFaucetClaim")
	return ok
}

func (t Token) LastFaucetClaim(user common.Address) Call {
	return t.call(common.Address{}, "lastFaucetClaim", user)
}

func (t Token) Faucet() Call { return t.call(common.Address{}, "faucet") }

func (t Token) FaucetAmount() Call { return t.call(common.Address{}, "FAUCET_AMOUNT") }

// Pantry is the Ingredients ERC-1155.
type Pantry struct{ Address common.Address }

func (p Pantry) call(method string, args ...any) Call {
	return Call{Kind: IngredientsKind, To: p.Address, Method: method, Args: args}
}

func (p Pantry) BalanceOf(owner common.Address, id int64) Call {
	return p.call("balanceOf", owner, big.NewInt(id))
}

func (p Pantry) BuyBatch(ids, amounts []*big.Int) Call { return p.call("buyBatch", ids, amounts) }

func (p Pantry) PricePerIngredient() Call { return p.call("PRICE_PER_INGREDIENT") }

// Dishes is the DishNFT ERC-721.
type Dishes struct{ Address common.Address }

func (d Dishes) BalanceOf(owner common.Address) Call {
	return Call{Kind: DishNFTKind, To: d.Address, Method: "balanceOf", Args: []any{owner}}
}

func (d Dishes) Cook(ids, amounts []*big.Int) Call {
	return Call{Kind: DishNFTKind, To: d.Address, Method: "cook", Args: []any{ids, amounts}}
}

// Garden is the GardenDeposit staking contract. Its reward views read
// msg.sender, so they carry the account as From.
type Garden struct{ Address common.Address }

func (g Garden) call(from common.Address, method string, args ...any) Call {
	return Call{Kind: GardenDepositKind, To: g.Address, From: from, Method: method, Args: args}
}

func (g Garden) Deposit(amount *big.Int, receiver common.Address, compound bool) Call {
	return g.call(common.Address{}, "deposit", amount, receiver, compound)
}

func (g Garden) Harvest() Call { return g.call(common.Address{}, "harvest") }

func (g Garden) Redeem(amount *big.Int) Call { return g.call(common.Address{}, "redeem", amount) }

func (g Garden) EarnedRewards(account common.Address) Call {
	return g.call(account, "earnedRewards")
}

func (g Garden) TotalStaked() Call { return g.call(common.Address{}, "totalStaked") }

// Vault is the Greenhouse ERC-4626.
type Vault struct{ Address common.Address }

func (v Vault) call(method string, args ...any) Call {
	return Call{Kind: GreenhouseKind, To: v.Address, Method: method, Args: args}
}

func (v Vault) BalanceOf(owner common.Address) Call { return v.call("balanceOf", owner) }

func (v Vault) ConvertToAssets(shares *big.Int) Call { return v.call("convertToAssets", shares) }

func (v Vault) Redeem(shares *big.Int, receiver, owner common.Address) Call {
	return v.call("redeem", shares, receiver, owner)
}
