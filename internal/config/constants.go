package config

import "time"

// Network names.
const (
	Sepolia = "sepolia"
	Local   = "local"
)

// Contract keys under contracts.<network>, also the stem of the
// ACADEMY_<KEY>_ADDRESS overrides.
const (
	KitchenToken    = "kitchen_token"
	Ingredients     = "ingredients"
	DishNFT         = "dish_nft"
	SeedToken       = "seed_token"
	StakedSeedToken = "staked_seed_token"
	GardenDeposit   = "garden_deposit"
	Greenhouse      = "greenhouse"
)

// ContractKeys lists every contract key in display order.
var ContractKeys = []string{
	KitchenToken, Ingredients, DishNFT, SeedToken, StakedSeedToken, GardenDeposit, Greenhouse,
}

// Timeouts used by cmd.
const (
	RPCSelectTimeout = 10 * time.Second // endpoint probing
	ReadTimeout      = 15 * time.Second // one-shot status reads
	ClaimTimeout     = 10 * time.Minute // submit plus confirmation of one flow
)
