package contract

// DeFi garden contracts: SEED and its staking receipt sSEED, the deposit
// contract that stakes SEED and pays rewards, and the ERC-4626 Greenhouse
// vault that compounds them.
var (
	SeedTokenKind = Register("seed-token", "SeedToken",
		"ERC-20 SEED with a 24h faucet", seedTokenABI)
	StakedSeedTokenKind = Register("staked-seed-token", "StakedSeedToken",
		"ERC-20 receipt for staked SEED", stakedSeedTokenABI)
	GardenDepositKind = Register("garden-deposit", "GardenDeposit",
		"stakes SEED, mints sSEED and accrues rewards", gardenDepositABI)
	GreenhouseKind = Register("greenhouse", "Greenhouse",
		"ERC-4626 vault auto-compounding staked SEED", greenhouseABI)
)

const seedTokenABI = `[
  {"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"canClaimFaucet","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
  {"type":"function","name":"timeUntilNextClaim","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"faucet","inputs":[],"outputs":[],"stateMutability":"nonpayable"}
]`

const stakedSeedTokenABI = `[
  {"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const gardenDepositABI = `[
  {"type":"function","name":"deposit","inputs":[{"name":"amount","type":"uint256"},{"name":"receiver","type":"address"},{"name":"compound","type":"bool"}],"outputs":[{"name":"shares","type":"uint256"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"harvest","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"redeem","inputs":[{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"earnedRewards","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"totalStaked","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const greenhouseABI = `[
  {"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"convertToAssets","inputs":[{"name":"shares","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"redeem","inputs":[{"name":"shares","type":"uint256"},{"name":"receiver","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable"}
]`
