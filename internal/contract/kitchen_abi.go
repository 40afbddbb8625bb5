package contract

// On-chain kitchen contracts: an ERC-20 with a faucet, an ERC-1155 pantry and
// an ERC-721 dish collection that burns ingredients to mint.
var (
	KitchenTokenKind = Register("kitchen-token", "KitchenToken",
		"ERC-20 kitchen currency with a 24h faucet", kitchenTokenABI)
	IngredientsKind = Register("ingredients", "Ingredients",
		"ERC-1155 pantry: Egg (1), Cheese (2), Bacon (3)", ingredientsABI)
	DishNFTKind = Register("dish-nft", "DishNFT",
		"ERC-721 dishes minted by burning ingredients", dishNFTABI)
)

const kitchenTokenABI = `[
  {"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"canClaimFaucet","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
  {"type":"function","name":"timeUntilNextClaim","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"lastFaucetClaim","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"faucet","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"FAUCET_AMOUNT","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const ingredientsABI = `[
  {"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"buyBatch","inputs":[{"name":"ids","type":"uint256[]"},{"name":"amounts","type":"uint256[]"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"PRICE_PER_INGREDIENT","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const dishNFTABI = `[
  {"type":"function","name":"balanceOf","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"cook","inputs":[{"name":"ingredientIds","type":"uint256[]"},{"name":"amounts","type":"uint256[]"}],"outputs":[{"name":"tokenId","type":"uint256"}],"stateMutability":"nonpayable"}
]`
