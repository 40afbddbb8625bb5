package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustless-academy/academy/internal/config"
)

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, config.Sepolia, cfg.Network)
	assert.Equal(t, "fastest", cfg.RPCAlgorithm)
	assert.Equal(t, 4*time.Second, cfg.PollInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.PollJitter())
	assert.Equal(t, 90, cfg.ConfirmAttempts)
	assert.Equal(t, 1, cfg.Confirmations)
	assert.Equal(t, 3*time.Minute, cfg.DropTimeout())
	assert.Equal(t, 24*time.Hour, cfg.FaucetCooldown())
}

func TestSaveAndReloadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("network", "local"))
	require.NoError(t, cfg.Set("default_wallet", "alice"))
	require.NoError(t, cfg.Set("poll_interval_ms", "250"))
	require.NoError(t, cfg.Set("contracts.local.kitchen_token", "0x5fbdb2315678afecb367f032d93f642f64180aa3"))
	require.NoError(t, cfg.Save())

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Local, reloaded.Network)
	assert.Equal(t, "alice", reloaded.DefaultWallet)
	assert.Equal(t, 250*time.Millisecond, reloaded.PollInterval())
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", reloaded.Contracts["local"]["kitchen_token"])
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Save())

	t.Setenv("ACADEMY_NETWORK", "local")
	t.Setenv("ACADEMY_CONFIRMATIONS", "3")

	cfg, err = config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Local, cfg.Network)
	assert.Equal(t, 3, cfg.Confirmations)
}

func TestMalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o600))

	_, err := config.Load(dir)
	assert.Error(t, err)
}

func TestSetRejectsBadValues(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, cfg.Set("nope", "1"), config.ErrUnknownKey)
	assert.ErrorIs(t, cfg.Set("network", "mainnet"), config.ErrUnknownNetwork)
	assert.Error(t, cfg.Set("confirmations", "-1"))
	assert.Error(t, cfg.Set("poll_jitter_ms", "soon"))
	assert.Error(t, cfg.Set("rpc_algorithm", "random"))
	assert.ErrorIs(t, cfg.Set("contracts.local.oven", "0x01"), config.ErrUnknownKey)
	assert.ErrorIs(t, cfg.Set("contracts.kitchen_token", "0x01"), config.ErrUnknownKey)
	assert.Error(t, cfg.Set("contracts.local.kitchen_token", "not-an-address"))
}

func TestSetEmptyContractClearsOverride(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cfg.Set("contracts.sepolia.greenhouse", "0x0000000000000000000000000000000000000001"))
	require.NoError(t, cfg.Set("contracts.sepolia.greenhouse", ""))
	assert.NotContains(t, cfg.Contracts["sepolia"], "greenhouse")
}

func TestSettingsMaskAlchemyKey(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.Set("alchemy_key", "abcdefgh1234"))
	require.NoError(t, cfg.Set("contracts.local.ingredients", "0x0000000000000000000000000000000000000002"))

	got := map[string]string{}
	for _, s := range cfg.Settings() {
		got[s.Key] = s.Value
	}
	assert.Equal(t, "********1234", got["alchemy_key"])
	assert.Equal(t, "0x0000000000000000000000000000000000000002", got["contracts.local.ingredients"])
	assert.Equal(t, "sepolia", got["network"])
}

func TestAddAndRemoveRPC(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cfg.AddRPC("sepolia", "https://rpc1.example"))
	require.NoError(t, cfg.AddRPC("sepolia", "https://rpc2.example"))
	assert.Error(t, cfg.AddRPC("sepolia", "https://rpc1.example"))

	require.NoError(t, cfg.RemoveRPC("sepolia", "https://rpc1.example"))
	assert.Equal(t, []string{"https://rpc2.example"}, cfg.CustomRPCs["sepolia"])
	assert.Error(t, cfg.RemoveRPC("sepolia", "https://rpc1.example"))
}

func TestResolveSepolia(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	_, err = cfg.Resolve()
	assert.ErrorIs(t, err, config.ErrNoAlchemyKey)

	require.NoError(t, cfg.Set("alchemy_key", "k3y"))
	require.NoError(t, cfg.AddRPC("sepolia", "https://backup.example"))
	n, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), n.ChainID.Int64())
	assert.Equal(t, []string{"https://eth-sepolia.g.alchemy.com/v2/k3y", "https://backup.example"}, n.RPCURLs)
	assert.Equal(t, "wss://eth-sepolia.g.alchemy.com/v2/k3y", n.WSURL)
}

func TestResolveSepoliaCustomRPCOnly(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.AddRPC("sepolia", "https://backup.example"))

	n, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://backup.example"}, n.RPCURLs)
	assert.Empty(t, n.WSURL)
}

func TestResolveLocal(t *testing.T) {
	t.Setenv("ACADEMY_NETWORK", "local")
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	n, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, int64(31337), n.ChainID.Int64())
	assert.Equal(t, []string{"http://127.0.0.1:8545"}, n.RPCURLs)
	assert.Empty(t, n.WSURL)
}

func TestResolveRPCURLOverride(t *testing.T) {
	t.Setenv("ACADEMY_RPC_URL", "http://node.internal:8545")
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	n, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://node.internal:8545"}, n.RPCURLs)
}

func TestDeploymentSepoliaBuiltins(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	dep, err := cfg.Deployment()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x8ceffb90082883dEB607f0e1d0e7a8917d93aa94"), dep.Seed)
	assert.Equal(t, common.HexToAddress("0xa45919615Dc28423122055be3e1d4766946E4d4e"), dep.Garden)
	assert.Equal(t, []string{"kitchen_token", "ingredients", "dish_nft"}, dep.Missing())
}

func TestDeploymentOverrides(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.Set("contracts.sepolia.kitchen_token", "0x0000000000000000000000000000000000000011"))
	require.NoError(t, cfg.Set("contracts.sepolia.seed_token", "0x0000000000000000000000000000000000000022"))
	t.Setenv("ACADEMY_SEED_TOKEN_ADDRESS", "0x0000000000000000000000000000000000000033")

	dep, err := cfg.Deployment()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x11"), dep.Kitchen)
	assert.Equal(t, common.HexToAddress("0x33"), dep.Seed, "environment wins over the config file")
}

func TestDeploymentRejectsBadEnvAddress(t *testing.T) {
	t.Setenv("ACADEMY_DISH_NFT_ADDRESS", "0xnope")
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	_, err = cfg.Deployment()
	assert.ErrorContains(t, err, "dish_nft")
}
