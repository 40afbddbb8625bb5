package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"status"},
		{"faucet"},
		{"shop", "buy"},
		{"shop", "prices"},
		{"oven", "cook"},
		{"oven", "recipes"},
		{"garden", "deposit"},
		{"garden", "harvest"},
		{"garden", "uproot"},
		{"wallet", "import"},
		{"wallet", "use"},
		{"network", "rpc", "add"},
		{"config", "set"},
	} {
		c, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], c.Name())
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "verbose", "local", "metrics-addr", "yes", "wallet"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.NotNil(t, faucetCmd.Flags().Lookup("wait"))
	assert.NotNil(t, gardenDepositCmd.Flags().Lookup("no-compound"))
}

func TestConfigSetPersistsWithoutRunFlags(t *testing.T) {
	dir := t.TempDir()
	rootCmd.SetArgs([]string{"--config", dir, "--local", "config", "set", "rpc_algorithm", "failover"})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"--config", dir, "config", "show"})
	useLocal = false
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "failover", cfg.RPCAlgorithm)
	assert.Equal(t, "sepolia", cfg.Network, "--local applies to one run only")
}
