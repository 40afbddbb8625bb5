// Package config loads academy settings from ~/.academy/config.json and the
// ACADEMY_* environment, and resolves the active network and deployment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/trustless-academy/academy/internal/academy"
)

const (
	configName = "config"
	configFile = configName + ".json"
	walletFile = "wallets.json"
	envPrefix  = "ACADEMY"
)

var (
	ErrUnknownKey     = errors.New("unknown config key")
	ErrUnknownNetwork = errors.New("unknown network")
	ErrNoAlchemyKey   = errors.New("sepolia needs alchemy_key (ACADEMY_ALCHEMY_KEY) or rpc_url")
)

var networks = map[string]builtin{
	Sepolia: {
		chainID: 11155111,
		rpc:     func(key string) string { return "https://eth-sepolia.g.alchemy.com/v2/" + key },
		ws:      func(key string) string { return "wss://eth-sepolia.g.alchemy.com/v2/" + key },
		contracts: map[string]common.Address{
			SeedToken:       common.HexToAddress("0x8ceffb90082883dEB607f0e1d0e7a8917d93aa94"),
			StakedSeedToken: common.HexToAddress("0xE80907939621d528324ee4AeB0a47aA405721677"),
			GardenDeposit:   common.HexToAddress("0xa45919615Dc28423122055be3e1d4766946E4d4e"),
			Greenhouse:      common.HexToAddress("0x109d9933a50b9e6982357D3Fa3901ca3A024c237"),
		},
	},
	Local: {
		chainID: 31337,
		rpc:     func(string) string { return "http://127.0.0.1:8545" },
	},
}

// Load reads config from dir (or creates defaults). dir defaults to ~/.academy.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".academy")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{configDir: dir, v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.CustomRPCs == nil {
		cfg.CustomRPCs = make(map[string][]string)
	}
	if cfg.Contracts == nil {
		cfg.Contracts = make(map[string]map[string]string)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", Sepolia)
	v.SetDefault("alchemy_key", "")
	v.SetDefault("rpc_url", "")
	v.SetDefault("ws_url", "")
	v.SetDefault("rpc_algorithm", "fastest")
	v.SetDefault("default_wallet", "")
	v.SetDefault("poll_interval_ms", 4000)
	v.SetDefault("poll_jitter_ms", 500)
	v.SetDefault("confirm_attempts", 90)
	v.SetDefault("confirmations", 1)
	v.SetDefault("drop_timeout_s", 180)
	v.SetDefault("faucet_cooldown_s", 86400)
	v.SetDefault("metrics_addr", "")
}

// Save writes the config to disk as JSON. Values taken from the environment
// are written too.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Dir returns the config directory.
func (c *Config) Dir() string { return c.configDir }

// WalletsPath is where the wallet list is stored.
func (c *Config) WalletsPath() string { return filepath.Join(c.configDir, walletFile) }

// AddRPC adds a custom RPC URL for a network.
func (c *Config) AddRPC(network, url string) error {
	if slices.Contains(c.CustomRPCs[network], url) {
		return fmt.Errorf("RPC %s already exists for network %s", url, network)
	}
	c.CustomRPCs[network] = append(c.CustomRPCs[network], url)
	return nil
}

// RemoveRPC removes a custom RPC URL for a network.
func (c *Config) RemoveRPC(network, url string) error {
	rpcs := c.CustomRPCs[network]
	idx := slices.Index(rpcs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found for network %s", url, network)
	}
	c.CustomRPCs[network] = slices.Delete(rpcs, idx, idx+1)
	return nil
}

// Resolve returns the active network.
func (c *Config) Resolve() (Network, error) {
	b, ok := networks[c.Network]
	if !ok {
		return Network{}, fmt.Errorf("%w %q (want %s or %s)", ErrUnknownNetwork, c.Network, Sepolia, Local)
	}
	n := Network{Name: c.Network, ChainID: big.NewInt(b.chainID), WSURL: c.WSURL}

	switch {
	case c.RPCURL != "":
		n.RPCURLs = append(n.RPCURLs, c.RPCURL)
	case c.Network == Sepolia && c.AlchemyKey == "":
		if len(c.CustomRPCs[c.Network]) == 0 {
			return Network{}, ErrNoAlchemyKey
		}
	default:
		n.RPCURLs = append(n.RPCURLs, b.rpc(c.AlchemyKey))
	}
	for _, u := range c.CustomRPCs[c.Network] {
		if !slices.Contains(n.RPCURLs, u) {
			n.RPCURLs = append(n.RPCURLs, u)
		}
	}
	if n.WSURL == "" && b.ws != nil && c.AlchemyKey != "" {
		n.WSURL = b.ws(c.AlchemyKey)
	}
	return n, nil
}

// Deployment returns the contract addresses of the active network. Built-in
// addresses are overridden by contracts.<network>.<key>, which is overridden
// by ACADEMY_<KEY>_ADDRESS.
func (c *Config) Deployment() (academy.Deployment, error) {
	b, ok := networks[c.Network]
	if !ok {
		return academy.Deployment{}, fmt.Errorf("%w %q", ErrUnknownNetwork, c.Network)
	}
	addrs := make(map[string]common.Address, len(ContractKeys))
	for _, key := range ContractKeys {
		raw := c.Contracts[c.Network][key]
		if c.v != nil {
			if env := c.v.GetString(key + "_address"); env != "" {
				raw = env
			}
		}
		switch {
		case raw != "":
			if !common.IsHexAddress(raw) {
				return academy.Deployment{}, fmt.Errorf("%s: invalid address %q", key, raw)
			}
			addrs[key] = common.HexToAddress(raw)
		default:
			addrs[key] = b.contracts[key]
		}
	}
	return academy.Deployment{
		Kitchen:     addrs[KitchenToken],
		Ingredients: addrs[Ingredients],
		Dishes:      addrs[DishNFT],
		Seed:        addrs[SeedToken],
		StakedSeed:  addrs[StakedSeedToken],
		Garden:      addrs[GardenDeposit],
		Greenhouse:  addrs[Greenhouse],
	}, nil
}

// PollInterval is the head and receipt poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// PollJitter is the ± spread applied to PollInterval.
func (c *Config) PollJitter() time.Duration { return time.Duration(c.PollJitterMS) * time.Millisecond }

// DropTimeout is how long an unknown hash is tolerated.
func (c *Config) DropTimeout() time.Duration { return time.Duration(c.DropTimeoutS) * time.Second }

// FaucetCooldown is the claim window the local contracts were deployed with.
func (c *Config) FaucetCooldown() time.Duration {
	return time.Duration(c.FaucetCooldownS) * time.Second
}

// Setting is one key/value pair for display.
type Setting struct {
	Key   string
	Value string
}

// Settings lists every scalar key and the contract overrides, sorted by key.
// The Alchemy key is masked.
func (c *Config) Settings() []Setting {
	out := []Setting{
		{"network", c.Network},
		{"alchemy_key", mask(c.AlchemyKey)},
		{"rpc_url", c.RPCURL},
		{"ws_url", c.WSURL},
		{"rpc_algorithm", c.RPCAlgorithm},
		{"default_wallet", c.DefaultWallet},
		{"poll_interval_ms", strconv.Itoa(c.PollIntervalMS)},
		{"poll_jitter_ms", strconv.Itoa(c.PollJitterMS)},
		{"confirm_attempts", strconv.Itoa(c.ConfirmAttempts)},
		{"confirmations", strconv.Itoa(c.Confirmations)},
		{"drop_timeout_s", strconv.Itoa(c.DropTimeoutS)},
		{"faucet_cooldown_s", strconv.Itoa(c.FaucetCooldownS)},
		{"metrics_addr", c.MetricsAddr},
	}
	for network, contracts := range c.Contracts {
		for name, addr := range contracts {
			out = append(out, Setting{"contracts." + network + "." + name, addr})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Set assigns one key from its string form, validating it first.
func (c *Config) Set(key, value string) error {
	if rest, ok := strings.CutPrefix(key, "contracts."); ok {
		return c.setContract(rest, value)
	}

	ints := map[string]*int{
		"poll_interval_ms":  &c.PollIntervalMS,
		"poll_jitter_ms":    &c.PollJitterMS,
		"confirm_attempts":  &c.ConfirmAttempts,
		"confirmations":     &c.Confirmations,
		"drop_timeout_s":    &c.DropTimeoutS,
		"faucet_cooldown_s": &c.FaucetCooldownS,
	}
	if p, ok := ints[key]; ok {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
		}
		*p = n
		return nil
	}

	switch key {
	case "network":
		if _, ok := networks[value]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownNetwork, value)
		}
		c.Network = value
	case "rpc_algorithm":
		if value != "fastest" && value != "failover" {
			return fmt.Errorf("rpc_algorithm must be fastest or failover, got %q", value)
		}
		c.RPCAlgorithm = value
	case "alchemy_key":
		c.AlchemyKey = value
	case "rpc_url":
		c.RPCURL = value
	case "ws_url":
		c.WSURL = value
	case "default_wallet":
		c.DefaultWallet = value
	case "metrics_addr":
		c.MetricsAddr = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func (c *Config) setContract(path, value string) error {
	network, name, ok := strings.Cut(path, ".")
	if !ok {
		return fmt.Errorf("%w: contracts.%s (want contracts.<network>.<name>)", ErrUnknownKey, path)
	}
	if _, known := networks[network]; !known {
		return fmt.Errorf("%w %q", ErrUnknownNetwork, network)
	}
	if !slices.Contains(ContractKeys, name) {
		return fmt.Errorf("%w: contract %q (want one of %s)", ErrUnknownKey, name, strings.Join(ContractKeys, ", "))
	}
	if value != "" && !common.IsHexAddress(value) {
		return fmt.Errorf("invalid address %q", value)
	}
	if c.Contracts[network] == nil {
		c.Contracts[network] = make(map[string]string)
	}
	if value == "" {
		delete(c.Contracts[network], name)
		return nil
	}
	c.Contracts[network][name] = common.HexToAddress(value).Hex()
	return nil
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
