package config

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all academy settings. Every field can be overridden from the
// environment with the ACADEMY_ prefix, e.g. ACADEMY_NETWORK=local.
type Config struct {
	Network         string                       `json:"network"           mapstructure:"network"` // "sepolia" | "local"
	AlchemyKey      string                       `json:"alchemy_key"       mapstructure:"alchemy_key"`
	RPCURL          string                       `json:"rpc_url"           mapstructure:"rpc_url"` // replaces the network default
	WSURL           string                       `json:"ws_url"            mapstructure:"ws_url"`
	RPCAlgorithm    string                       `json:"rpc_algorithm"     mapstructure:"rpc_algorithm"` // "fastest" | "failover"
	CustomRPCs      map[string][]string          `json:"custom_rpcs"       mapstructure:"custom_rpcs"`
	DefaultWallet   string                       `json:"default_wallet"    mapstructure:"default_wallet"`
	PollIntervalMS  int                          `json:"poll_interval_ms"  mapstructure:"poll_interval_ms"`
	PollJitterMS    int                          `json:"poll_jitter_ms"    mapstructure:"poll_jitter_ms"`
	ConfirmAttempts int                          `json:"confirm_attempts"  mapstructure:"confirm_attempts"`
	Confirmations   int                          `json:"confirmations"     mapstructure:"confirmations"`
	DropTimeoutS    int                          `json:"drop_timeout_s"    mapstructure:"drop_timeout_s"`
	FaucetCooldownS int                          `json:"faucet_cooldown_s" mapstructure:"faucet_cooldown_s"`
	MetricsAddr     string                       `json:"metrics_addr"      mapstructure:"metrics_addr"`
	Contracts       map[string]map[string]string `json:"contracts"         mapstructure:"contracts"` // network -> name -> address

	// internal: config dir path used for Save()
	configDir string
	v         *viper.Viper
}

// Network is a resolved chain to talk to.
type Network struct {
	Name    string
	ChainID *big.Int
	RPCURLs []string // preferred first
	WSURL   string   // empty when heads are polled
}

// builtin is what the academy ships with for one network.
type builtin struct {
	chainID   int64
	rpc       func(key string) string
	ws        func(key string) string
	contracts map[string]common.Address
}
