package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trustless-academy/academy/internal/config"
	"github.com/trustless-academy/academy/internal/logging"
	"github.com/trustless-academy/academy/internal/readcache"
	"github.com/trustless-academy/academy/internal/ui"
	"github.com/trustless-academy/academy/internal/workflow"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/trustless-academy/academy/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir      string
	cfg         *config.Config
	logger      = zap.NewNop()
	verbose     bool
	useLocal    bool
	metricsAddr string
	assumeYes   bool
	walletName  string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "academy",
	Short: "Terminal client for the Trustless Academy tutorials",
	Long: `academy drives the Trustless Academy tutorials from a terminal.

  Claim KITCHEN and SEED from the faucets, buy ingredients, cook dishes
  and plant SEED in the garden. Every transaction is simulated before
  signing and followed until it is confirmed.

The network comes from the config (default sepolia) or ACADEMY_NETWORK;
--local targets a node on 127.0.0.1:8545.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		if logger, err = logging.New(verbose); err != nil {
			return err
		}
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if useLocal {
			cfg.Network = config.Local
		}
		if metricsAddr != "" {
			cfg.MetricsAddr = metricsAddr
		}
		return nil
	},
}

// Execute runs the root command and exits with status 1 on any error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Err(errorText(err)))
		os.Exit(1)
	}
}

// errorText prefers the workflow description of err and falls back to the
// error itself when there is nothing more specific to say.
func errorText(err error) string {
	var read *readcache.ReadError
	if errors.As(err, &read) {
		return err.Error()
	}
	if d := workflow.Describe(err); d != workflow.GenericNotice {
		return d
	}
	return err.Error()
}

func init() {
	if envDir := os.Getenv("ACADEMY_CONFIG_DIR"); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.academy)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&useLocal, "local", false, "use the local node instead of the configured network")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")
	rootCmd.PersistentFlags().StringVarP(&walletName, "wallet", "w", "", "wallet to use (default: the default wallet)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "sign without asking for confirmation")

	rootCmd.AddCommand(
		statusCmd,
		faucetCmd,
		shopCmd,
		ovenCmd,
		gardenCmd,
		walletCmd,
		networkCmd,
		configCmd,
	)
}
