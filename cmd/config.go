package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustless-academy/academy/internal/config"
	"github.com/trustless-academy/academy/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change settings in config.json under the config directory.

Every key can also be set for one run through the environment, e.g.
ACADEMY_NETWORK=local or ACADEMY_POLL_INTERVAL_MS=1000. Contract addresses
use ACADEMY_<NAME>_ADDRESS, e.g. ACADEMY_KITCHEN_TOKEN_ADDRESS.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl := ui.NewTable(ui.Column{Title: "KEY"}, ui.Column{Title: "VALUE"})
		for _, s := range cfg.Settings() {
			v := s.Value
			if v == "" {
				v = ui.Meta("—")
			}
			tbl.AddRow(s.Key, v)
		}
		fmt.Fprint(cmd.OutOrStdout(), tbl.Render())
		fmt.Fprintln(cmd.OutOrStdout(), ui.Meta("config directory: "+cfg.Dir()))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Example: `  academy config set alchemy_key <key>
  academy config set rpc_algorithm failover
  academy config set contracts.sepolia.kitchen_token 0x...
  academy config set contracts.sepolia.kitchen_token ""   # clear`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := updateConfig(func(c *config.Config) error { return c.Set(args[0], args[1]) }); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("set "+args[0]))
		return nil
	},
}

// updateConfig applies fn to a freshly loaded config and saves it, so
// per-run flags such as --local are not persisted.
func updateConfig(fn func(*config.Config) error) error {
	c, err := config.Load(cfg.Dir())
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return c.Save()
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
