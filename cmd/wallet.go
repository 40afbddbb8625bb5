package cmd

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/trustless-academy/academy/internal/config"
	"github.com/trustless-academy/academy/internal/ui"
)

var walletKeyFlag string

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallets",
}

var walletImportCmd = &cobra.Command{
	Use:     "import <name> [address]",
	Aliases: []string{"add"},
	Short:   "Import a signing wallet, or a watch-only one from an address",
	Long: `Import a wallet.

With an address the wallet is watch-only: status works, transactions do
not. Otherwise the private key comes from --key or a hidden prompt and is
kept in the OS keychain, or an encrypted file under the config directory.`,
	Example: `  academy wallet import alice
  academy wallet import viewer 0x70997970C51812dc3A010C7d01b50e0d17dc79C8`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		mgr := walletManager()
		out := cmd.OutOrStdout()

		if len(args) == 2 {
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("invalid address %q", args[1])
			}
			addr := common.HexToAddress(args[1])
			if err := mgr.AddWatchOnly(name, addr); err != nil {
				return err
			}
			fmt.Fprintln(out, ui.Success(fmt.Sprintf("watch-only wallet %q added: %s", name, ui.Addr(addr.Hex()))))
			return nil
		}

		key := walletKeyFlag
		if key == "" {
			var err error
			if key, err = keyring.TerminalPrompt("Private key (hidden)"); err != nil {
				return err
			}
		}
		w, err := mgr.AddWithKey(name, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ui.Success(fmt.Sprintf("signing wallet %q added: %s", name, ui.Addr(w.Address))))
		if len(mgr.List()) == 1 {
			fmt.Fprintln(out, ui.Meta("it is your only wallet and will be used by default"))
		} else {
			fmt.Fprintln(out, ui.Meta("make it the default with: academy wallet use "+name))
		}
		return nil
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wallets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		wallets := walletManager().List()
		if len(wallets) == 0 {
			fmt.Fprintln(out, ui.Info("no wallets yet, import one with: academy wallet import <name>"))
			return nil
		}

		tbl := ui.NewTable(
			ui.Column{Title: "NAME", Width: 16},
			ui.Column{Title: "ADDRESS", Width: 44},
			ui.Column{Title: "TYPE", Width: 12},
			ui.Column{Title: "DEFAULT", Width: 8},
		)
		for _, w := range wallets {
			def := ""
			if w.IsDefault || w.Name == cfg.DefaultWallet {
				def = ui.StyleSuccess.Render("✓")
			}
			tbl.AddRow(ui.Val(w.Name), ui.Addr(w.Address), ui.Meta(w.Type), def)
		}
		fmt.Fprint(out, tbl.Render())
		return nil
	},
}

var walletUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Set the default wallet, choosing from a list when no name is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := walletManager()
		var name string
		if len(args) == 1 {
			name = args[0]
		} else {
			var items []ui.PickerItem
			for _, w := range mgr.List() {
				items = append(items, ui.PickerItem{
					Label:    w.Name,
					SubLabel: ui.TruncateAddr(w.Address) + " " + w.Type,
					Value:    w.Name,
					Current:  w.IsDefault,
				})
			}
			var err error
			if name, err = ui.Pick("Default wallet", items); err != nil {
				return err
			}
			if name == "" {
				return nil
			}
		}

		if err := mgr.SetDefault(name); err != nil {
			return err
		}
		if err := updateConfig(func(c *config.Config) error { return c.Set("default_wallet", name) }); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("default wallet set to %q", name)))
		return nil
	},
}

var walletRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a wallet and its stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		p := &ui.Prompter{In: os.Stdin, Out: cmd.ErrOrStderr(), Yes: assumeYes}
		ok, err := p.Confirm(fmt.Sprintf("Remove wallet %q? A signing key is deleted for good.", name))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Meta("cancelled"))
			return nil
		}
		if err := walletManager().Remove(name); err != nil {
			return err
		}
		if cfg.DefaultWallet == name {
			if err := updateConfig(func(c *config.Config) error { return c.Set("default_wallet", "") }); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("wallet %q removed", name)))
		return nil
	},
}

func init() {
	walletImportCmd.Flags().StringVar(&walletKeyFlag, "key", "", "hex private key (prompted when omitted)")
	walletCmd.AddCommand(walletImportCmd, walletListCmd, walletUseCmd, walletRemoveCmd)
}
