package cmd

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/trustless-academy/academy/internal/ui"
	"github.com/trustless-academy/academy/internal/wallet"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show balances, pantry, garden and faucet cooldowns",
	Long: `Show the active wallet's view of every tutorial.

Values that could not be refreshed are shown with their last known value
marked stale, or as unknown. With --watch the view stays open and follows
new blocks until you press q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()

		sp := ui.NewSpinner(cmd.ErrOrStderr(), "reading "+s.Network.Name+"…")
		sp.Start()
		st, err := s.Academy.Status(cmd.Context())
		sp.Stop()
		if err != nil {
			return err
		}

		if statusWatch {
			title := ui.Network(s.Network.Name, s.Network.ChainID) + "  " + ui.Meta(s.Wallet.Name)
			return ui.RunStatus(cmd.Context(), title, st, s.Academy.Snapshot, cfg.PollInterval(), tea.WithOutput(os.Stderr))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", ui.Network(s.Network.Name, s.Network.ChainID), ui.Meta(s.Wallet.Name))
		if s.Wallet.Type == wallet.TypeWatchOnly {
			fmt.Fprintln(out, ui.Meta("watch-only wallet, transactions disabled"))
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, ui.RenderStatus(st, time.Now()))
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "keep the view open and refresh it on every block")
}
