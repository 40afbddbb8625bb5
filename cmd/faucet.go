package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/trustless-academy/academy/internal/academy"
	"github.com/trustless-academy/academy/internal/txn"
	"github.com/trustless-academy/academy/internal/ui"
	"github.com/trustless-academy/academy/internal/workflow"
)

var (
	faucetWait bool
	faucetTUI  bool
)

var faucetCmd = &cobra.Command{
	Use:   "faucet [kitchen|seed]",
	Short: "Claim KITCHEN or SEED from the daily faucet",
	Long: `Claim tokens from the kitchen (default) or seed faucet.

Each faucet can be claimed once per cooldown window. While on cooldown the
command prints the time left; --wait counts down and claims as soon as the
window ends, --tui shows the countdown and confirmation live.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{academy.KitchenFaucet, academy.SeedFaucet},
	RunE: func(cmd *cobra.Command, args []string) error {
		which := academy.KitchenFaucet
		if len(args) == 1 {
			which = args[0]
		}
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()

		need := "kitchen_token"
		if which == academy.SeedFaucet {
			need = "seed_token"
		}
		if err := s.require(need); err != nil {
			return err
		}
		wf, err := s.Academy.Faucet(which)
		if err != nil {
			return err
		}
		label := which + " faucet"

		if faucetTUI {
			return claimTUI(cmd, s, wf, label)
		}
		d := &driver{Out: cmd.OutOrStdout(), Prompt: s.prompt, Wait: faucetWait}
		return d.claim(cmd.Context(), wf, label)
	},
}

// claimTUI runs the claim under the live view. The signature is confirmed
// up front because the view owns the terminal while it runs.
func claimTUI(cmd *cobra.Command, s *session, wf *workflow.Workflow, label string) error {
	ok, err := s.prompt.Confirm(fmt.Sprintf("Claim from the %s with %s?", label, s.Wallet.Name))
	if err != nil {
		return err
	}
	if !ok {
		return txn.ErrUserRejected
	}
	s.prompt.Yes = true

	title := "Claim from the " + label
	return ui.RunClaim(cmd.Context(), wf, title, s.Wallet.Address, func(ctx context.Context) error {
		if _, err := wf.WaitEligible(ctx); err != nil {
			return err
		}
		_, err := wf.Submit(ctx)
		for errors.Is(err, txn.ErrStalled) {
			err = wf.KeepWaiting(ctx)
		}
		return err
	}, tea.WithOutput(os.Stderr))
}

func init() {
	faucetCmd.Flags().BoolVar(&faucetWait, "wait", false, "wait out the cooldown and claim when it ends")
	faucetCmd.Flags().BoolVar(&faucetTUI, "tui", false, "show the live claim view")
}
