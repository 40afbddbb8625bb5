package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/ui"
)

var noCompound bool

var gardenCmd = &cobra.Command{
	Use:   "garden",
	Short: "Plant SEED, harvest rewards and uproot",
}

var gardenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show your stake, vault position and rewards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()
		st, err := s.Academy.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderGarden(st))
		return nil
	},
}

var gardenDepositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Plant SEED in the greenhouse vault, or stake it with --no-compound",
	Long: `Deposit SEED into the garden.

By default the deposit compounds in the greenhouse vault and you receive
vault shares. With --no-compound the SEED is staked for sSEED and rewards
accrue for harvesting.`,
	Example: "  academy garden deposit 25\n  academy garden deposit 10.5 --no-compound",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := chain.ParseEther(args[0])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.require("seed_token", "garden_deposit", "staked_seed_token", "greenhouse"); err != nil {
			return err
		}

		flow, err := s.Academy.Deposit(amount, !noCompound)
		if err != nil {
			return err
		}
		where := "the greenhouse"
		if noCompound {
			where = "the garden stake"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s into %s\n",
			ui.Info("planting"), ui.Amount(decimal.NewFromBigInt(amount, -chain.TokenDecimals).String(), "SEED"), where)

		d := &driver{Out: cmd.OutOrStdout(), Prompt: s.prompt}
		return d.twoStep(cmd.Context(), flow, s.Wallet.Addr(), "SEED approval", "deposit")
	},
}

var gardenHarvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Claim accrued staking rewards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.require("garden_deposit", "seed_token"); err != nil {
			return err
		}
		d := &driver{Out: cmd.OutOrStdout(), Prompt: s.prompt}
		return d.claim(cmd.Context(), s.Academy.Harvest(), "harvest")
	},
}

var gardenUprootCmd = &cobra.Command{
	Use:   "uproot",
	Short: "Withdraw everything planted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.require("garden_deposit", "staked_seed_token", "greenhouse"); err != nil {
			return err
		}
		wf, err := s.Academy.Uproot(cmd.Context())
		if err != nil {
			return err
		}
		d := &driver{Out: cmd.OutOrStdout(), Prompt: s.prompt}
		return d.claim(cmd.Context(), wf, "uproot")
	},
}

func init() {
	gardenDepositCmd.Flags().BoolVar(&noCompound, "no-compound", false, "stake for sSEED instead of compounding in the vault")
	gardenCmd.AddCommand(gardenStatusCmd, gardenDepositCmd, gardenHarvestCmd, gardenUprootCmd)
}
