package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/ui"
)

var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "Buy ingredients with KITCHEN",
}

var shopPricesCmd = &cobra.Command{
	Use:     "prices",
	Aliases: []string{"list"},
	Short:   "List ingredients, their price and what you hold",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()

		ac := s.Academy
		price, err := ac.Reads().Get(cmd.Context(), ac.Pantry.PricePerIngredient())
		if err != nil {
			return fmt.Errorf("reading ingredient price: %w", err)
		}
		have, err := ac.PantryContents(cmd.Context(), s.Wallet.Addr())
		if err != nil {
			return err
		}

		tbl := ui.NewTable(
			ui.Column{Title: "ID", Width: 4},
			ui.Column{Title: "INGREDIENT"},
			ui.Column{Title: "PRICE"},
			ui.Column{Title: "HAVE"},
		)
		for _, ing := range contract.Ingredients {
			tbl.AddRow(
				fmt.Sprint(ing.ID),
				ing.Name,
				ui.Amount(chain.FormatEther(price.Uint()), "KITCHEN"),
				have[ing.ID].String(),
			)
		}
		fmt.Fprint(cmd.OutOrStdout(), tbl.Render())
		return nil
	},
}

var shopBuyCmd = &cobra.Command{
	Use:   "buy <ingredient=amount>...",
	Short: "Buy ingredients, approving KITCHEN first when needed",
	Example: `  academy shop buy egg=2 cheese=1
  academy shop buy 1=2 3=1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		basket, err := contract.ParseBasket(args)
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.require("kitchen_token", "ingredients"); err != nil {
			return err
		}

		order, err := s.Academy.Shop(cmd.Context(), basket)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s for %s\n", ui.Info("buying"), basket, ui.Amount(chain.FormatEther(order.Cost), "KITCHEN"))
		if r, ok := contract.MatchRecipe(basket); ok {
			fmt.Fprintln(out, ui.Meta("  exactly what "+r.Name+" needs"))
		}

		d := &driver{Out: out, Prompt: s.prompt}
		return d.twoStep(cmd.Context(), order.Flow, s.Wallet.Addr(), "KITCHEN approval", "purchase")
	},
}

func init() {
	shopCmd.AddCommand(shopPricesCmd, shopBuyCmd)
}
