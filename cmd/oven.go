package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/ui"
)

var ovenCmd = &cobra.Command{
	Use:   "oven",
	Short: "Cook dishes from your ingredients",
}

var ovenRecipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List the recipes and what they need",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl := ui.NewTable(
			ui.Column{Title: "RECIPE"},
			ui.Column{Title: "NAME"},
			ui.Column{Title: "NEEDS"},
			ui.Column{Title: "", Width: 24},
		)
		for _, r := range contract.Recipes {
			tbl.AddRow(r.ID, r.Name, r.Needs.String(), ui.Meta(r.Description))
		}
		fmt.Fprint(cmd.OutOrStdout(), tbl.Render())
		return nil
	},
}

var ovenCookCmd = &cobra.Command{
	Use:     "cook <recipe>",
	Short:   "Burn a recipe's ingredients for a dish NFT",
	Example: "  academy oven cook cheese-omelette",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		recipe, ok := contract.RecipeByName(name)
		if !ok {
			return fmt.Errorf("unknown recipe %q, see academy oven recipes", name)
		}
		s, err := openSession(cmd.Context(), walletName)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.require("ingredients", "dish_nft"); err != nil {
			return err
		}

		d := &driver{Out: cmd.OutOrStdout(), Prompt: s.prompt}
		return d.claim(cmd.Context(), s.Academy.Cook(recipe), recipe.Name)
	},
}

func init() {
	ovenCmd.AddCommand(ovenRecipesCmd, ovenCookCmd)
}
