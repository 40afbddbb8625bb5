package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/trustless-academy/academy/internal/academy"
	"github.com/trustless-academy/academy/internal/config"
	"github.com/trustless-academy/academy/internal/rpc"
	"github.com/trustless-academy/academy/internal/ui"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Show the active network and manage its RPC endpoints",
}

var networkShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Probe the network's endpoints and list its contract addresses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nw, err := cfg.Resolve()
		if err != nil {
			return err
		}
		dep, err := cfg.Deployment()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.Network(nw.Name, nw.ChainID))
		if nw.WSURL != "" {
			fmt.Fprintln(out, ui.Meta("heads via "+redact(nw.WSURL)))
		}
		fmt.Fprintln(out)

		ctx, cancel := context.WithTimeout(cmd.Context(), config.RPCSelectTimeout)
		defer cancel()
		sp := ui.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("probing %d endpoint(s)…", len(nw.RPCURLs)))
		sp.Start()
		endpoints := rpc.ProbeAll(ctx, nw.RPCURLs, nw.ChainID)
		sp.Stop()

		best, pickErr := rpc.NewPicker(rpc.Algorithm(cfg.RPCAlgorithm), nil).Pick(endpoints)
		tbl := ui.NewTable(
			ui.Column{Title: "ENDPOINT", Width: 48},
			ui.Column{Title: "LATENCY"},
			ui.Column{Title: "BLOCK"},
			ui.Column{Title: ""},
		)
		for _, e := range endpoints {
			mark := ""
			if pickErr == nil && e.URL == best.URL {
				mark = ui.StyleSuccess.Render("✓ " + cfg.RPCAlgorithm)
			}
			if !e.Healthy() {
				tbl.AddRow(redact(e.URL), ui.Meta("—"), ui.Meta("—"), ui.StyleError.Render(e.Err.Error()))
				continue
			}
			tbl.AddRow(redact(e.URL), e.Latency.Round(time.Millisecond).String(), fmt.Sprint(e.BlockNumber), mark)
		}
		fmt.Fprint(out, tbl.Render())
		if pickErr != nil {
			fmt.Fprintln(out, ui.Warn(pickErr.Error()))
		}

		fmt.Fprintln(out)
		fmt.Fprint(out, ui.KeyValueBlock("Contracts", deploymentPairs(dep)))
		if missing := dep.Missing(); len(missing) > 0 {
			fmt.Fprintln(out, ui.Meta("set missing addresses with: academy config set contracts."+nw.Name+".<name> <address>"))
		}
		return nil
	},
}

func deploymentPairs(dep academy.Deployment) [][2]string {
	var pairs [][2]string
	for _, c := range []struct {
		key  string
		addr common.Address
	}{
		{config.KitchenToken, dep.Kitchen},
		{config.Ingredients, dep.Ingredients},
		{config.DishNFT, dep.Dishes},
		{config.SeedToken, dep.Seed},
		{config.StakedSeedToken, dep.StakedSeed},
		{config.GardenDeposit, dep.Garden},
		{config.Greenhouse, dep.Greenhouse},
	} {
		v := ui.Addr(c.addr.Hex())
		if c.addr == (common.Address{}) {
			v = ui.StyleWarning.Render("not set")
		}
		pairs = append(pairs, [2]string{c.key, v})
	}
	return pairs
}

var networkUseCmd = &cobra.Command{
	Use:       "use <network>",
	Short:     "Set the default network (sepolia or local)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{config.Sepolia, config.Local},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := updateConfig(func(c *config.Config) error { return c.Set("network", args[0]) }); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("default network set to "+args[0]))
		return nil
	},
}

var networkRPCCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Manage custom RPC endpoints for the active network",
}

var networkRPCAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a custom RPC endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		network := cfg.Network
		if err := updateConfig(func(c *config.Config) error { return c.AddRPC(network, args[0]) }); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("added %s to %s", redact(args[0]), network)))
		return nil
	},
}

var networkRPCRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Remove a custom RPC endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		network := cfg.Network
		if err := updateConfig(func(c *config.Config) error { return c.RemoveRPC(network, args[0]) }); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("removed %s from %s", redact(args[0]), network)))
		return nil
	},
}

// redact hides the API key in an Alchemy endpoint URL.
func redact(url string) string {
	if cfg == nil || cfg.AlchemyKey == "" {
		return url
	}
	return strings.ReplaceAll(url, cfg.AlchemyKey, "****")
}

func init() {
	networkRPCCmd.AddCommand(networkRPCAddCmd, networkRPCRemoveCmd)
	networkCmd.AddCommand(networkShowCmd, networkUseCmd, networkRPCCmd)
}
