package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/trustless-academy/academy/internal/academy"
	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/contract"
	"github.com/trustless-academy/academy/internal/countdown"
	"github.com/trustless-academy/academy/internal/workflow"
)

// Reading renders a token amount, marking stale and unknown values.
func Reading(r academy.Reading, symbol string) string {
	if !r.Known() {
		return Meta("unknown")
	}
	s := Amount(chain.FormatEther(r.Value), symbol)
	if r.Stale {
		s += " " + StyleWarning.Render("(stale)")
	}
	return s
}

// Count renders a whole-number reading such as a dish count.
func Count(r academy.Reading) string {
	if !r.Known() {
		return Meta("unknown")
	}
	s := Val(r.Value.String())
	if r.Stale {
		s += " " + StyleWarning.Render("(stale)")
	}
	return s
}

// FaucetLine describes faucet eligibility at now.
func FaucetLine(e workflow.Eligibility, now time.Time) string {
	switch {
	case e.Eligible:
		return StyleSuccess.Render("ready to claim")
	case e.OnCooldown():
		return StyleWarning.Render("next claim in " + countdown.Format(e.Remaining(now)))
	case e.Reason != "":
		return Meta(e.Reason)
	default:
		return Meta("unknown")
	}
}

// RenderStatus renders the account overview.
func RenderStatus(s *academy.Status, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(KeyValueBlock("Wallet "+TruncateAddr(s.Account.Hex()), [][2]string{
		{"Kitchen tokens", Reading(s.Kitchen, "KITCHEN")},
		{"Kitchen faucet", FaucetLine(s.KitchenFaucet, now)},
		{"Seed tokens", Reading(s.Seed, "SEED")},
		{"Seed faucet", FaucetLine(s.SeedFaucet, now)},
	}))
	sb.WriteString("\n")
	if s.FaucetErr != nil {
		sb.WriteString(Warn(workflow.Describe(s.FaucetErr)) + "\n")
	}

	pantry := NewTable(Column{Title: "INGREDIENT"}, Column{Title: "HAVE"})
	for _, ing := range contract.Ingredients {
		pantry.AddRow(ing.Name, Count(s.Pantry[ing.ID]))
	}
	sb.WriteString("\n" + StyleTitle.Render("Pantry") + "\n")
	sb.WriteString(pantry.Render())
	sb.WriteString(fmt.Sprintf("%s %s\n", Meta("Dishes cooked:"), Count(s.Dishes)))

	sb.WriteString("\n" + RenderGarden(s) + "\n")
	return sb.String()
}

// RenderGarden renders the garden position.
func RenderGarden(s *academy.Status) string {
	pairs := [][2]string{
		{"Staked", Reading(s.StakedSeed, "sSEED")},
		{"Rewards", Reading(s.Rewards, "SEED")},
	}
	if s.VaultShares.Known() && s.VaultShares.Value.Sign() > 0 {
		pairs = append(pairs,
			[2]string{"Greenhouse shares", Reading(s.VaultShares, "gSEED")},
			[2]string{"Greenhouse value", Reading(s.VaultAssets, "SEED")},
		)
	}
	pairs = append(pairs, [2]string{"Total staked", Reading(s.TotalStaked, "SEED")})
	return KeyValueBlock("Garden", pairs)
}
