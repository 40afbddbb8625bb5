package ui

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustless-academy/academy/internal/wallet"
)

func TestConfirmAnswers(t *testing.T) {
	for input, want := range map[string]bool{
		"y\n":     true,
		"YES\n":   true,
		" yes ":   true,
		"n\n":     false,
		"\n":      false,
		"maybe\n": false,
		"":        false,
	} {
		var out bytes.Buffer
		p := &Prompter{In: strings.NewReader(input), Out: &out}
		got, err := p.Confirm("Continue?")
		require.NoError(t, err, input)
		assert.Equal(t, want, got, "input %q", input)
		assert.Contains(t, out.String(), "Continue? [y/N]")
	}
}

func TestConfirmAssumeYes(t *testing.T) {
	var out bytes.Buffer
	p := &Prompter{In: strings.NewReader(""), Out: &out, Yes: true}
	ok, err := p.Confirm("Continue?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, out.String())
}

func TestConfirmReadsSuccessiveLines(t *testing.T) {
	p := &Prompter{In: strings.NewReader("n\ny\n"), Out: &bytes.Buffer{}}
	first, _ := p.Confirm("one")
	second, _ := p.Confirm("two")
	assert.False(t, first)
	assert.True(t, second)
}

func TestConfirmSignatureShowsSummary(t *testing.T) {
	var out bytes.Buffer
	p := &Prompter{In: strings.NewReader("y\n"), Out: &out}
	s := wallet.Summary{
		From:     common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		To:       common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		Contract: "KitchenToken",
		Method:   "approve",
		Args:     []any{common.HexToAddress("0x02"), big.NewInt(30)},
		Nonce:    7,
		Gas:      50000,
		MaxFee:   big.NewInt(1_000_000_000_000_000),
		ChainID:  big.NewInt(31337),
	}

	ok, err := p.ConfirmSignature(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, ok)

	text := out.String()
	for _, want := range []string{"KitchenToken.approve", "0x5FbDB2315678afecb367f032d93F642f64180aa3", "30", "50000", "0.001", "31337", "Sign and send"} {
		assert.Contains(t, text, want)
	}
}

func TestConfirmSignatureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Prompter{In: strings.NewReader("y\n"), Out: &bytes.Buffer{}}
	_, err := p.ConfirmSignature(ctx, wallet.Summary{})
	assert.ErrorIs(t, err, context.Canceled)
}
