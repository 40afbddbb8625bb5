package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/trustless-academy/academy/internal/chain"
	"github.com/trustless-academy/academy/internal/wallet"
)

// Prompter asks yes/no questions on a terminal.
type Prompter struct {
	In  io.Reader
	Out io.Writer
	Yes bool // answer yes without asking

	reader *bufio.Reader
}

// Confirm prompts with a yes/no question. Anything but y or yes is no.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	if p.Yes {
		return true, nil
	}
	fmt.Fprintf(p.Out, "%s [y/N]: ", StyleWarning.Render(prompt))
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes", nil
}

// ConfirmSignature shows what is about to be signed and asks for approval.
// It satisfies wallet.ConfirmFunc.
func (p *Prompter) ConfirmSignature(ctx context.Context, s wallet.Summary) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !p.Yes {
		fmt.Fprintln(p.Out, SignatureBlock(s))
	}
	return p.Confirm("Sign and send this transaction?")
}

// SignatureBlock renders a transaction summary for review.
func SignatureBlock(s wallet.Summary) string {
	call := s.Method
	if s.Contract != "" {
		call = s.Contract + "." + s.Method
	}
	pairs := [][2]string{
		{"Call", Val(call)},
		{"Contract", Addr(s.To.Hex())},
		{"From", Addr(s.From.Hex())},
	}
	for i, a := range s.Args {
		pairs = append(pairs, [2]string{fmt.Sprintf("Arg %d", i), formatArg(a)})
	}
	pairs = append(pairs,
		[2]string{"Nonce", fmt.Sprint(s.Nonce)},
		[2]string{"Gas limit", fmt.Sprint(s.Gas)},
		[2]string{"Max fee", Amount(chain.FormatEther(s.MaxFee), "ETH")},
	)
	if s.ChainID != nil {
		pairs = append(pairs, [2]string{"Chain", s.ChainID.String()})
	}
	return KeyValueBlock("Review transaction", pairs)
}

func formatArg(a any) string {
	switch v := a.(type) {
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
