package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/trustless-academy/academy/internal/countdown"
	"github.com/trustless-academy/academy/internal/txn"
	"github.com/trustless-academy/academy/internal/workflow"
)

// TransitionMsg carries a workflow transition into the claim view, with the
// eligibility and hash that were current when it happened.
type TransitionMsg struct {
	workflow.Transition
	Eligibility workflow.Eligibility
	Hash        string
}

// TickMsg is a countdown tick: the remaining cooldown.
type TickMsg time.Duration

// DoneMsg ends the claim view with the flow's result.
type DoneMsg struct{ Err error }

type frameMsg struct{}

const barWidth = 30

// ClaimModel is the live view of one claim workflow: state, cooldown
// countdown and confirmation progress.
type ClaimModel struct {
	Title   string
	Account string

	state     workflow.State
	elig      workflow.Eligibility
	remaining time.Duration
	hash      string
	update    *txn.Update
	lastErr   error
	result    error
	finished  bool
	frame     int
	cancel    context.CancelFunc
}

// NewClaimModel creates the view. cancel is called when the user quits.
func NewClaimModel(title, account string, cancel context.CancelFunc) ClaimModel {
	return ClaimModel{Title: title, Account: account, cancel: cancel}
}

// State is the last workflow state seen.
func (m ClaimModel) State() workflow.State { return m.state }

// Result is the error the flow finished with.
func (m ClaimModel) Result() error { return m.result }

func frame() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m ClaimModel) Init() tea.Cmd { return frame() }

func (m ClaimModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			m.result = context.Canceled
			m.finished = true
			return m, tea.Quit
		}

	case frameMsg:
		if m.finished {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinFrames)
		return m, frame()

	case TransitionMsg:
		m.state = msg.To
		if msg.Update != nil {
			u := *msg.Update
			m.update = &u
		}
		if msg.Hash != "" {
			m.hash = msg.Hash
		}
		if msg.From != msg.To && (msg.To == workflow.OnCooldown || msg.To == workflow.Blocked) {
			m.elig = msg.Eligibility
			m.remaining = msg.Eligibility.Remaining(msg.At)
		}
		if msg.To == workflow.Checking {
			m.lastErr = nil
		}
		if msg.Err != nil {
			m.lastErr = msg.Err
		}

	case TickMsg:
		m.remaining = time.Duration(msg)

	case DoneMsg:
		m.result = msg.Err
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ClaimModel) View() string {
	var sb strings.Builder
	sb.WriteString(StyleTitle.Render(m.Title))
	if m.Account != "" {
		sb.WriteString("  " + Meta(TruncateAddr(m.Account)))
	}
	sb.WriteString("\n")

	spin := StyleAccent.Render(spinFrames[m.frame])
	switch m.state {
	case workflow.Idle:
		if !m.finished {
			sb.WriteString(spin + " starting…\n")
		}
	case workflow.Checking:
		sb.WriteString(spin + " checking eligibility…\n")
	case workflow.Eligible:
		sb.WriteString(Success("ready to claim") + "\n")
	case workflow.OnCooldown:
		sb.WriteString(Warn("on cooldown") + "  next claim in " + Val(countdown.Format(m.remaining)) + "\n")
		sb.WriteString("  " + m.bar() + "\n")
	case workflow.Blocked:
		sb.WriteString(Warn("unavailable: "+m.elig.Reason) + "\n")
	case workflow.Submitting:
		sb.WriteString(spin + " waiting for signature…\n")
	case workflow.Confirming:
		sb.WriteString(spin + " " + m.confirming() + "\n")
	case workflow.Success:
		sb.WriteString(Success("confirmed") + "\n")
	case workflow.Failed:
		sb.WriteString(Err(workflow.Describe(m.lastErr)) + "\n")
	}
	if m.hash != "" {
		sb.WriteString(Meta("  tx ") + Addr(m.hash) + "\n")
	}

	if m.finished {
		switch {
		case m.result == nil:
			sb.WriteString(Success("done") + "\n")
		case errors.Is(m.result, context.Canceled):
			sb.WriteString(Meta("stopped; a sent transaction still completes on chain") + "\n")
		case m.state != workflow.Failed:
			sb.WriteString(Err(workflow.Describe(m.result)) + "\n")
		}
		return sb.String()
	}
	sb.WriteString("\n" + Meta("q quit") + "\n")
	return sb.String()
}

func (m ClaimModel) confirming() string {
	if m.update == nil {
		return "waiting for the network…"
	}
	if m.update.Err != nil {
		return Warn(workflow.Describe(m.update.Err))
	}
	if m.update.Status == txn.Confirming {
		return fmt.Sprintf("mined in block %d, %d confirmation(s)", m.update.Block, m.update.Confirmations)
	}
	return "pending…"
}

// bar shows how much of the cooldown has elapsed.
func (m ClaimModel) bar() string {
	if m.elig.Cooldown <= 0 {
		return ""
	}
	done := int(float64(barWidth) * float64(m.elig.Cooldown-m.remaining) / float64(m.elig.Cooldown))
	done = min(max(done, 0), barWidth)
	return StyleSuccess.Render(strings.Repeat("█", done)) + Meta(strings.Repeat("░", barWidth-done))
}

// RunClaim shows the claim view while run drives wf. The view follows every
// transition and the countdown ticks, and quits when run returns or the user
// presses q, which cancels run's context.
func RunClaim(ctx context.Context, wf *workflow.Workflow, title, account string, run func(context.Context) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewClaimModel(title, account, cancel), opts...)
	var closed atomic.Bool
	send := func(msg tea.Msg) {
		if !closed.Load() {
			p.Send(msg)
		}
	}

	wf.OnTransition(func(tr workflow.Transition) {
		msg := TransitionMsg{Transition: tr}
		switch tr.To {
		case workflow.OnCooldown, workflow.Blocked:
			msg.Eligibility = wf.Eligibility()
			if t := wf.Timer(); t != nil && tr.From != tr.To {
				go forwardTicks(ctx, t, send)
			}
		case workflow.Confirming:
			if h := wf.Handle(); h != nil {
				msg.Hash = h.Hash.Hex()
			}
		}
		send(msg)
	})

	go func() { send(DoneMsg{Err: run(ctx)}) }()

	final, err := p.Run()
	closed.Store(true)
	if err != nil {
		return err
	}
	return final.(ClaimModel).Result()
}

func forwardTicks(ctx context.Context, t *countdown.Timer, send func(tea.Msg)) {
	for {
		select {
		case d := <-t.Ticks():
			send(TickMsg(d))
		case <-t.Done():
			send(TickMsg(0))
			return
		case <-ctx.Done():
			return
		}
	}
}
