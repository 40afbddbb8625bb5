package ui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/trustless-academy/academy/internal/academy"
)

type refreshMsg time.Time

// StatusModel re-renders the status on every refresh tick. Each tick takes
// a snapshot from the read cache, so a slow node never freezes the view.
type StatusModel struct {
	Title string

	status   *academy.Status
	snapshot func(prev *academy.Status) (*academy.Status, error)
	every    time.Duration
	now      time.Time
	err      error
}

// NewStatusModel starts from first and calls snapshot every interval.
func NewStatusModel(title string, first *academy.Status, snapshot func(*academy.Status) (*academy.Status, error), every time.Duration) StatusModel {
	return StatusModel{Title: title, status: first, snapshot: snapshot, every: every, now: time.Now()}
}

// Status is the last rendered status.
func (m StatusModel) Status() *academy.Status { return m.status }

func (m StatusModel) tick() tea.Cmd {
	return tea.Tick(m.every, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m StatusModel) Init() tea.Cmd { return m.tick() }

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case refreshMsg:
		m.now = time.Time(msg)
		st, err := m.snapshot(m.status)
		m.err = err
		if err == nil {
			m.status = st
		}
		return m, m.tick()
	}
	return m, nil
}

func (m StatusModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.Title + "\n\n")
	if m.status != nil {
		sb.WriteString(RenderStatus(m.status, m.now))
	}
	if m.err != nil {
		sb.WriteString(Warn(m.err.Error()) + "\n")
	}
	sb.WriteString("\n" + Meta("refreshing every "+m.every.String()+" · q quit") + "\n")
	return sb.String()
}

// RunStatus shows the live status until the user quits or ctx ends.
func RunStatus(ctx context.Context, title string, first *academy.Status, snapshot func(*academy.Status) (*academy.Status, error), every time.Duration, opts ...tea.ProgramOption) error {
	opts = append(opts, tea.WithContext(ctx))
	_, err := tea.NewProgram(NewStatusModel(title, first, snapshot, every), opts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
