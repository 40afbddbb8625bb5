package ui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrNothingToPick is returned when the picker has no items.
var ErrNothingToPick = errors.New("nothing to pick from")

// PickerItem is one entry in the picker.
type PickerItem struct {
	Label    string // wallet name
	SubLabel string // address, shown dimmed
	Value    string // returned on selection
	Current  bool   // marked as the active choice
}

type pickerModel struct {
	title    string
	items    []PickerItem
	cursor   int
	selected string
	chosen   bool
}

func newPicker(title string, items []PickerItem) pickerModel {
	m := pickerModel{title: title, items: items}
	for i, it := range items {
		if it.Current {
			m.cursor = i
		}
	}
	return m
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selected = m.items[m.cursor].Value
		m.chosen = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.chosen {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(StyleTitle.Render(m.title) + "\n")
	for i, it := range m.items {
		mark := "  "
		if it.Current {
			mark = StyleSuccess.Render("● ")
		}
		line := mark + it.Label
		if it.SubLabel != "" {
			line += "  " + Meta(it.SubLabel)
		}
		if i == m.cursor {
			line = StyleSelected.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n" + Meta("↑/↓ move · enter select · q cancel") + "\n")
	return sb.String()
}

// Pick runs the picker and returns the chosen Value, or "" when cancelled.
func Pick(title string, items []PickerItem) (string, error) {
	if len(items) == 0 {
		return "", ErrNothingToPick
	}
	final, err := tea.NewProgram(newPicker(title, items)).Run()
	if err != nil {
		return "", err
	}
	m := final.(pickerModel)
	if !m.chosen {
		return "", nil
	}
	return m.selected, nil
}
