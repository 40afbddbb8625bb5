package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func TestPickerStartsOnCurrentAndSelects(t *testing.T) {
	m := newPicker("Wallets", []PickerItem{
		{Label: "alice", Value: "alice"},
		{Label: "bob", Value: "bob", Current: true},
		{Label: "carol", Value: "carol"},
	})
	assert.Equal(t, 1, m.cursor)

	for _, k := range []string{"down", "down", "up", "enter"} {
		next, _ := m.Update(key(k))
		m = next.(pickerModel)
	}
	assert.True(t, m.chosen)
	assert.Equal(t, "bob", m.selected)
}

func TestPickerCancel(t *testing.T) {
	m := newPicker("Wallets", []PickerItem{{Label: "alice", Value: "alice"}})
	next, cmd := m.Update(key("q"))
	assert.False(t, next.(pickerModel).chosen)
	assert.NotNil(t, cmd)
}

func TestPickerView(t *testing.T) {
	m := newPicker("Wallets", []PickerItem{{Label: "alice", SubLabel: "0xf39F…2266", Current: true}})
	v := m.View()
	assert.Contains(t, v, "Wallets")
	assert.Contains(t, v, "alice")
	assert.Contains(t, v, "0xf39F…2266")
}

func TestPickEmpty(t *testing.T) {
	_, err := Pick("Wallets", nil)
	assert.ErrorIs(t, err, ErrNothingToPick)
}
