package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"webterm/internal/lineedit"
)

// KeyMap holds the global shortcuts. Everything not bound here goes to the
// line editor.
type KeyMap struct {
	Palette key.Binding
	Sidebar key.Binding
	Theme   key.Binding
	Dismiss key.Binding
	Quit    key.Binding
	Quick   []key.Binding

	PaletteUp   key.Binding
	PaletteDown key.Binding
	PaletteRun  key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{
		Palette: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "palette"),
		),
		Sidebar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "sidebar"),
		),
		Theme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "theme"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q"),
			key.WithHelp("C-q", "quit"),
		),
		PaletteUp: key.NewBinding(
			key.WithKeys("up", "ctrl+k"),
		),
		PaletteDown: key.NewBinding(
			key.WithKeys("down", "ctrl+j", "tab"),
		),
		PaletteRun: key.NewBinding(
			key.WithKeys("enter"),
		),
	}
	for _, k := range []string{"alt+1", "alt+2", "alt+3", "alt+4", "alt+5"} {
		km.Quick = append(km.Quick, key.NewBinding(key.WithKeys(k), key.WithHelp(k, "quick command")))
	}
	return km
}

// ShortHelp lists the shortcuts shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Palette, k.Sidebar, k.Theme, k.Quit}
}

// editorInput translates a key event into the raw bytes a terminal would
// have sent, which is what the line editor consumes. Keys with no meaning to
// the editor yield "".
func editorInput(msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeyEnter:
		return lineedit.KeyEnter
	case tea.KeyBackspace:
		return lineedit.KeyBackspace
	case tea.KeyUp:
		return lineedit.KeyUp
	case tea.KeyDown:
		return lineedit.KeyDown
	case tea.KeyCtrlC:
		return lineedit.KeyCtrlC
	case tea.KeyCtrlD:
		return lineedit.KeyCtrlD
	case tea.KeySpace:
		return " "
	case tea.KeyRunes:
		if msg.Alt {
			return ""
		}
		return string(msg.Runes)
	}
	return ""
}
