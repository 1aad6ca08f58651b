package workspace

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/Dicklesworthstone/thumbgrid/internal/tui/grid"
)

// KeyMap defines workspace keybindings.
type KeyMap struct {
	NextView  key.Binding
	PrevView  key.Binding
	NewView   key.Binding
	NewPlain  key.Binding
	CloseView key.Binding
	Split     key.Binding
	Retry     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the workspace bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextView:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		PrevView:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev view")),
		NewView:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new thumbnail view")),
		NewPlain:  key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new plain view")),
		CloseView: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "close view")),
		Split:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle split")),
		Retry:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "retry atlas")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// helpKeys merges the workspace and grid bindings for the help bar.
type helpKeys struct {
	ws   KeyMap
	grid grid.KeyMap
}

func (h helpKeys) ShortHelp() []key.Binding {
	return []key.Binding{h.ws.NextView, h.ws.NewView, h.ws.CloseView, h.grid.Command, h.ws.Help, h.ws.Quit}
}

func (h helpKeys) FullHelp() [][]key.Binding {
	return append([][]key.Binding{
		{h.ws.NextView, h.ws.PrevView, h.ws.Split},
		{h.ws.NewView, h.ws.NewPlain, h.ws.CloseView},
		{h.ws.Retry, h.ws.Help, h.ws.Quit},
	}, h.grid.FullHelp()...)
}
