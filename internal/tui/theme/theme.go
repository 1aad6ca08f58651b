// Package theme holds the single fixed style sheet of the workspace.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme is a palette (Catppuccin Mocha).
type Theme struct {
	Base     lipgloss.Color
	Surface0 lipgloss.Color
	Surface1 lipgloss.Color
	Overlay  lipgloss.Color
	Subtext  lipgloss.Color
	Text     lipgloss.Color
	Blue     lipgloss.Color
	Mauve    lipgloss.Color
	Pink     lipgloss.Color
	Green    lipgloss.Color
	Yellow   lipgloss.Color
	Red      lipgloss.Color
	Teal     lipgloss.Color
}

// Mocha is the only palette.
var Mocha = Theme{
	Base:     "#1e1e2e",
	Surface0: "#313244",
	Surface1: "#45475a",
	Overlay:  "#6c7086",
	Subtext:  "#a6adc8",
	Text:     "#cdd6f4",
	Blue:     "#89b4fa",
	Mauve:    "#cba6f7",
	Pink:     "#f5c2e7",
	Green:    "#a6e3a1",
	Yellow:   "#f9e2af",
	Red:      "#f38ba8",
	Teal:     "#94e2d5",
}

// Styles are the rendered styles derived from a Theme.
type Styles struct {
	Header      lipgloss.Style
	RowHeader   lipgloss.Style
	Cell        lipgloss.Style
	Total       lipgloss.Style
	Cursor      lipgloss.Style
	Timestamp   lipgloss.Style
	Link        lipgloss.Style
	Rule        lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	Status      lipgloss.Style
	StatusError lipgloss.Style
	Badge       lipgloss.Style
	Help        lipgloss.Style
}

// RuleChar draws the dashed rules between grid columns.
const RuleChar = "┆"

// New derives the style sheet from t.
func New(t Theme) Styles {
	return Styles{
		Header:      lipgloss.NewStyle().Bold(true).Foreground(t.Subtext),
		RowHeader:   lipgloss.NewStyle().Foreground(t.Mauve),
		Cell:        lipgloss.NewStyle().Foreground(t.Text),
		Total:       lipgloss.NewStyle().Bold(true).Foreground(t.Blue),
		Cursor:      lipgloss.NewStyle().Background(t.Surface0).Foreground(t.Text),
		Timestamp:   lipgloss.NewStyle().Foreground(t.Teal),
		Link:        lipgloss.NewStyle().Foreground(t.Blue).Underline(true),
		Rule:        lipgloss.NewStyle().Foreground(t.Surface1),
		TabActive:   lipgloss.NewStyle().Bold(true).Background(t.Mauve).Foreground(t.Base).Padding(0, 1),
		TabInactive: lipgloss.NewStyle().Background(t.Surface0).Foreground(t.Subtext).Padding(0, 1),
		Pane:        lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Surface1),
		PaneFocused: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Pink),
		Status:      lipgloss.NewStyle().Foreground(t.Overlay),
		StatusError: lipgloss.NewStyle().Foreground(t.Red).Bold(true),
		Badge:       lipgloss.NewStyle().Background(t.Surface0).Foreground(t.Text).Padding(0, 1),
		Help:        lipgloss.NewStyle().Foreground(t.Overlay),
	}
}

// Default is the style sheet used everywhere.
var Default = New(Mocha)
