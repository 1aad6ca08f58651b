package workspace

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/thumbgrid/internal/tui/layout"
)

// View implements tea.Model.
func (m *Model) View() string {
	parts := []string{m.tabBar(), m.panes(), m.statusBar(), m.styles.Help.Render(m.help.View(m.helpKeys()))}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) tabBar() string {
	tabs := make([]string, 0, len(m.views))
	for i, g := range m.views {
		label := layout.TruncateWidth(g.Title(), 24, "…")
		if i == m.active {
			tabs = append(tabs, m.styles.TabActive.Render(label))
		} else {
			tabs = append(tabs, m.styles.TabInactive.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return layout.TruncateWidth(bar, m.width, "")
}

func (m *Model) panes() string {
	start, n := m.visible()
	boxes := make([]string, 0, n)
	for i := start; i < start+n; i++ {
		style := m.styles.Pane
		if i == m.active {
			style = m.styles.PaneFocused
		}
		boxes = append(boxes, style.Render(m.views[i].View()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m *Model) statusBar() string {
	var b strings.Builder
	switch {
	case m.opts.LoadAtlas == nil:
		b.WriteString(m.styles.Badge.Render("no thumbnails"))
	case !m.atlasLoaded:
		b.WriteString(m.styles.Badge.Render("atlas loading"))
	case m.atlasErr != nil:
		b.WriteString(m.styles.StatusError.Render("atlas failed, R to retry"))
	default:
		b.WriteString(m.styles.Badge.Render(fmt.Sprintf("atlas %d tiles", m.atlas.TileCount())))
	}

	if st, ok := m.stats[m.Active().ID()]; ok && st.Drawn+st.Suppressed > 0 {
		b.WriteString(" ")
		b.WriteString(m.styles.Status.Render(fmt.Sprintf("%d drawn · %d repeats hidden", st.Drawn, st.Suppressed)))
	}

	b.WriteString(" ")
	switch {
	case m.err != nil:
		b.WriteString(m.styles.StatusError.Render(m.err.Error()))
	case m.status != "":
		b.WriteString(m.styles.Status.Render(m.status))
	case m.split && len(m.views) > 1:
		b.WriteString(m.styles.Status.Render(fmt.Sprintf("%d views · %s", len(m.views), m.tier)))
	}
	return layout.TruncateWidth(b.String(), m.width, "")
}
