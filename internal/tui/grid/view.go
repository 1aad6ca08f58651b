package grid

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"

	"github.com/Dicklesworthstone/thumbgrid/internal/render"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/layout"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/theme"
)

// fit truncates or pads plain text to exactly w cells.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	s = layout.TruncateWidth(s, w, "…")
	if pad := w - runewidth.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// View renders the visible window followed by the status line.
func (m *Model) View() string {
	st := m.opts.Styles
	rule := st.Rule.Render(" " + theme.RuleChar + " ")

	var lines []string
	for h := 0; h < m.fr.headerRows; h++ {
		lines = append(lines, m.headerLine(h, rule))
	}
	for i := range m.fr.rows {
		for k := 0; k < m.fr.rowHeight; k++ {
			lines = append(lines, m.bodyLine(i, k, rule))
		}
	}
	for len(lines) < m.height-1 {
		lines = append(lines, "")
	}
	if m.height > 0 && len(lines) > m.height-1 {
		lines = lines[:max(m.height-1, 0)]
	}
	lines = append(lines, m.statusLine())

	for i, l := range lines {
		lines[i] = layout.TruncateWidth(l, m.width, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) headerLine(h int, rule string) string {
	st := m.opts.Styles
	last := h == m.fr.headerRows-1

	var b strings.Builder
	for level, w := range m.rhWidths {
		label := ""
		if last {
			label = m.cfg.RowPivots[level]
		}
		b.WriteString(st.Header.Render(fit(label, w)))
		b.WriteString(rule)
	}
	nrh := len(m.rhWidths)
	for i, ci := range m.fr.cols {
		cell := render.Cell{Section: render.Header, Row: h, Col: nrh + i}
		meta, _ := m.Meta(cell)
		style := st.Header
		if m.HasTag(cell, render.TagTimestamp) {
			style = style.Foreground(st.Timestamp.GetForeground())
		}
		text := meta.Value
		// repeated pivot labels are shown once per span
		if !last && i > 0 {
			prev, _ := m.Meta(render.Cell{Section: render.Header, Row: h, Col: nrh + i - 1})
			if samePrefix(prev.ColumnHeader, meta.ColumnHeader, h+1) {
				text = ""
			}
		}
		b.WriteString(style.Render(fit(text, m.colWidths[ci])))
		if i < len(m.fr.cols)-1 {
			b.WriteString(rule)
		}
	}
	return b.String()
}

func samePrefix(a, b []string, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Model) bodyLine(i, k int, rule string) string {
	st := m.opts.Styles
	vr := m.fr.rows[i]
	base := st.Cell
	switch {
	case vr == 0:
		base = st.Total
	case vr == m.cursor && m.focused:
		base = st.Cursor
	}

	var b strings.Builder
	nrh := len(m.rhWidths)
	for c := 0; c < nrh+len(m.fr.cols); c++ {
		cell := render.Cell{Section: render.Body, Row: i, Col: c}
		w := m.rhWidths[min(c, max(nrh-1, 0))]
		if c >= nrh {
			w = m.colWidths[m.fr.cols[c-nrh]]
		}

		b.WriteString(m.cellLine(cell, k, w, base))
		if c < nrh+len(m.fr.cols)-1 {
			b.WriteString(rule)
		}
	}
	return b.String()
}

// cellLine renders line k of a body cell at width w.
func (m *Model) cellLine(cell render.Cell, k, w int, base lipgloss.Style) string {
	st := m.opts.Styles
	lines, link, ok := m.Overlay(cell)
	switch {
	case ok && lines != nil:
		if k < len(lines) {
			// painted lines carry their own colour
			return lines[k] + strings.Repeat(" ", max(w-ansi.PrintableRuneWidth(lines[k]), 0))
		}
		return strings.Repeat(" ", w)
	case ok && link != nil:
		if k != 0 {
			return strings.Repeat(" ", w)
		}
		label := fit(link.Label, w)
		return st.Link.Render(m.linkText(&render.LinkContent{URL: link.URL, Label: label}))
	}

	if k != 0 {
		return base.Render(strings.Repeat(" ", w))
	}
	meta, _ := m.Meta(cell)
	style := base
	switch {
	case meta.HeaderLevel > 0 && meta.PivotDepth != 0:
		style = st.RowHeader
	case m.HasTag(cell, render.TagTimestamp):
		style = base.Foreground(st.Timestamp.GetForeground())
	}
	return style.Render(fit(meta.Value, w))
}

func (m *Model) statusLine() string {
	st := m.opts.Styles
	switch {
	case m.editing:
		return m.input.View()
	case m.err != nil:
		return st.StatusError.Render(m.err.Error())
	default:
		return st.Status.Render(m.Status())
	}
}
