// Package grid is the terminal data grid a view is drawn in. It lays out a
// pivoted table, hands its visible cells to the thumbnail renderer and
// paints whatever the renderer attached.
package grid

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/Dicklesworthstone/thumbgrid/internal/render"
	"github.com/Dicklesworthstone/thumbgrid/internal/table"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/theme"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/thumb"
)

const (
	minColWidth       = 4
	maxColWidth       = 28
	maxRowHeaderWidth = 20
	widthSampleRows   = 200
)

// Options configures a grid.
type Options struct {
	// Plugin is the name of the plugin drawing this view.
	Plugin string
	// Thumbnails sizes image cells and rows for painted thumbnails.
	Thumbnails bool
	Painter    *thumb.Painter
	// Styles defaults to theme.Default.
	Styles *theme.Styles
}

type overlay struct {
	lines []string
	link  *render.LinkContent
}

// Model is one grid view.
type Model struct {
	id      string
	title   string
	opts    Options
	keys    KeyMap
	profile termenv.Profile

	tbl  *table.Table
	cfg  table.Config
	view *table.View

	width   int
	height  int
	focused bool

	// scroll state: cursor and offset index view.Rows, col indexes Columns
	cursor    int
	offset    int
	colOffset int

	colWidths []int
	rhWidths  []int
	fr        frame

	input   textinput.Model
	editing bool
	err     error

	tags      map[render.Cell]map[render.Tag]bool
	overlays  map[render.Cell]overlay
	needsDraw bool
}

// frame is the visible window computed from the size and scroll state.
type frame struct {
	headerRows int
	rowHeight  int
	rows       []int
	cols       []int
}

// New creates a grid for view slot id over tbl.
func New(id, title string, tbl *table.Table, cfg table.Config, opts Options) (*Model, error) {
	if opts.Painter == nil {
		opts.Painter = thumb.NewPainter(termenv.Ascii, 10, 5)
	}
	if opts.Styles == nil {
		opts.Styles = &theme.Default
	}
	in := textinput.New()
	in.Prompt = ":"
	in.CharLimit = 256

	m := &Model{
		id:       id,
		title:    title,
		opts:     opts,
		keys:     DefaultKeyMap(),
		profile:  opts.Painter.Profile(),
		tbl:      tbl,
		width:    80,
		height:   24,
		input:    in,
		tags:     make(map[render.Cell]map[render.Tag]bool),
		overlays: make(map[render.Cell]overlay),
	}
	if err := m.SetConfig(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// ID returns the view slot id.
func (m *Model) ID() string { return m.id }

// Title returns the tab title.
func (m *Model) Title() string { return m.title }

// Plugin returns the name of the plugin drawing the view.
func (m *Model) Plugin() string { return m.opts.Plugin }

// Config returns the pivot configuration.
func (m *Model) Config() table.Config { return m.cfg }

// Table returns the table the view reads.
func (m *Model) Table() *table.Table { return m.tbl }

// PivotView returns the pivoted view.
func (m *Model) PivotView() *table.View { return m.view }

// Err returns the last command or pivot error.
func (m *Model) Err() error { return m.err }

// Keys returns the grid bindings for help rendering.
func (m *Model) Keys() KeyMap { return m.keys }

// Editing reports whether the command line has focus.
func (m *Model) Editing() bool { return m.editing }

// SetConfig re-pivots the table. On error the previous view stays.
func (m *Model) SetConfig(cfg table.Config) error {
	v, err := m.tbl.Pivot(cfg)
	if err != nil {
		return fmt.Errorf("view %s: %w", m.id, err)
	}
	m.cfg = cfg
	m.view = v
	m.cursor, m.offset, m.colOffset = 0, 0, 0
	if len(v.Rows) > 1 {
		m.cursor = 1
	}
	m.measure()
	m.invalidate()
	return nil
}

// SetTable swaps in reloaded data, keeping the configuration.
func (m *Model) SetTable(tbl *table.Table) error {
	v, err := tbl.Pivot(m.cfg)
	if err != nil {
		return fmt.Errorf("view %s: %w", m.id, err)
	}
	m.tbl = tbl
	m.view = v
	m.cursor = clamp(m.cursor, min(1, len(v.Rows)-1), len(v.Rows)-1)
	m.measure()
	m.follow()
	m.invalidate()
	return nil
}

// SetSize sets the outer size of the grid, status line included.
func (m *Model) SetSize(width, height int) {
	if width == m.width && height == m.height {
		return
	}
	m.width, m.height = width, height
	m.input.Width = max(width-2, 1)
	m.invalidate()
}

// Focus marks the grid as receiving keys.
func (m *Model) Focus() { m.focused = true }

// Blur marks the grid as not receiving keys.
func (m *Model) Blur() {
	m.focused = false
	m.editing = false
	m.input.Blur()
}

// Focused reports whether the grid receives keys.
func (m *Model) Focused() bool { return m.focused }

// NeedsDraw reports whether the visible window changed since the last draw.
func (m *Model) NeedsDraw() bool { return m.needsDraw }

// Invalidate forces a redraw, for example when the atlas arrives.
func (m *Model) Invalidate() { m.invalidate() }

func (m *Model) invalidate() {
	m.fr = m.computeFrame()
	m.needsDraw = true
}

// BeginDraw clears everything attached by the previous draw.
func (m *Model) BeginDraw() {
	clear(m.tags)
	clear(m.overlays)
}

// EndDraw marks the window as drawn.
func (m *Model) EndDraw() { m.needsDraw = false }

// Update handles keys while the grid is focused.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	km, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused {
		return nil
	}

	if m.editing {
		switch {
		case key.Matches(km, m.keys.Cancel):
			m.editing = false
			m.input.Blur()
			return nil
		case key.Matches(km, m.keys.Submit):
			m.editing = false
			m.input.Blur()
			m.runCommand(m.input.Value())
			return nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}

	page := max(len(m.fr.rows)-1, 1)
	switch {
	case key.Matches(km, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(km, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(km, m.keys.PageUp):
		m.moveCursor(-page)
	case key.Matches(km, m.keys.PageDown):
		m.moveCursor(page)
	case key.Matches(km, m.keys.Top):
		m.moveCursor(-len(m.view.Rows))
	case key.Matches(km, m.keys.Bottom):
		m.moveCursor(len(m.view.Rows))
	case key.Matches(km, m.keys.Left):
		if m.colOffset > 0 {
			m.colOffset--
			m.invalidate()
		}
	case key.Matches(km, m.keys.Right):
		if m.colOffset < len(m.view.Columns)-1 {
			m.colOffset++
			m.invalidate()
		}
	case key.Matches(km, m.keys.Command):
		m.editing = true
		m.input.SetValue("")
		return m.input.Focus()
	}
	return nil
}

func (m *Model) runCommand(line string) {
	cfg, err := ApplyCommand(line, m.cfg)
	if err == nil {
		err = m.SetConfig(cfg)
	}
	m.err = err
	if err != nil {
		slog.Default().Debug("grid command failed", "view", m.id, "command", line, "error", err)
	}
}

func (m *Model) moveCursor(delta int) {
	if len(m.view.Rows) <= 1 {
		return
	}
	m.cursor = clamp(m.cursor+delta, 1, len(m.view.Rows)-1)
	m.follow()
	m.invalidate()
}

// follow scrolls so the cursor row is on screen and no body slot is left
// empty past the last record.
func (m *Model) follow() {
	visible := max(m.frameRows()-1, 1)
	switch {
	case m.cursor-1 < m.offset:
		m.offset = m.cursor - 1
	case m.cursor-1 >= m.offset+visible:
		m.offset = m.cursor - visible
	}
	m.offset = clamp(m.offset, 0, len(m.view.Rows)-1-visible)
}

// measure computes column widths for the current view.
func (m *Model) measure() {
	thumbCols, _ := m.opts.Painter.Size()

	m.colWidths = make([]int, len(m.view.Columns))
	for ci, col := range m.view.Columns {
		w := minColWidth
		for _, seg := range col.Path {
			w = max(w, runewidth.StringWidth(seg))
		}
		for ri, row := range m.view.Rows {
			if ri > widthSampleRows {
				break
			}
			w = max(w, runewidth.StringWidth(table.FormatValue(row.Cells[ci])))
		}
		w = min(w, maxColWidth)
		if m.opts.Thumbnails && col.Name == table.ImageColumn {
			w = max(w, thumbCols)
		}
		m.colWidths[ci] = w
	}

	m.rhWidths = make([]int, len(m.cfg.RowPivots))
	for level, name := range m.cfg.RowPivots {
		w := max(runewidth.StringWidth(name), runewidth.StringWidth(table.TotalLabel))
		for _, row := range m.view.Rows {
			if level < len(row.Labels) && row.Depth == level+1 {
				w = max(w, runewidth.StringWidth(row.Labels[level]))
			}
		}
		w = min(w, maxRowHeaderWidth)
		if m.opts.Thumbnails && name == table.ImageColumn {
			w = max(w, thumbCols)
		}
		m.rhWidths[level] = w
	}
}

// hasThumbnailCells reports whether any row can carry a thumbnail.
func (m *Model) hasThumbnailCells() bool {
	if !m.opts.Thumbnails {
		return false
	}
	for _, p := range m.cfg.RowPivots {
		if p == table.ImageColumn {
			return true
		}
	}
	for _, c := range m.view.Columns {
		if c.Name == table.ImageColumn {
			return true
		}
	}
	return false
}

func (m *Model) rowHeight() int {
	if m.hasThumbnailCells() {
		_, h := m.opts.Painter.Size()
		return h
	}
	return 1
}

// frameRows is the number of body rows that fit, the pinned total row
// included.
func (m *Model) frameRows() int {
	// header rows plus one line for the status bar
	bodyLines := m.height - len(m.cfg.ColumnPivots) - 2
	return max(bodyLines/m.rowHeight(), 1)
}

func (m *Model) computeFrame() frame {
	fr := frame{headerRows: len(m.cfg.ColumnPivots) + 1, rowHeight: m.rowHeight()}

	capacity := m.frameRows()
	fr.rows = append(fr.rows, 0)
	for r := 1 + m.offset; r < len(m.view.Rows) && len(fr.rows) < capacity; r++ {
		fr.rows = append(fr.rows, r)
	}

	used := 0
	for _, w := range m.rhWidths {
		used += w + 3
	}
	for ci := m.colOffset; ci < len(m.view.Columns); ci++ {
		w := m.colWidths[ci]
		if used+w > m.width && len(fr.cols) > 0 {
			break
		}
		fr.cols = append(fr.cols, ci)
		used += w + 3
	}
	return fr
}

// Status returns the one-line summary shown under the grid.
func (m *Model) Status() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d rows", max(len(m.view.Rows)-1, 0)))
	if len(m.cfg.RowPivots) > 0 {
		parts = append(parts, "pivot "+strings.Join(m.cfg.RowPivots, ","))
	}
	if len(m.cfg.ColumnPivots) > 0 {
		parts = append(parts, "split "+strings.Join(m.cfg.ColumnPivots, ","))
	}
	return strings.Join(parts, " · ")
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
