package grid

import (
	"context"

	"github.com/muesli/termenv"

	"github.com/Dicklesworthstone/thumbgrid/internal/render"
	"github.com/Dicklesworthstone/thumbgrid/internal/table"
)

// Model is the render.Grid the thumbnail plugin walks.
var _ render.Grid = (*Model)(nil)

// ViewConfig returns the pivot configuration of the current view.
func (m *Model) ViewConfig(ctx context.Context) (render.ViewConfig, error) {
	if err := ctx.Err(); err != nil {
		return render.ViewConfig{}, err
	}
	return render.ViewConfig{
		RowPivots:    append([]string(nil), m.cfg.RowPivots...),
		ColumnPivots: append([]string(nil), m.cfg.ColumnPivots...),
	}, nil
}

// ColumnType returns the schema type of a table column.
func (m *Model) ColumnType(name string) string {
	return m.tbl.ColumnType(name)
}

// Rows returns the visible row count. Body row 0 is the pinned total row.
func (m *Model) Rows(section render.Section) int {
	if section == render.Header {
		return m.fr.headerRows
	}
	return len(m.fr.rows)
}

// Cols returns the visible cell count of a row: one cell per row pivot
// followed by the visible value columns.
func (m *Model) Cols(section render.Section, row int) int {
	if row < 0 || row >= m.Rows(section) {
		return 0
	}
	return len(m.rhWidths) + len(m.fr.cols)
}

// Meta describes a visible cell.
func (m *Model) Meta(cell render.Cell) (render.CellMeta, bool) {
	if cell.Row < 0 || cell.Row >= m.Rows(cell.Section) {
		return render.CellMeta{}, false
	}
	nrh := len(m.rhWidths)
	if cell.Col < 0 || cell.Col >= nrh+len(m.fr.cols) {
		return render.CellMeta{}, false
	}

	if cell.Section == render.Header {
		if cell.Col < nrh {
			return render.CellMeta{}, false
		}
		col := m.view.Columns[m.fr.cols[cell.Col-nrh]]
		return render.CellMeta{
			ColumnHeader: col.Path,
			Value:        col.Path[min(cell.Row, len(col.Path)-1)],
		}, true
	}

	row := m.view.Rows[m.fr.rows[cell.Row]]
	if cell.Col < nrh {
		level := cell.Col
		meta := render.CellMeta{
			RowHeader:   row.Labels,
			HeaderLevel: level + 1,
			PivotDepth:  row.Depth,
		}
		switch {
		case row.Depth == 0 && level == 0:
			meta.Value = table.TotalLabel
		case row.Depth == level+1 && level < len(row.Labels):
			meta.Value = row.Labels[level]
		}
		return meta, true
	}

	ci := m.fr.cols[cell.Col-nrh]
	raw := row.Cells[ci]
	return render.CellMeta{
		ColumnHeader: m.view.Columns[ci].Path,
		RowHeader:    row.Labels,
		PivotDepth:   row.Depth,
		Value:        table.FormatValue(raw),
		User:         raw,
	}, true
}

// Tag toggles a style tag on a cell until the next draw.
func (m *Model) Tag(cell render.Cell, tag render.Tag, on bool) {
	tags := m.tags[cell]
	if !on {
		if tags != nil {
			delete(tags, tag)
		}
		return
	}
	if tags == nil {
		tags = make(map[render.Tag]bool)
		m.tags[cell] = tags
	}
	tags[tag] = true
}

// HasTag reports whether a draw tagged the cell.
func (m *Model) HasTag(cell render.Cell, tag render.Tag) bool {
	return m.tags[cell][tag]
}

// Replace attaches content to a cell. Surfaces are recycled by later
// draws, so a thumbnail is painted into text right away.
func (m *Model) Replace(cell render.Cell, content render.Content) {
	switch c := content.(type) {
	case render.SurfaceContent:
		if c.Surface == nil {
			return
		}
		m.overlays[cell] = overlay{lines: m.opts.Painter.Lines(c.Surface.Image)}
	case render.LinkContent:
		link := c
		m.overlays[cell] = overlay{link: &link}
	}
}

// Overlay returns the painted thumbnail lines or link attached to a cell.
func (m *Model) Overlay(cell render.Cell) (lines []string, link *render.LinkContent, ok bool) {
	o, ok := m.overlays[cell]
	return o.lines, o.link, ok
}

func (m *Model) linkText(l *render.LinkContent) string {
	if m.profile == termenv.Ascii {
		return l.Label
	}
	return termenv.Hyperlink(l.URL, l.Label)
}
