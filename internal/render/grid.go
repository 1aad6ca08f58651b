// Package render classifies the visible cells of a grid view and overlays
// asset cells with thumbnails cut from the shared atlas.
package render

import (
	"context"

	"github.com/Dicklesworthstone/thumbgrid/internal/pool"
)

// Section identifies the header or body part of a grid.
type Section int

const (
	Header Section = iota
	Body
)

func (s Section) String() string {
	if s == Header {
		return "header"
	}
	return "body"
}

// Cell addresses one visible cell. Row and Col are relative to the visible
// window of the section.
type Cell struct {
	Section Section
	Row     int
	Col     int
}

// ViewConfig is the pivot configuration of a view.
type ViewConfig struct {
	RowPivots    []string `yaml:"row_pivots,omitempty" json:"row_pivots,omitempty"`
	ColumnPivots []string `yaml:"column_pivots,omitempty" json:"column_pivots,omitempty"`
}

// ImagePivotIndex returns the position of the image field among the row
// pivots, or -1.
func (c ViewConfig) ImagePivotIndex() int {
	for i, p := range c.RowPivots {
		if p == ImageColumn {
			return i
		}
	}
	return -1
}

// CellMeta is the read-only metadata the grid attaches to a cell.
type CellMeta struct {
	// ColumnHeader is the column path; the last element is the column name.
	ColumnHeader []string
	// RowHeader is the row pivot path of the row.
	RowHeader []string
	// HeaderLevel is the 1-based row pivot level a row-header cell shows,
	// or 0 for data cells.
	HeaderLevel int
	// PivotDepth is the depth of the row in the pivot tree. The total row
	// has depth 0.
	PivotDepth int
	// Value is the display text.
	Value string
	// User is the raw value behind the cell, if any.
	User any
}

// Column returns the last column header segment.
func (m CellMeta) Column() string {
	if len(m.ColumnHeader) == 0 {
		return ""
	}
	return m.ColumnHeader[len(m.ColumnHeader)-1]
}

// Tag is a stylistic marker a grid can toggle on a cell.
type Tag string

const (
	TagTimestamp Tag = "timestamp"
	TagThumbnail Tag = "thumbnail"
)

// Content replaces a cell's text.
type Content interface {
	content()
}

// SurfaceContent shows a pool surface holding the thumbnail of AssetID.
type SurfaceContent struct {
	Surface *pool.Surface
	AssetID int
}

// LinkContent shows a hyperlink with a shortened label.
type LinkContent struct {
	URL   string
	Label string
}

func (SurfaceContent) content() {}
func (LinkContent) content()    {}

// Grid is the host grid a Renderer walks on every refresh.
type Grid interface {
	// ViewConfig returns the current pivot configuration.
	ViewConfig(ctx context.Context) (ViewConfig, error)
	// ColumnType returns the schema type of a column ("date", "datetime",
	// "integer", ...) or "" when unknown.
	ColumnType(name string) string
	// Rows returns the number of visible rows in a section.
	Rows(section Section) int
	// Cols returns the number of visible cells in a row.
	Cols(section Section, row int) int
	// Meta returns the metadata of a cell; ok is false for filler cells.
	Meta(cell Cell) (meta CellMeta, ok bool)
	// Tag toggles a stylistic tag on a cell.
	Tag(cell Cell, tag Tag, on bool)
	// Replace clears the cell and attaches content.
	Replace(cell Cell, content Content)
}
