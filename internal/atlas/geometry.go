// Package atlas loads the shared thumbnail sprite sheet and addresses its tiles.
package atlas

import (
	"fmt"
	"image"
	"strings"
)

// DefaultTilesPerRow is the column count of the deployed sprite sheets.
// It must match the asset exactly, or thumbnails come from the wrong tile.
const DefaultTilesPerRow = 94

// Geometry describes a row-major grid of fixed-size tiles.
type Geometry struct {
	TileWidth   int
	TileHeight  int
	TilesPerRow int
}

// The two deployed sprite sheet variants.
var (
	Small = Geometry{TileWidth: 50, TileHeight: 50, TilesPerRow: DefaultTilesPerRow}
	Large = Geometry{TileWidth: 100, TileHeight: 100, TilesPerRow: DefaultTilesPerRow}
)

// Variant returns the named geometry ("small" or "large").
func Variant(name string) (Geometry, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "small":
		return Small, nil
	case "large":
		return Large, nil
	default:
		return Geometry{}, fmt.Errorf("unknown atlas variant %q: must be \"small\" or \"large\"", name)
	}
}

// Validate reports whether every dimension is positive.
func (g Geometry) Validate() error {
	if g.TileWidth <= 0 || g.TileHeight <= 0 {
		return fmt.Errorf("tile size must be positive, got %dx%d", g.TileWidth, g.TileHeight)
	}
	if g.TilesPerRow <= 0 {
		return fmt.Errorf("tiles_per_row must be positive, got %d", g.TilesPerRow)
	}
	return nil
}

// Offset returns the top-left pixel of tile id:
// ((id mod TilesPerRow) * TileWidth, (id div TilesPerRow) * TileHeight).
func (g Geometry) Offset(id int) image.Point {
	return image.Point{
		X: (id % g.TilesPerRow) * g.TileWidth,
		Y: (id / g.TilesPerRow) * g.TileHeight,
	}
}

// Rect returns the source rectangle of tile id.
func (g Geometry) Rect(id int) image.Rectangle {
	p := g.Offset(id)
	return image.Rect(p.X, p.Y, p.X+g.TileWidth, p.Y+g.TileHeight)
}

// Capacity returns how many ids, counting from 0, address whole tiles
// inside bounds.
func (g Geometry) Capacity(bounds image.Rectangle) int {
	if g.Validate() != nil {
		return 0
	}
	cols := bounds.Dx() / g.TileWidth
	rows := bounds.Dy() / g.TileHeight
	if rows == 0 {
		return 0
	}
	if cols < g.TilesPerRow {
		// narrower than one row: only the prefix of row 0 is contiguous
		return cols
	}
	return g.TilesPerRow * rows
}

// Size returns the pixel size of a sheet holding n tiles.
func (g Geometry) Size(n int) image.Point {
	if n <= 0 {
		return image.Point{}
	}
	rows := (n + g.TilesPerRow - 1) / g.TilesPerRow
	return image.Point{X: g.TilesPerRow * g.TileWidth, Y: rows * g.TileHeight}
}
