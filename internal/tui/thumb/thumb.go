// Package thumb paints raster thumbnails into terminal cells.
//
// Each cell shows two vertically stacked pixels with the upper half block
// glyph: the foreground colours the top pixel and the background the bottom
// one. Terminals without colour get a luminance ramp instead.
package thumb

import (
	"image"
	"image/color"
	"strings"

	"github.com/muesli/termenv"
	xdraw "golang.org/x/image/draw"
)

const upperHalf = "▀"

// ramp runs from dark to light.
const ramp = " .:-=+*#%@"

// Painter renders images at a fixed cell size.
type Painter struct {
	profile termenv.Profile
	cols    int
	rows    int
}

// NewPainter returns a painter producing rows lines of cols cells.
func NewPainter(profile termenv.Profile, cols, rows int) *Painter {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &Painter{profile: profile, cols: cols, rows: rows}
}

// Size returns the cell size of a painted thumbnail.
func (p *Painter) Size() (cols, rows int) { return p.cols, p.rows }

// Profile returns the colour profile the painter targets.
func (p *Painter) Profile() termenv.Profile { return p.profile }

// Lines paints img. Every line is exactly cols cells wide.
func (p *Painter) Lines(img image.Image) []string {
	px := image.NewRGBA(image.Rect(0, 0, p.cols, p.rows*2))
	if img != nil {
		xdraw.NearestNeighbor.Scale(px, px.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	}

	lines := make([]string, p.rows)
	var b strings.Builder
	for row := 0; row < p.rows; row++ {
		b.Reset()
		for col := 0; col < p.cols; col++ {
			top := px.RGBAAt(col, row*2)
			bottom := px.RGBAAt(col, row*2+1)
			if p.profile == termenv.Ascii {
				b.WriteByte(rampChar(top, bottom))
				continue
			}
			b.WriteString(p.profile.String(upperHalf).
				Foreground(p.profile.FromColor(top)).
				Background(p.profile.FromColor(bottom)).
				String())
		}
		lines[row] = b.String()
	}
	return lines
}

func rampChar(a, b color.RGBA) byte {
	l := (luma(a) + luma(b)) / 2
	i := l * (len(ramp) - 1) / 255
	return ramp[i]
}

// luma is the Rec. 601 luminance in 0..255.
func luma(c color.RGBA) int {
	return (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
}
