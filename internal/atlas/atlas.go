package atlas

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // sprite sheets are deployed as JPEG
	_ "image/png"
	"io"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Errors returned by the atlas package.
var (
	// ErrAssetLoad marks a failed fetch or decode of the sprite sheet.
	// Rendering cannot draw any thumbnail until a later load succeeds.
	ErrAssetLoad = errors.New("asset load failure")

	// ErrSourceMismatch is returned when a second, different sprite sheet is
	// requested. Only one atlas is loaded per process.
	ErrSourceMismatch = errors.New("atlas already bound to another source")

	// ErrTileOutOfRange is returned for ids whose tile is not inside the sheet.
	ErrTileOutOfRange = errors.New("tile out of range")
)

// Atlas is a decoded sprite sheet. It is never mutated after construction and
// is safe to share between goroutines.
type Atlas struct {
	img    image.Image
	geom   Geometry
	source string
}

// New wraps an already decoded image.
func New(img image.Image, geom Geometry, source string) (*Atlas, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrAssetLoad)
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	return &Atlas{img: img, geom: geom, source: source}, nil
}

// Decode reads and decodes a sprite sheet from r.
func Decode(r io.Reader, geom Geometry, source string) (*Atlas, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrAssetLoad, source, err)
	}
	return New(img, geom, source)
}

// Geometry returns the tile layout.
func (a *Atlas) Geometry() Geometry { return a.geom }

// Source returns where the sheet was loaded from.
func (a *Atlas) Source() string { return a.source }

// Bounds returns the pixel bounds of the sheet.
func (a *Atlas) Bounds() image.Rectangle { return a.img.Bounds() }

// Image returns the underlying image. Callers must not modify it.
func (a *Atlas) Image() image.Image { return a.img }

// TileCount returns how many contiguous ids the sheet can address.
func (a *Atlas) TileCount() int {
	return a.geom.Capacity(a.img.Bounds())
}

// TileRect returns the source rectangle of tile id, translated into the
// image's coordinate space. ok is false for negative ids and tiles that are
// not fully inside the sheet.
func (a *Atlas) TileRect(id int) (r image.Rectangle, ok bool) {
	if id < 0 {
		return image.Rectangle{}, false
	}
	b := a.img.Bounds()
	r = a.geom.Rect(id).Add(b.Min)
	if !r.In(b) {
		return image.Rectangle{}, false
	}
	return r, true
}

// DrawTile copies tile id into the full bounds of dst with nearest-pixel
// sampling and the Src operator. Surfaces are opaque, so nothing blends.
func (a *Atlas) DrawTile(dst draw.Image, id int) error {
	sr, ok := a.TileRect(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrTileOutOfRange, id)
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), a.img, sr, xdraw.Src, nil)
	return nil
}

// Tile returns a freshly allocated copy of tile id.
func (a *Atlas) Tile(id int) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, a.geom.TileWidth, a.geom.TileHeight))
	if err := a.DrawTile(dst, id); err != nil {
		return nil, err
	}
	return dst, nil
}
