package atlas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/Dicklesworthstone/thumbgrid/internal/util"
)

// Lookup maps an asset id to its tile box as [x0, x1, y0, y1].
type Lookup map[int][4]int

// WriteJSON writes the lookup table atomically.
func (l Lookup) WriteJSON(path string) error {
	keys := make([]int, 0, len(l))
	for id := range l {
		keys = append(keys, id)
	}
	sort.Ints(keys)

	out := make(map[string][4]int, len(l))
	for _, id := range keys {
		out[strconv.Itoa(id)] = l[id]
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding lookup: %w", err)
	}
	return util.AtomicWriteFile(path, data, 0644)
}

// sourceExts lists the thumbnail formats Build picks up.
var sourceExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

type sourceImage struct {
	id   int
	path string
}

// BuildStats summarizes an atlas build.
type BuildStats struct {
	Placed  int
	Skipped int
	MaxID   int
}

// Build composes a sprite sheet from <id>.<ext> thumbnails in dir. Each image
// is resized to one tile and placed at geom.Offset(id) on a white sheet large
// enough for the highest id. Files that fail to decode are skipped.
func Build(ctx context.Context, dir string, geom Geometry) (*image.RGBA, Lookup, BuildStats, error) {
	var stats BuildStats
	if err := geom.Validate(); err != nil {
		return nil, nil, stats, err
	}

	sources, err := scanSources(dir)
	if err != nil {
		return nil, nil, stats, err
	}
	if len(sources) == 0 {
		return nil, nil, stats, fmt.Errorf("no thumbnails found in %s", dir)
	}

	stats.MaxID = sources[len(sources)-1].id
	size := geom.Size(stats.MaxID + 1)
	sheet := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(sheet, sheet.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	lookup := make(Lookup, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, nil, stats, err
		}
		img, err := decodeFile(src.path)
		if err != nil {
			slog.Default().Warn("skipping thumbnail", "path", src.path, "error", err)
			stats.Skipped++
			continue
		}
		dr := geom.Rect(src.id)
		xdraw.CatmullRom.Scale(sheet, dr, img, img.Bounds(), xdraw.Src, nil)
		lookup[src.id] = [4]int{dr.Min.X, dr.Max.X, dr.Min.Y, dr.Max.Y}
		stats.Placed++
	}

	return sheet, lookup, stats, nil
}

func scanSources(dir string) ([]sourceImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading thumbnail dir: %w", err)
	}

	seen := make(map[int]string)
	var out []sourceImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !sourceExts[ext] {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil || id < 0 {
			continue
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("collision at id %d: %s and %s", id, prev, name)
		}
		seen[id] = name
		out = append(out, sourceImage{id: id, path: filepath.Join(dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// WriteJPEG encodes img as JPEG and writes it atomically.
func WriteJPEG(path string, img image.Image, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 100
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encoding atlas: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0644)
}
