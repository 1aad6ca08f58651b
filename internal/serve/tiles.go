package serve

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
)

// AtlasInfo describes the loaded sprite sheet.
type AtlasInfo struct {
	Source      string `json:"source"`
	TileWidth   int    `json:"tile_width"`
	TileHeight  int    `json:"tile_height"`
	TilesPerRow int    `json:"tiles_per_row"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	TileCount   int    `json:"tile_count"`
}

// atlas waits for the shared load with the request context.
func (s *Server) atlas(w http.ResponseWriter, r *http.Request) (*atlas.Atlas, bool) {
	a, err := s.cfg.Loader.Load(s.cfg.Source).Wait(r.Context())
	switch {
	case err == nil:
		return a, true
	case r.Context().Err() != nil:
		// client went away
		return nil, false
	default:
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return nil, false
	}
}

func (s *Server) handleAtlas(w http.ResponseWriter, r *http.Request) {
	a, ok := s.atlas(w, r)
	if !ok {
		return
	}
	g := a.Geometry()
	b := a.Bounds()
	writeJSON(w, http.StatusOK, AtlasInfo{
		Source:      a.Source(),
		TileWidth:   g.TileWidth,
		TileHeight:  g.TileHeight,
		TilesPerRow: g.TilesPerRow,
		Width:       b.Dx(),
		Height:      b.Dy(),
		TileCount:   a.TileCount(),
	})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".png")
	if !ok {
		writeError(w, r, http.StatusNotFound, "tiles are served as <id>.png")
		return
	}
	id, err := strconv.Atoi(name)
	if err != nil || id < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid asset id "+strconv.Quote(name))
		return
	}

	a, ok := s.atlas(w, r)
	if !ok {
		return
	}
	tile, err := a.Tile(id)
	if errors.Is(err, atlas.ErrTileOutOfRange) {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, tile); err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
