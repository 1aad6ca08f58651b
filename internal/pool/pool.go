// Package pool keeps a fixed ring of reusable drawing surfaces per view.
//
// A ring is allocated on a view's first refresh and never grows. Surfaces are
// handed out round-robin, so once every slot has been used the oldest
// surface is overwritten first.
package pool

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sort"
	"sync"
)

var (
	// ErrPoolNotInitialized is returned when a surface is requested for a
	// view whose ring was never allocated or has been released.
	ErrPoolNotInitialized = errors.New("pool not initialized")

	// ErrInvalidSize rejects non-positive capacities and tile sizes.
	ErrInvalidSize = errors.New("invalid pool size")
)

// Surface is one opaque drawing target.
type Surface struct {
	// Index is the slot in the owning ring.
	Index int
	// Image is overwritten in place; it is never resized.
	Image *image.RGBA
}

// Stats describes a view's ring.
type Stats struct {
	Capacity int
	Cursor   int
	Draws    int64
	TileW    int
	TileH    int
}

type ring struct {
	surfaces []*Surface
	cursor   int
	draws    int64
	tileW    int
	tileH    int
}

// Registry maps view ids to their rings. It is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	views map[string]*ring
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*ring)}
}

// EnsureCapacity allocates capacity blank surfaces of tileW x tileH for
// viewID. It is a no-op when the view already has a ring, whatever its size.
func (r *Registry) EnsureCapacity(viewID string, capacity, tileW, tileH int) error {
	if capacity <= 0 || tileW <= 0 || tileH <= 0 {
		return fmt.Errorf("%w: capacity=%d tile=%dx%d", ErrInvalidSize, capacity, tileW, tileH)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.views[viewID]; ok {
		return nil
	}

	rg := &ring{surfaces: make([]*Surface, capacity), tileW: tileW, tileH: tileH}
	for i := range rg.surfaces {
		img := image.NewRGBA(image.Rect(0, 0, tileW, tileH))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		rg.surfaces[i] = &Surface{Index: i, Image: img}
	}
	r.views[viewID] = rg
	slog.Default().Debug("pool allocated", "view", viewID, "capacity", capacity, "tile_w", tileW, "tile_h", tileH)
	return nil
}

// NextSurface returns the surface at the view's cursor and advances it,
// wrapping to the first slot after the last.
func (r *Registry) NextSurface(viewID string) (*Surface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rg, ok := r.views[viewID]
	if !ok {
		return nil, fmt.Errorf("%w: view %q", ErrPoolNotInitialized, viewID)
	}
	s := rg.surfaces[rg.cursor]
	rg.cursor = (rg.cursor + 1) % len(rg.surfaces)
	rg.draws++
	return s, nil
}

// Release drops the view's ring. Releasing an unknown view is a no-op.
func (r *Registry) Release(viewID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.views[viewID]; !ok {
		return false
	}
	delete(r.views, viewID)
	slog.Default().Debug("pool released", "view", viewID)
	return true
}

// Sync releases every view not listed in active and returns the released
// ids in sorted order.
func (r *Registry) Sync(active []string) []string {
	keep := make(map[string]struct{}, len(active))
	for _, id := range active {
		keep[id] = struct{}{}
	}

	r.mu.Lock()
	var released []string
	for id := range r.views {
		if _, ok := keep[id]; !ok {
			delete(r.views, id)
			released = append(released, id)
		}
	}
	r.mu.Unlock()

	sort.Strings(released)
	if len(released) > 0 {
		slog.Default().Debug("pool sync released views", "views", released)
	}
	return released
}

// Has reports whether viewID has a ring.
func (r *Registry) Has(viewID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.views[viewID]
	return ok
}

// Stats returns the ring state for viewID.
func (r *Registry) Stats(viewID string) (Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rg, ok := r.views[viewID]
	if !ok {
		return Stats{}, false
	}
	return Stats{
		Capacity: len(rg.surfaces),
		Cursor:   rg.cursor,
		Draws:    rg.draws,
		TileW:    rg.tileW,
		TileH:    rg.tileH,
	}, true
}

// Views returns the ids with a live ring, sorted.
func (r *Registry) Views() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}
