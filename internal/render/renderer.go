package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/pool"
)

// DefaultCapacity is the number of surfaces each view may hold.
const DefaultCapacity = 300

// DedupeScope controls duplicate suppression of image cells.
type DedupeScope string

const (
	// DedupeCycle suppresses repeats of an asset within one refresh.
	DedupeCycle DedupeScope = "cycle"
	// DedupeView also reattaches an asset drawn in an earlier refresh, as
	// long as its surface has not been recycled. Like suppression it only
	// applies while row pivots are active.
	DedupeView DedupeScope = "view"
	// DedupeOff never suppresses.
	DedupeOff DedupeScope = "off"
)

// ParseDedupeScope parses a config value; "" means DedupeCycle.
func ParseDedupeScope(s string) (DedupeScope, error) {
	switch DedupeScope(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupeCycle:
		return DedupeCycle, nil
	case DedupeView:
		return DedupeView, nil
	case DedupeOff:
		return DedupeOff, nil
	default:
		return "", fmt.Errorf("invalid dedupe scope %q: must be cycle, view or off", s)
	}
}

// Options configures a Renderer.
type Options struct {
	Capacity int
	Dedupe   DedupeScope
	// TileWidth and TileHeight size every surface.
	TileWidth  int
	TileHeight int
}

// Stats summarizes one OnRefresh call.
type Stats struct {
	Passes     int
	Cells      int
	Drawn      int
	Reused     int
	Suppressed int
	Links      int
	Timestamps int
	OutOfRange int

	// Coalesced is set when the call only marked a running refresh dirty.
	Coalesced bool
	// Stale is set when the view was released during the refresh.
	Stale bool
	// AtlasPending is set when no atlas was available to draw from.
	AtlasPending bool
}

func (s *Stats) add(o Stats) {
	s.Passes += o.Passes
	s.Cells += o.Cells
	s.Drawn += o.Drawn
	s.Reused += o.Reused
	s.Suppressed += o.Suppressed
	s.Links += o.Links
	s.Timestamps += o.Timestamps
	s.OutOfRange += o.OutOfRange
	s.Stale = s.Stale || o.Stale
	s.AtlasPending = s.AtlasPending || o.AtlasPending
}

type viewState struct {
	running bool
	dirty   bool

	// view-scope dedupe
	pivotKey string
	drawn    map[int]*pool.Surface
	holder   map[*pool.Surface]int
}

func newViewState() *viewState {
	return &viewState{drawn: make(map[int]*pool.Surface), holder: make(map[*pool.Surface]int)}
}

func (v *viewState) forget() {
	clear(v.drawn)
	clear(v.holder)
}

// Renderer runs the refresh cycle of every view. It owns the pool registry.
type Renderer struct {
	pools *pool.Registry
	opts  Options

	mu    sync.Mutex
	views map[string]*viewState
}

// New creates a renderer drawing into pools.
func New(pools *pool.Registry, opts Options) (*Renderer, error) {
	if pools == nil {
		pools = pool.NewRegistry()
	}
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Dedupe == "" {
		opts.Dedupe = DedupeCycle
	}
	if _, err := ParseDedupeScope(string(opts.Dedupe)); err != nil {
		return nil, err
	}
	if opts.Capacity < 0 || opts.TileWidth <= 0 || opts.TileHeight <= 0 {
		return nil, fmt.Errorf("%w: capacity=%d tile=%dx%d", pool.ErrInvalidSize, opts.Capacity, opts.TileWidth, opts.TileHeight)
	}
	return &Renderer{pools: pools, opts: opts, views: make(map[string]*viewState)}, nil
}

// Pools returns the registry the renderer draws into.
func (r *Renderer) Pools() *pool.Registry { return r.pools }

// Options returns the effective options.
func (r *Renderer) Options() Options { return r.opts }

// Release drops every resource of a removed view.
func (r *Renderer) Release(viewID string) {
	r.mu.Lock()
	delete(r.views, viewID)
	r.mu.Unlock()
	r.pools.Release(viewID)
}

// Sync releases every view not in active.
func (r *Renderer) Sync(active []string) []string {
	released := r.pools.Sync(active)
	r.mu.Lock()
	for _, id := range released {
		delete(r.views, id)
	}
	r.mu.Unlock()
	return released
}

// OnRefresh runs one classification and draw pass over the visible cells
// of viewID. a may be nil while the atlas is still loading; cells are then
// classified and tagged but nothing is drawn.
//
// A call arriving while a pass for the same view is running returns at
// once with Stats.Coalesced, and the running call repeats its pass.
func (r *Renderer) OnRefresh(ctx context.Context, viewID string, g Grid, a *atlas.Atlas) (Stats, error) {
	r.mu.Lock()
	vs, ok := r.views[viewID]
	if !ok {
		vs = newViewState()
		r.views[viewID] = vs
	}
	if vs.running {
		vs.dirty = true
		r.mu.Unlock()
		return Stats{Coalesced: true}, nil
	}
	vs.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		vs.running = false
		vs.dirty = false
		r.mu.Unlock()
	}()

	var total Stats
	for {
		st, err := r.cycle(ctx, viewID, vs, g, a)
		total.add(st)
		if err != nil || st.Stale {
			return total, err
		}

		r.mu.Lock()
		again := vs.dirty
		vs.dirty = false
		r.mu.Unlock()
		if !again {
			return total, nil
		}
	}
}

func (r *Renderer) released(viewID string, vs *viewState) bool {
	r.mu.Lock()
	cur := r.views[viewID]
	r.mu.Unlock()
	return cur != vs || !r.pools.Has(viewID)
}

func (r *Renderer) cycle(ctx context.Context, viewID string, vs *viewState, g Grid, a *atlas.Atlas) (Stats, error) {
	st := Stats{Passes: 1, AtlasPending: a == nil}
	if err := ctx.Err(); err != nil {
		return st, err
	}

	if err := r.pools.EnsureCapacity(viewID, r.opts.Capacity, r.opts.TileWidth, r.opts.TileHeight); err != nil {
		return st, fmt.Errorf("render %s: %w", viewID, err)
	}

	cfg, err := g.ViewConfig(ctx)
	if err != nil {
		return st, fmt.Errorf("render %s: view config: %w", viewID, err)
	}
	if r.released(viewID, vs) {
		slog.Default().Debug("refresh abandoned, view released", "view", viewID)
		st.Stale = true
		return st, nil
	}

	cl := NewClassifier(cfg, g.ColumnType)
	suppress := cl.RowPivotsActive() && r.opts.Dedupe != DedupeOff

	if r.opts.Dedupe == DedupeView {
		if key := strings.Join(cfg.RowPivots, "\x00"); key != vs.pivotKey {
			vs.forget()
			vs.pivotKey = key
		}
	}
	seen := make(map[int]struct{})
	reused := make(map[*pool.Surface]struct{})

	for row := 0; row < g.Rows(Header); row++ {
		for col := 0; col < g.Cols(Header, row); col++ {
			cell := Cell{Section: Header, Row: row, Col: col}
			meta, ok := g.Meta(cell)
			if !ok {
				continue
			}
			st.Cells++
			c := cl.Classify(cell, meta)
			g.Tag(cell, TagTimestamp, c.Timestamp)
			if c.Timestamp {
				st.Timestamps++
			}
		}
	}

	for row := 0; row < g.Rows(Body); row++ {
		pivotImageSeen := false
		for col := 0; col < g.Cols(Body, row); col++ {
			cell := Cell{Section: Body, Row: row, Col: col}
			meta, ok := g.Meta(cell)
			if !ok {
				continue
			}
			st.Cells++
			c := cl.Classify(cell, meta)
			g.Tag(cell, TagTimestamp, c.Timestamp)
			g.Tag(cell, TagThumbnail, c.Thumbnail())
			if c.Timestamp {
				st.Timestamps++
			}

			switch c.Kind {
			case KindPivotImage:
				pivotImageSeen = true
			case KindImage:
				if pivotImageSeen {
					st.Suppressed++
					continue
				}
			case KindPermalink:
				if c.Link != nil {
					g.Replace(cell, *c.Link)
					st.Links++
				}
				continue
			default:
				continue
			}

			if !c.HasAsset || a == nil {
				continue
			}
			if suppress {
				if _, dup := seen[c.AssetID]; dup {
					st.Suppressed++
					continue
				}
				seen[c.AssetID] = struct{}{}
			}

			if suppress && r.opts.Dedupe == DedupeView {
				if s, ok := vs.drawn[c.AssetID]; ok {
					reused[s] = struct{}{}
					g.Replace(cell, SurfaceContent{Surface: s, AssetID: c.AssetID})
					st.Reused++
					continue
				}
			}

			if _, ok := a.TileRect(c.AssetID); !ok {
				st.OutOfRange++
				continue
			}
			s, err := r.nextSurface(viewID, reused)
			if err != nil {
				if errors.Is(err, pool.ErrPoolNotInitialized) && r.released(viewID, vs) {
					st.Stale = true
					return st, nil
				}
				return st, fmt.Errorf("render %s: %w", viewID, err)
			}
			if err := a.DrawTile(s.Image, c.AssetID); err != nil {
				return st, fmt.Errorf("render %s: %w", viewID, err)
			}
			if r.opts.Dedupe == DedupeView {
				if prev, ok := vs.holder[s]; ok {
					delete(vs.drawn, prev)
				}
				vs.holder[s] = c.AssetID
				vs.drawn[c.AssetID] = s
			}
			g.Replace(cell, SurfaceContent{Surface: s, AssetID: c.AssetID})
			st.Drawn++
		}
	}
	return st, nil
}

// nextSurface takes the next ring surface, stepping past surfaces already
// attached to a cell by reuse in this refresh. Once every slot is taken it
// falls back to plain ring order.
func (r *Renderer) nextSurface(viewID string, reused map[*pool.Surface]struct{}) (*pool.Surface, error) {
	var s *pool.Surface
	for try := 0; try < r.opts.Capacity; try++ {
		var err error
		if s, err = r.pools.NextSurface(viewID); err != nil {
			return nil, err
		}
		if _, taken := reused[s]; !taken {
			return s, nil
		}
	}
	return s, nil
}
