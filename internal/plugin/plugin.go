// Package plugin registers the grid renderers a view can be drawn with.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/render"
)

// Names of the built-in plugins.
const (
	ThumbnailDatagrid = "Thumbnail Datagrid"
	Datagrid          = "Datagrid"
)

var (
	ErrDuplicate = errors.New("plugin already registered")
	ErrNotFound  = errors.New("plugin not found")
)

// DrawFunc runs after the host grid has laid out a view.
type DrawFunc func(ctx context.Context, viewID string, g render.Grid, a *atlas.Atlas) (render.Stats, error)

// Descriptor describes one plugin.
type Descriptor struct {
	Name string
	// Thumbnails reports whether the plugin overlays asset cells.
	Thumbnails bool
	Draw       DrawFunc
	// Destroy releases per-view resources. It may be nil.
	Destroy func(viewID string)
}

// Registry holds plugins by name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Descriptor)}
}

// Register adds d. Names are unique.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("plugin name is required")
	}
	if d.Draw == nil {
		d.Draw = func(context.Context, string, render.Grid, *atlas.Atlas) (render.Stats, error) {
			return render.Stats{}, nil
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[d.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, d.Name)
	}
	r.plugins[d.Name] = d
	return nil
}

// Get returns the plugin called name.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.plugins[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return d, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for n := range r.plugins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a registry holding the thumbnail datagrid backed by rd and
// the plain datagrid.
func Builtin(rd *render.Renderer) (*Registry, error) {
	reg := NewRegistry()
	if err := reg.Register(Descriptor{
		Name:       ThumbnailDatagrid,
		Thumbnails: true,
		Draw:       rd.OnRefresh,
		Destroy:    rd.Release,
	}); err != nil {
		return nil, err
	}
	if err := reg.Register(Descriptor{Name: Datagrid}); err != nil {
		return nil, err
	}
	return reg, nil
}
