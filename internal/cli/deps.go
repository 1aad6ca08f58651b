package cli

import (
	"fmt"
	"time"

	"github.com/muesli/termenv"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/config"
	"github.com/Dicklesworthstone/thumbgrid/internal/pool"
	"github.com/Dicklesworthstone/thumbgrid/internal/render"
	"github.com/Dicklesworthstone/thumbgrid/internal/state"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/thumb"
)

// newLoader builds the process-wide atlas loader.
func newLoader(c *config.Config) (*atlas.Loader, error) {
	geom, err := c.Atlas.Geometry()
	if err != nil {
		return nil, fmt.Errorf("atlas geometry: %w", err)
	}
	var opts []atlas.LoaderOption
	if c.Atlas.TimeoutSec > 0 {
		opts = append(opts, atlas.WithLoadTimeout(time.Duration(c.Atlas.TimeoutSec)*time.Second))
	}
	return atlas.NewLoader(geom, opts...), nil
}

// atlasSource resolves the configured source, expanding ~ for files.
func atlasSource(c *config.Config, override string) string {
	src := c.Atlas.Source
	if override != "" {
		src = override
	}
	return config.ExpandHome(src)
}

func newRenderer(c *config.Config, geom atlas.Geometry) (*render.Renderer, error) {
	scope, err := render.ParseDedupeScope(c.Render.Dedupe)
	if err != nil {
		return nil, err
	}
	return render.New(pool.NewRegistry(), render.Options{
		Capacity:   c.Pool.Capacity,
		Dedupe:     scope,
		TileWidth:  geom.TileWidth,
		TileHeight: geom.TileHeight,
	})
}

func newPainter(c *config.Config, profile termenv.Profile) *thumb.Painter {
	return thumb.NewPainter(profile, c.Thumbnails.Cols, c.Thumbnails.Rows)
}

// openStore opens and migrates the layout database.
func openStore(c *config.Config) (*state.Store, error) {
	store, err := state.Open(c.StateDBPath())
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}
