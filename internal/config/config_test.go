package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
)

func TestDefaultIsValid(t *testing.T) {
	if errs := Validate(Default()); len(errs) != 0 {
		t.Fatalf("Validate(Default()) = %v", errs)
	}
	g, err := Default().Atlas.Geometry()
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	if g != atlas.Small {
		t.Errorf("default geometry = %+v, want %+v", g, atlas.Small)
	}
}

func TestLoadOverlaysTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
events_file = "/data/events.csv"

[atlas]
source = "https://example.com/atlas.jpg"
variant = "large"
tiles_per_row = 50

[render]
dedupe = "view"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EventsFile != "/data/events.csv" {
		t.Errorf("EventsFile = %q", cfg.EventsFile)
	}
	if cfg.Render.Dedupe != "view" {
		t.Errorf("Render.Dedupe = %q", cfg.Render.Dedupe)
	}
	// untouched sections keep their defaults
	if cfg.Pool.Capacity != 300 || cfg.Serve.Port != 7338 {
		t.Errorf("defaults lost: pool=%d port=%d", cfg.Pool.Capacity, cfg.Serve.Port)
	}

	g, err := cfg.Atlas.Geometry()
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	want := atlas.Geometry{TileWidth: 100, TileHeight: 100, TilesPerRow: 50}
	if g != want {
		t.Errorf("Geometry = %+v, want %+v", g, want)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Thumbnails.Cols != 10 || cfg.Thumbnails.Rows != 5 {
		t.Errorf("Thumbnails = %+v", cfg.Thumbnails)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("events_file = [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Fatalf("Load error = %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("THUMBGRID_ATLAS", "/tmp/atlas.jpg")
	t.Setenv("THUMBGRID_EVENTS", "/tmp/events.json")
	t.Setenv("THUMBGRID_LOG_LEVEL", "debug")
	t.Setenv("THUMBGRID_POOL_CAPACITY", "42")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Atlas.Source != "/tmp/atlas.jpg" || cfg.EventsFile != "/tmp/events.json" {
		t.Errorf("paths = %q, %q", cfg.Atlas.Source, cfg.EventsFile)
	}
	if cfg.LogLevel != "debug" || cfg.Pool.Capacity != 42 {
		t.Errorf("log_level=%q capacity=%d", cfg.LogLevel, cfg.Pool.Capacity)
	}

	t.Setenv("THUMBGRID_POOL_CAPACITY", "-1")
	cfg, _ = Load(filepath.Join(t.TempDir(), "missing.toml"))
	if cfg.Pool.Capacity != 300 {
		t.Errorf("invalid capacity override applied: %d", cfg.Pool.Capacity)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"variant", func(c *Config) { c.Atlas.Variant = "huge" }, "atlas"},
		{"capacity", func(c *Config) { c.Pool.Capacity = 0 }, "pool.capacity"},
		{"dedupe", func(c *Config) { c.Render.Dedupe = "always" }, "render.dedupe"},
		{"thumbnails", func(c *Config) { c.Thumbnails.Rows = 0 }, "thumbnails"},
		{"plugin", func(c *Config) { c.Workspace.DefaultPlugin = "Chart" }, "workspace.default_plugin"},
		{"debounce", func(c *Config) { c.Watch.DebounceMs = -5 }, "watch.debounce_ms"},
		{"port", func(c *Config) { c.Serve.Port = 70000 }, "serve.port"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			errs := Validate(cfg)
			if len(errs) != 1 {
				t.Fatalf("Validate = %v, want exactly one error", errs)
			}
			if !strings.Contains(errs[0].Error(), tc.want) {
				t.Errorf("error %q does not mention %q", errs[0], tc.want)
			}
		})
	}

	if errs := Validate(nil); len(errs) != 1 {
		t.Errorf("Validate(nil) = %v", errs)
	}
}

func TestPrintRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Atlas.TileWidth = 64
	cfg.LogFile = "/var/log/thumbgrid.log"

	var b strings.Builder
	if err := Print(cfg, &b); err != nil {
		t.Fatalf("Print: %v", err)
	}

	got := Default()
	if _, err := toml.Decode(b.String(), got); err != nil {
		t.Fatalf("printed config does not parse: %v\n%s", err, b.String())
	}
	if got.Atlas.TileWidth != 64 || got.LogFile != cfg.LogFile || got.Serve != cfg.Serve || got.Workspace != cfg.Workspace {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestCreateDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("THUMBGRID_CONFIG", filepath.Join(dir, "sub", "config.toml"))

	path, err := CreateDefault()
	if err != nil {
		t.Fatalf("CreateDefault: %v", err)
	}
	if path != filepath.Join(dir, "sub", "config.toml") {
		t.Errorf("path = %q", path)
	}
	if _, err := CreateDefault(); err == nil {
		t.Error("second CreateDefault should refuse to overwrite")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("THUMBGRID_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "thumbgrid", "config.toml") {
		t.Errorf("DefaultPath = %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~":          home,
		"~/a/b.json": filepath.Join(home, "a", "b.json"),
		"/abs":       "/abs",
		"~user/x":    "~user/x",
	}
	for in, want := range tests {
		if got := ExpandHome(in); got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatePaths(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")
	cfg := Default()
	if got := cfg.LogPath(); got != filepath.Join("/state", "thumbgrid", "thumbgrid.log") {
		t.Errorf("LogPath = %q", got)
	}
	if got := cfg.StateDBPath(); got != filepath.Join("/state", "thumbgrid", "layout.db") {
		t.Errorf("StateDBPath = %q", got)
	}
	cfg.Workspace.StateDB = "/tmp/x.db"
	if got := cfg.StateDBPath(); got != "/tmp/x.db" {
		t.Errorf("StateDBPath override = %q", got)
	}
}
