// Package config loads the thumbgrid TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/plugin"
	"github.com/Dicklesworthstone/thumbgrid/internal/render"
	"github.com/Dicklesworthstone/thumbgrid/internal/util"
)

// Config is the whole configuration file.
type Config struct {
	EventsFile string `toml:"events_file"`
	LogLevel   string `toml:"log_level"`
	LogFile    string `toml:"log_file"`

	Atlas      AtlasConfig     `toml:"atlas"`
	Pool       PoolConfig      `toml:"pool"`
	Render     RenderConfig    `toml:"render"`
	Thumbnails ThumbnailConfig `toml:"thumbnails"`
	Workspace  WorkspaceConfig `toml:"workspace"`
	Watch      WatchConfig     `toml:"watch"`
	Serve      ServeConfig     `toml:"serve"`
}

// AtlasConfig locates the sprite sheet and describes its tiles. Zero tile
// fields fall back to the variant.
type AtlasConfig struct {
	Source      string `toml:"source"`
	Variant     string `toml:"variant"`
	TileWidth   int    `toml:"tile_width"`
	TileHeight  int    `toml:"tile_height"`
	TilesPerRow int    `toml:"tiles_per_row"`
	TimeoutSec  int    `toml:"timeout_sec"`
}

// Geometry resolves the tile layout.
func (c AtlasConfig) Geometry() (atlas.Geometry, error) {
	g, err := atlas.Variant(c.Variant)
	if err != nil {
		return atlas.Geometry{}, err
	}
	if c.TileWidth > 0 {
		g.TileWidth = c.TileWidth
	}
	if c.TileHeight > 0 {
		g.TileHeight = c.TileHeight
	}
	if c.TilesPerRow > 0 {
		g.TilesPerRow = c.TilesPerRow
	}
	return g, g.Validate()
}

// PoolConfig sizes the per-view surface rings.
type PoolConfig struct {
	Capacity int `toml:"capacity"`
}

// RenderConfig tunes the thumbnail renderer.
type RenderConfig struct {
	Dedupe string `toml:"dedupe"`
}

// ThumbnailConfig is the terminal cell size of a painted thumbnail.
type ThumbnailConfig struct {
	Cols int `toml:"cols"`
	Rows int `toml:"rows"`
}

// WorkspaceConfig controls layout persistence.
type WorkspaceConfig struct {
	StateDB       string `toml:"state_db"`
	Restore       bool   `toml:"restore"`
	DefaultPlugin string `toml:"default_plugin"`
}

// WatchConfig controls live reload of the events file.
type WatchConfig struct {
	Enabled    bool `toml:"enabled"`
	DebounceMs int  `toml:"debounce_ms"`
}

// ServeConfig is the tile server listen address.
type ServeConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (c ServeConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		EventsFile: "~/.local/share/thumbgrid/events.json",
		LogLevel:   "info",
		Atlas: AtlasConfig{
			Source:     "~/.local/share/thumbgrid/atlas.jpg",
			Variant:    "small",
			TimeoutSec: 30,
		},
		Pool:       PoolConfig{Capacity: render.DefaultCapacity},
		Render:     RenderConfig{Dedupe: string(render.DedupeCycle)},
		Thumbnails: ThumbnailConfig{Cols: 10, Rows: 5},
		Workspace: WorkspaceConfig{
			Restore:       true,
			DefaultPlugin: plugin.ThumbnailDatagrid,
		},
		Watch: WatchConfig{Enabled: true, DebounceMs: 250},
		Serve: ServeConfig{Host: "127.0.0.1", Port: 7338},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	if env := os.Getenv("THUMBGRID_CONFIG"); env != "" {
		return ExpandHome(env)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "thumbgrid", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "thumbgrid", "config.toml")
}

// stateDir is where the log file and layout database live by default.
func stateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "thumbgrid")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", "thumbgrid")
}

// LogPath returns the log file used while the TUI owns the terminal.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return ExpandHome(c.LogFile)
	}
	return filepath.Join(stateDir(), "thumbgrid.log")
}

// StateDBPath returns the layout database path.
func (c *Config) StateDBPath() string {
	if c.Workspace.StateDB != "" {
		return ExpandHome(c.Workspace.StateDB)
	}
	return filepath.Join(stateDir(), "layout.db")
}

// Load reads path over the defaults and applies environment overrides
// (env > TOML > default). A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if v := os.Getenv("THUMBGRID_ATLAS"); v != "" {
		cfg.Atlas.Source = v
	}
	if v := os.Getenv("THUMBGRID_EVENTS"); v != "" {
		cfg.EventsFile = v
	}
	if v := os.Getenv("THUMBGRID_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("THUMBGRID_POOL_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pool.Capacity = n
		}
	}
	return cfg, nil
}

// CreateDefault writes the default config to DefaultPath. It refuses to
// overwrite an existing file.
func CreateDefault() (string, error) {
	path := DefaultPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists: %s", path)
	}

	var b strings.Builder
	if err := Print(Default(), &b); err != nil {
		return "", err
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Print writes cfg as a commented TOML file.
func Print(cfg *Config, w io.Writer) error {
	fmt.Fprintln(w, "# thumbgrid configuration")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# Sales event table (JSON, JSON lines, CSV or YAML)")
	fmt.Fprintf(w, "events_file = %q\n", cfg.EventsFile)
	fmt.Fprintln(w, "# debug, info, warn or error")
	fmt.Fprintf(w, "log_level = %q\n", cfg.LogLevel)
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "log_file = %q\n", cfg.LogFile)
	} else {
		fmt.Fprintln(w, "# log_file = \"~/.local/state/thumbgrid/thumbgrid.log\"")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[atlas]")
	fmt.Fprintln(w, "# Sprite sheet path or http(s) URL")
	fmt.Fprintf(w, "source = %q\n", cfg.Atlas.Source)
	fmt.Fprintln(w, "# small (50px tiles) or large (100px tiles)")
	fmt.Fprintf(w, "variant = %q\n", cfg.Atlas.Variant)
	writeOptionalInt(w, "tile_width", cfg.Atlas.TileWidth)
	writeOptionalInt(w, "tile_height", cfg.Atlas.TileHeight)
	writeOptionalInt(w, "tiles_per_row", cfg.Atlas.TilesPerRow)
	fmt.Fprintf(w, "timeout_sec = %d\n", cfg.Atlas.TimeoutSec)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[pool]")
	fmt.Fprintln(w, "# Thumbnail surfaces per view")
	fmt.Fprintf(w, "capacity = %d\n", cfg.Pool.Capacity)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[render]")
	fmt.Fprintln(w, "# Skip repeated assets: cycle, view or off")
	fmt.Fprintf(w, "dedupe = %q\n", cfg.Render.Dedupe)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[thumbnails]")
	fmt.Fprintln(w, "# Terminal cells per thumbnail")
	fmt.Fprintf(w, "cols = %d\n", cfg.Thumbnails.Cols)
	fmt.Fprintf(w, "rows = %d\n", cfg.Thumbnails.Rows)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[workspace]")
	if cfg.Workspace.StateDB != "" {
		fmt.Fprintf(w, "state_db = %q\n", cfg.Workspace.StateDB)
	} else {
		fmt.Fprintln(w, "# state_db = \"~/.local/state/thumbgrid/layout.db\"")
	}
	fmt.Fprintf(w, "restore = %t\n", cfg.Workspace.Restore)
	fmt.Fprintf(w, "default_plugin = %q\n", cfg.Workspace.DefaultPlugin)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[watch]")
	fmt.Fprintf(w, "enabled = %t\n", cfg.Watch.Enabled)
	fmt.Fprintf(w, "debounce_ms = %d\n", cfg.Watch.DebounceMs)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[serve]")
	fmt.Fprintf(w, "host = %q\n", cfg.Serve.Host)
	fmt.Fprintf(w, "port = %d\n", cfg.Serve.Port)
	return nil
}

func writeOptionalInt(w io.Writer, key string, v int) {
	if v > 0 {
		fmt.Fprintf(w, "%s = %d\n", key, v)
		return
	}
	fmt.Fprintf(w, "# %s = 0\n", key)
}

// ExpandHome expands a leading "~" or "~/" to the home directory.
func ExpandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Validate checks the configuration and returns every problem found.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	var errs []error
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: must be debug, info, warn or error, got %q", cfg.LogLevel))
	}

	if _, err := cfg.Atlas.Geometry(); err != nil {
		errs = append(errs, fmt.Errorf("atlas: %w", err))
	}
	if cfg.Atlas.TileWidth < 0 || cfg.Atlas.TileHeight < 0 || cfg.Atlas.TilesPerRow < 0 {
		errs = append(errs, fmt.Errorf("atlas: tile dimensions must be non-negative"))
	}
	if cfg.Atlas.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("atlas.timeout_sec: must be non-negative, got %d", cfg.Atlas.TimeoutSec))
	}

	if cfg.Pool.Capacity < 1 {
		errs = append(errs, fmt.Errorf("pool.capacity: must be at least 1, got %d", cfg.Pool.Capacity))
	}
	if _, err := render.ParseDedupeScope(cfg.Render.Dedupe); err != nil {
		errs = append(errs, fmt.Errorf("render.dedupe: %w", err))
	}
	if cfg.Thumbnails.Cols < 1 || cfg.Thumbnails.Rows < 1 {
		errs = append(errs, fmt.Errorf("thumbnails: cols and rows must be at least 1, got %dx%d", cfg.Thumbnails.Cols, cfg.Thumbnails.Rows))
	}

	switch cfg.Workspace.DefaultPlugin {
	case plugin.ThumbnailDatagrid, plugin.Datagrid:
	default:
		errs = append(errs, fmt.Errorf("workspace.default_plugin: must be %q or %q, got %q",
			plugin.ThumbnailDatagrid, plugin.Datagrid, cfg.Workspace.DefaultPlugin))
	}

	if cfg.Watch.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce_ms: must be non-negative, got %d", cfg.Watch.DebounceMs))
	}
	if cfg.Serve.Port < 0 || cfg.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port: must be between 0 and 65535, got %d", cfg.Serve.Port))
	}
	return errs
}
