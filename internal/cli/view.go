package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/config"
	"github.com/Dicklesworthstone/thumbgrid/internal/events"
	"github.com/Dicklesworthstone/thumbgrid/internal/plugin"
	"github.com/Dicklesworthstone/thumbgrid/internal/table"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/workspace"
	"github.com/Dicklesworthstone/thumbgrid/internal/watcher"
)

type viewOptions struct {
	Atlas     string
	NoRestore bool
	NoWatch   bool
	Plain     bool
}

var viewOpts viewOptions

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [events-file]",
		Short: "Open the workspace",
		Long: `Open the tabbed grid workspace on an events file (JSON, CSV or YAML).

Keys:
  tab / shift+tab   switch views        n / N   new thumbnail / plain view
  x                 close view          s       toggle split panes
  :                 edit view, e.g. ":rows collection" or ":reset"
  R                 retry a failed atlas load
  q                 quit`,
		Args: cobra.MaximumNArgs(1),
		RunE: runView,
	}
	cmd.Flags().StringVar(&viewOpts.Atlas, "atlas", "", "Sprite sheet path or URL (overrides config)")
	cmd.Flags().BoolVar(&viewOpts.NoRestore, "no-restore", false, "Start from the default layout")
	cmd.Flags().BoolVar(&viewOpts.NoWatch, "no-watch", false, "Do not reload the events file when it changes")
	cmd.Flags().BoolVar(&viewOpts.Plain, "plain", false, "Open new views without thumbnails")
	return cmd
}

func eventsPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.ExpandHome(cfg.EventsFile)
}

func runView(cmd *cobra.Command, args []string) error {
	path := eventsPath(args)
	tbl, err := table.LoadFile(path)
	if err != nil {
		return err
	}

	// the TUI owns stdout and stderr from here on
	logPath := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	_ = setupLogging(logFile, cfg.LogLevel)

	loader, err := newLoader(cfg)
	if err != nil {
		return err
	}
	rd, err := newRenderer(cfg, loader.Geometry())
	if err != nil {
		return err
	}
	plugins, err := plugin.Builtin(rd)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		// layouts are a convenience; the workspace still runs without them
		slog.Default().Warn("layout persistence disabled", "error", err)
	} else {
		defer store.Close()
	}

	profile := termenv.Ascii
	if colorEnabled(os.Stdout) {
		profile = termenv.NewOutput(os.Stdout).EnvColorProfile()
	}

	defaultPlugin := cfg.Workspace.DefaultPlugin
	if viewOpts.Plain {
		defaultPlugin = plugin.Datagrid
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bus := events.NewEventBus(100)
	unsubscribe := bus.Subscribe(events.TypeLayoutUpdate, func(ev events.BusEvent) {
		if lu, ok := ev.(events.LayoutUpdate); ok {
			if released := rd.Sync(lu.Views); len(released) > 0 {
				slog.Default().Debug("released view pools", "views", released)
			}
		}
	})
	defer unsubscribe()

	src := atlasSource(cfg, viewOpts.Atlas)
	opts := workspace.Options{
		Table:         tbl,
		Plugins:       plugins,
		Bus:           bus,
		Store:         store,
		Restore:       cfg.Workspace.Restore && !viewOpts.NoRestore,
		DefaultPlugin: defaultPlugin,
		Painter:       newPainter(cfg, profile),
		EventsPath:    path,
		Context:       ctx,
	}
	if src != "" {
		opts.LoadAtlas = func() *atlas.Signal { return loader.Load(src) }
	}

	ws, err := workspace.New(opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(ws, tea.WithAltScreen(), tea.WithContext(ctx))

	if cfg.Watch.Enabled && !viewOpts.NoWatch {
		emitter := events.NewEmitter(bus, 16)
		unsubscribeReload := bus.Subscribe(events.TypeTableReloaded, func(ev events.BusEvent) {
			if tr, ok := ev.(events.TableReloaded); ok {
				p.Send(workspace.ReloadMsg{Path: tr.Path})
			}
		})
		defer unsubscribeReload()

		fw, err := watcher.New(path, func(changed string) {
			emitter.Emit(events.NewTableReloaded(changed))
		}, watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond))
		if err != nil {
			slog.Default().Warn("live reload disabled", "path", path, "error", err)
		} else {
			defer fw.Close()
		}
	}

	slog.Default().Info("workspace starting", "events", path, "rows", tbl.Len(), "atlas", src)
	_, err = p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
