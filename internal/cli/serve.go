package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/thumbgrid/internal/events"
	"github.com/Dicklesworthstone/thumbgrid/internal/serve"
)

type serveOptions struct {
	Host  string
	Port  int
	Atlas string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve atlas tiles over HTTP",
		Long: `Start a local HTTP server that serves individual thumbnails cut from the
sprite sheet.

API Endpoints:
  GET /health                 Health check with atlas state
  GET /api/v1/atlas           Atlas geometry (JSON)
  GET /api/v1/tiles/{id}.png  One tile as PNG
  GET /events                 Server-Sent Events stream

Examples:
  thumbgrid serve                    # Start on 127.0.0.1:7338
  thumbgrid serve --port 8080 --atlas https://example.com/atlas.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("host") {
				opts.Host = cfg.Serve.Host
			}
			if !cmd.Flags().Changed("port") {
				opts.Port = cfg.Serve.Port
			}
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Host, "host", "127.0.0.1", "HTTP bind host")
	cmd.Flags().IntVar(&opts.Port, "port", 7338, "HTTP server port")
	cmd.Flags().StringVar(&opts.Atlas, "atlas", "", "Sprite sheet path or URL (overrides config)")
	return cmd
}

func runServe(parent context.Context, opts serveOptions) error {
	loader, err := newLoader(cfg)
	if err != nil {
		return err
	}
	bus := events.DefaultBus
	src := atlasSource(cfg, opts.Atlas)

	srv, err := serve.New(serve.Config{
		Host:     opts.Host,
		Port:     opts.Port,
		Loader:   loader,
		Source:   src,
		EventBus: bus,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// warm the atlas so the first tile request does not pay for the load
	go func() {
		a, err := loader.Load(src).Wait(ctx)
		source := src
		if a != nil {
			source = a.Source()
		}
		if ctx.Err() == nil {
			bus.Publish(events.NewAtlasLoaded(source, err))
		}
	}()

	slog.Default().Info("server starting", "host", opts.Host, "port", opts.Port, "atlas", src)
	fmt.Printf("Serving tiles on http://%s\n", srv.Addr())
	fmt.Println("Press Ctrl+C to stop")
	return srv.Start(ctx)
}
