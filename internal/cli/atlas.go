package cli

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/tui/thumb"
	"github.com/Dicklesworthstone/thumbgrid/internal/util"
)

func newAtlasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atlas",
		Short: "Build and inspect thumbnail sprite sheets",
	}
	cmd.AddCommand(newAtlasBuildCmd(), newAtlasInfoCmd(), newAtlasTileCmd())
	return cmd
}

type atlasBuildOptions struct {
	Output  string
	Lookup  string
	Variant string
	Quality int
}

func newAtlasBuildCmd() *cobra.Command {
	opts := atlasBuildOptions{Output: "atlas.jpg", Variant: "small", Quality: 100}
	cmd := &cobra.Command{
		Use:   "build <thumbnail-dir>",
		Short: "Compose <id>.<ext> thumbnails into a sprite sheet",
		Long: `Compose a sprite sheet from a directory of thumbnails named by asset id
(1042.png, 7.jpg, ...). Tile id N is placed at column N mod 94, row N div 94.

Examples:
  thumbgrid atlas build thumbs/ -o atlas.jpg
  thumbgrid atlas build thumbs/ --variant large -o atlas_large.jpg --lookup lookup.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAtlasBuild(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", opts.Output, "Sprite sheet to write (JPEG)")
	cmd.Flags().StringVar(&opts.Lookup, "lookup", "", "Also write an id -> tile box JSON lookup")
	cmd.Flags().StringVar(&opts.Variant, "variant", opts.Variant, "Tile size: small (50px) or large (100px)")
	cmd.Flags().IntVar(&opts.Quality, "quality", opts.Quality, "JPEG quality 1-100")
	return cmd
}

type atlasBuildResult struct {
	Output  string `json:"output"`
	Lookup  string `json:"lookup,omitempty"`
	Placed  int    `json:"placed"`
	Skipped int    `json:"skipped"`
	MaxID   int    `json:"max_id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

func runAtlasBuild(cmd *cobra.Command, dir string, opts atlasBuildOptions) error {
	geom, err := atlas.Variant(opts.Variant)
	if err != nil {
		return err
	}
	sheet, lookup, stats, err := atlas.Build(cmd.Context(), dir, geom)
	if err != nil {
		return err
	}
	if err := atlas.WriteJPEG(opts.Output, sheet, opts.Quality); err != nil {
		return err
	}
	if opts.Lookup != "" {
		if err := lookup.WriteJSON(opts.Lookup); err != nil {
			return err
		}
	}

	res := atlasBuildResult{
		Output:  opts.Output,
		Lookup:  opts.Lookup,
		Placed:  stats.Placed,
		Skipped: stats.Skipped,
		MaxID:   stats.MaxID,
		Width:   sheet.Bounds().Dx(),
		Height:  sheet.Bounds().Dy(),
	}
	return formatter(cmd).Result(res, func(w io.Writer) error {
		fmt.Fprintf(w, "Wrote %s (%dx%d): %d placed, %d skipped, max id %d\n",
			res.Output, res.Width, res.Height, res.Placed, res.Skipped, res.MaxID)
		return nil
	})
}

type atlasInfo struct {
	Source      string `json:"source"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	TileWidth   int    `json:"tile_width"`
	TileHeight  int    `json:"tile_height"`
	TilesPerRow int    `json:"tiles_per_row"`
	Tiles       int    `json:"tiles"`
	ElapsedMs   int64  `json:"elapsed_ms"`
}

// loadAtlas loads the configured (or overridden) sheet and waits for it.
func loadAtlas(ctx context.Context, override string) (*atlas.Atlas, time.Duration, error) {
	loader, err := newLoader(cfg)
	if err != nil {
		return nil, 0, err
	}
	start := time.Now()
	a, err := loader.Load(atlasSource(cfg, override)).Wait(ctx)
	return a, time.Since(start), err
}

func newAtlasInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [source]",
		Short: "Load a sprite sheet and report its geometry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var override string
			if len(args) > 0 {
				override = args[0]
			}
			a, elapsed, err := loadAtlas(cmd.Context(), override)
			if err != nil {
				return err
			}
			g := a.Geometry()
			info := atlasInfo{
				Source:      a.Source(),
				Width:       a.Bounds().Dx(),
				Height:      a.Bounds().Dy(),
				TileWidth:   g.TileWidth,
				TileHeight:  g.TileHeight,
				TilesPerRow: g.TilesPerRow,
				Tiles:       a.TileCount(),
				ElapsedMs:   elapsed.Milliseconds(),
			}
			return formatter(cmd).Result(info, func(w io.Writer) error {
				fmt.Fprintf(w, "Source:  %s\n", info.Source)
				fmt.Fprintf(w, "Size:    %dx%d\n", info.Width, info.Height)
				fmt.Fprintf(w, "Tiles:   %d (%dx%d, %d per row)\n", info.Tiles, info.TileWidth, info.TileHeight, info.TilesPerRow)
				fmt.Fprintf(w, "Loaded:  %s\n", elapsed.Round(time.Millisecond))
				return nil
			})
		},
	}
}

type atlasTileOptions struct {
	Atlas string
	PNG   string
	Show  bool
	Cols  int
}

func newAtlasTileCmd() *cobra.Command {
	var opts atlasTileOptions
	cmd := &cobra.Command{
		Use:   "tile <id>",
		Short: "Locate or extract one thumbnail of the sprite sheet",
		Long: `Print the source rectangle of an asset id, export the tile as PNG or
paint it in the terminal.

Examples:
  thumbgrid atlas tile 1042 --png 1042.png
  thumbgrid atlas tile 1042 --show
  thumbgrid atlas tile 1042            # print the source rectangle`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAtlasTile(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Atlas, "atlas", "", "Sprite sheet path or URL (overrides config)")
	cmd.Flags().StringVar(&opts.PNG, "png", "", "Write the tile to this PNG file")
	cmd.Flags().BoolVar(&opts.Show, "show", false, "Paint the tile in the terminal")
	cmd.Flags().IntVar(&opts.Cols, "cols", 0, "Painted width in cells (default: thumbnail config)")
	return cmd
}

func runAtlasTile(cmd *cobra.Command, arg string, opts atlasTileOptions) error {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 0 {
		return fmt.Errorf("invalid asset id %q", arg)
	}
	a, _, err := loadAtlas(cmd.Context(), opts.Atlas)
	if err != nil {
		return err
	}
	tile, err := a.Tile(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.Show:
		cols, rows := cfg.Thumbnails.Cols, cfg.Thumbnails.Rows
		if opts.Cols > 0 {
			// keep the tile square: a cell holds two pixels vertically
			cols, rows = opts.Cols, max(opts.Cols/2, 1)
		}
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > w {
			cols, rows = w, max(w/2, 1)
		}
		profile := termenv.Ascii
		if colorEnabled(os.Stdout) {
			profile = termenv.NewOutput(os.Stdout).EnvColorProfile()
		}
		for _, line := range thumb.NewPainter(profile, cols, rows).Lines(tile) {
			fmt.Fprintln(out, line)
		}
		return nil

	case opts.PNG != "":
		var buf bytes.Buffer
		if err := png.Encode(&buf, tile); err != nil {
			return err
		}
		if err := util.AtomicWriteFile(opts.PNG, buf.Bytes(), 0644); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote tile %d to %s\n", id, opts.PNG)
		return nil

	default:
		r, _ := a.TileRect(id)
		box := map[string]int{"id": id, "x0": r.Min.X, "x1": r.Max.X, "y0": r.Min.Y, "y1": r.Max.Y}
		return formatter(cmd).Result(box, func(w io.Writer) error {
			fmt.Fprintf(w, "tile %d: x %d-%d, y %d-%d\n", id, r.Min.X, r.Max.X, r.Min.Y, r.Max.Y)
			return nil
		})
	}
}
