// Package cli implements the thumbgrid command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/thumbgrid/internal/config"
	"github.com/Dicklesworthstone/thumbgrid/internal/output"
)

var (
	cfgFile string
	cfg     *config.Config

	// Global JSON output flag - inherited by all subcommands
	jsonOutput bool

	// Global color control flag - inherited by all subcommands
	noColor bool

	logLevel string

	// Build information - set via ldflags
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "thumbgrid",
	Short: "Browse NFT sale events as a pivotable grid with inline thumbnails",
	Long: `thumbgrid loads a file of NFT sale events into a pivotable table and
shows it in a tabbed terminal workspace. Asset cells are painted from a single
thumbnail sprite sheet.

Quick Start:
  thumbgrid view events.json            # Open the workspace
  thumbgrid atlas build thumbs/ -o atlas.jpg
  thumbgrid atlas tile 1042 --show      # Preview one thumbnail
  thumbgrid serve                       # Serve tiles over HTTP`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			os.Setenv("NO_COLOR", "1")
		}
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		// the workspace redirects logging to a file once it owns the terminal
		if err := setupLogging(os.Stderr, cfg.LogLevel); err != nil {
			slog.Default().Warn("falling back to info logging", "error", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runView(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !jsonOutput {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/thumbgrid/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (machine-readable)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newViewCmd(),
		newAtlasCmd(),
		newLayoutCmd(),
		newConfigCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
}

func formatter(cmd *cobra.Command) *output.Formatter {
	return output.New(cmd.OutOrStdout(), jsonOutput)
}

func parseLevel(s string) (slog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// setupLogging points the default slog logger at w. An invalid level logs
// at info and is reported.
func setupLogging(w io.Writer, level string) error {
	lvl, err := parseLevel(level)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return err
}

// colorEnabled reports whether f is a terminal that may receive colour.
func colorEnabled(f *os.File) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
