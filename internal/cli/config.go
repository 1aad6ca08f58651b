package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/thumbgrid/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefault()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration (defaults, file, environment)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return formatter(cmd).Result(cfg, func(w io.Writer) error {
				return config.Print(cfg, w)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			errs := config.Validate(cfg)
			msgs := make([]string, len(errs))
			for i, err := range errs {
				msgs[i] = err.Error()
			}
			res := map[string]any{"valid": len(errs) == 0, "errors": msgs}
			if err := formatter(cmd).Result(res, func(w io.Writer) error {
				if len(errs) == 0 {
					fmt.Fprintln(w, "Configuration is valid.")
					return nil
				}
				for _, m := range msgs {
					fmt.Fprintf(w, "  - %s\n", m)
				}
				return nil
			}); err != nil {
				return err
			}
			if len(errs) > 0 {
				return errors.Join(errs...)
			}
			return nil
		},
	})

	return cmd
}
