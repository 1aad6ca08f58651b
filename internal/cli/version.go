package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionResponse is the JSON form of the version command.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func buildVersionResponse() VersionResponse {
	return VersionResponse{
		Version:   Version,
		Commit:    Commit,
		BuildDate: Date,
		BuiltBy:   BuiltBy,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := buildVersionResponse()
			return formatter(cmd).Result(v, func(w io.Writer) error {
				if short {
					fmt.Fprintln(w, v.Version)
					return nil
				}
				fmt.Fprintf(w, "thumbgrid %s\n", v.Version)
				fmt.Fprintf(w, "  commit:     %s\n", v.Commit)
				fmt.Fprintf(w, "  built:      %s\n", v.BuildDate)
				fmt.Fprintf(w, "  builder:    %s\n", v.BuiltBy)
				fmt.Fprintf(w, "  go version: %s\n", v.GoVersion)
				fmt.Fprintf(w, "  platform:   %s/%s\n", v.OS, v.Arch)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")
	return cmd
}
