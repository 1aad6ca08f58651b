package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/thumbgrid/internal/output"
	"github.com/Dicklesworthstone/thumbgrid/internal/state"
)

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Inspect or reset the saved workspace layout",
	}

	var raw bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the saved layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			l, found, err := store.LoadLayout()
			if err != nil {
				return err
			}
			if !found {
				return formatter(cmd).Result(map[string]any{"found": false}, func(w io.Writer) error {
					fmt.Fprintln(w, "No saved layout.")
					return nil
				})
			}
			return formatter(cmd).Result(l, func(w io.Writer) error {
				if raw {
					data, err := state.MarshalLayout(l)
					if err != nil {
						return err
					}
					_, err = w.Write(data)
					return err
				}
				printLayout(w, l)
				return nil
			})
		},
	}
	show.Flags().BoolVar(&raw, "yaml", false, "Print the stored YAML document")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete the saved layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.ResetLayout()
			if err != nil {
				return err
			}
			return formatter(cmd).Result(map[string]bool{"deleted": deleted}, func(w io.Writer) error {
				if deleted {
					fmt.Fprintln(w, "Saved layout deleted.")
				} else {
					fmt.Fprintln(w, "No saved layout.")
				}
				return nil
			})
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}

func printLayout(w io.Writer, l state.Layout) {
	fmt.Fprintf(w, "%s, split %s\n\n", output.CountStr(len(l.Views), "view", "views"), onOff(l.Split))
	tbl := output.NewTable(w, "", "ID", "TITLE", "PLUGIN", "PIVOT", "SPLIT", "COLUMNS")
	for _, v := range l.Views {
		mark := ""
		if v.ID == l.Active {
			mark = "*"
		}
		tbl.AddRow(mark, v.ID, v.Title, v.Plugin,
			strings.Join(v.Config.RowPivots, ","),
			strings.Join(v.Config.ColumnPivots, ","),
			strings.Join(v.Config.Columns, ","))
	}
	tbl.Render()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
