package grid

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/thumbgrid/internal/table"
)

// ApplyCommand applies a command line such as "pivot collection,image" to
// cfg. Recognized verbs: pivot, split, columns and reset. An empty field
// list clears that setting.
func ApplyCommand(line string, cfg table.Config) (table.Config, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	fields := splitFields(rest)
	switch strings.ToLower(verb) {
	case "pivot", "rows":
		cfg.RowPivots = fields
	case "split", "cols":
		cfg.ColumnPivots = fields
	case "columns", "show":
		cfg.Columns = fields
	case "reset":
		cfg = table.Config{}
	case "":
		return cfg, fmt.Errorf("empty command")
	default:
		return cfg, fmt.Errorf("unknown command %q (pivot, split, columns, reset)", verb)
	}
	return cfg, nil
}

func splitFields(s string) []string {
	f := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(f) == 0 {
		return nil
	}
	return f
}
