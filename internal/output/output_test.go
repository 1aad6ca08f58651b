package output

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestTableAlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "ID", "TITLE")
	tbl.AddRow("view-1", "asset_events")
	tbl.AddRow("v2", "日本")
	tbl.Render()

	want := "  ID      TITLE\n" +
		"  ------  ------------\n" +
		"  view-1  asset_events\n" +
		"  v2      日本\n"
	if buf.String() != want {
		t.Errorf("Render() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestResult(t *testing.T) {
	tests := []struct {
		name string
		json bool
		want string
	}{
		{"text", false, "3 views\n"},
		{"json", true, "{\n  \"views\": 3\n}\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := New(&buf, tc.json)
			err := f.Result(map[string]int{"views": 3}, func(w io.Writer) error {
				_, err := io.WriteString(w, CountStr(3, "view", "views")+"\n")
				return err
			})
			if err != nil {
				t.Fatalf("Result: %v", err)
			}
			if buf.String() != tc.want {
				t.Errorf("got %q, want %q", buf.String(), tc.want)
			}
		})
	}
}

func TestPluralize(t *testing.T) {
	if got := CountStr(1, "tile", "tiles"); got != "1 tile" {
		t.Errorf("CountStr(1) = %q", got)
	}
	if got := CountStr(0, "tile", "tiles"); !strings.HasSuffix(got, "tiles") {
		t.Errorf("CountStr(0) = %q", got)
	}
}
