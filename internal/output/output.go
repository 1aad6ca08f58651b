// Package output writes command results as aligned text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Formatter writes either JSON documents or plain text to one writer.
type Formatter struct {
	writer io.Writer
	json   bool
}

// New returns a formatter writing to w.
func New(w io.Writer, jsonOutput bool) *Formatter {
	if w == nil {
		w = os.Stdout
	}
	return &Formatter{writer: w, json: jsonOutput}
}

// Writer returns the destination.
func (f *Formatter) Writer() io.Writer { return f.writer }

// IsJSON reports whether results are written as JSON.
func (f *Formatter) IsJSON() bool { return f.json }

// JSON writes v as indented JSON.
func (f *Formatter) JSON(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Result writes v as JSON in JSON mode and calls text otherwise.
func (f *Formatter) Result(v any, text func(w io.Writer) error) error {
	if f.json {
		return f.JSON(v)
	}
	return text(f.writer)
}

// Textln writes one formatted line.
func (f *Formatter) Textln(format string, args ...any) {
	fmt.Fprintf(f.writer, format+"\n", args...)
}

// Table outputs tabular data in text format.
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a table with headers.
func NewTable(w io.Writer, headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	return &Table{writer: w, headers: headers, widths: widths}
}

// AddRow adds a row. Missing columns are blank.
func (t *Table) AddRow(cols ...string) {
	for i, c := range cols {
		if i < len(t.widths) {
			t.widths[i] = max(t.widths[i], runewidth.StringWidth(c))
		}
	}
	t.rows = append(t.rows, cols)
}

// Render writes the header, a rule and every row.
func (t *Table) Render() {
	t.line(t.headers)
	rule := make([]string, len(t.widths))
	for i, w := range t.widths {
		rule[i] = strings.Repeat("-", w)
	}
	t.line(rule)
	for _, r := range t.rows {
		t.line(r)
	}
}

func (t *Table) line(cols []string) {
	var b strings.Builder
	b.WriteString(" ")
	for i, w := range t.widths {
		c := ""
		if i < len(cols) {
			c = cols[i]
		}
		b.WriteString(" ")
		if i == len(t.widths)-1 {
			b.WriteString(c)
			continue
		}
		b.WriteString(runewidth.FillRight(c, w))
		b.WriteString(" ")
	}
	fmt.Fprintln(t.writer, strings.TrimRight(b.String(), " "))
}

// Pluralize returns singular or plural form based on count.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// CountStr returns "N item(s)".
func CountStr(count int, singular, plural string) string {
	return fmt.Sprintf("%d %s", count, Pluralize(count, singular, plural))
}
