// Package table holds the in-memory event table views are built from.
package table

import (
	"fmt"
	"slices"
)

// Type is the schema type of a column.
type Type string

const (
	TypeInteger  Type = "integer"
	TypeFloat    Type = "float"
	TypeBoolean  Type = "boolean"
	TypeDate     Type = "date"
	TypeDatetime Type = "datetime"
	TypeString   Type = "string"
)

// Numeric reports whether values of t are summed in totals.
func (t Type) Numeric() bool { return t == TypeInteger || t == TypeFloat }

// Well-known column names of the sales event table.
const (
	DefaultName   = "asset_events"
	ImageColumn   = "image"
	TokenIDColumn = "asset_token_id"
	IndexColumn   = "transaction_hash"
)

// Table is a typed, column-ordered set of records. Values are int64,
// float64, bool, time.Time, string or nil.
type Table struct {
	Name    string
	Columns []string
	Types   map[string]Type
	Rows    [][]any

	index map[string]int
}

// New returns an empty table with the given schema.
func New(name string, columns []string, types map[string]Type) *Table {
	t := &Table{Name: name, Columns: slices.Clone(columns), Types: make(map[string]Type, len(types))}
	for k, v := range types {
		t.Types[k] = v
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c] = i
	}
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// ColumnType returns the type name of a column, or "" when unknown.
func (t *Table) ColumnType(name string) string {
	return string(t.Types[name])
}

// Value returns the value of column name in record row.
func (t *Table) Value(row int, name string) any {
	i := t.ColumnIndex(name)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return nil
	}
	return t.Rows[row][i]
}

// AddColumn appends a column computed from each record.
func (t *Table) AddColumn(name string, typ Type, fn func(row []any) any) error {
	if t.ColumnIndex(name) >= 0 {
		return fmt.Errorf("column %q already exists", name)
	}
	t.Columns = append(t.Columns, name)
	t.Types[name] = typ
	t.reindex()
	for i, r := range t.Rows {
		t.Rows[i] = append(r, fn(r))
	}
	return nil
}

// DeriveImage adds the image column as a copy of the asset token id when
// the table has a token id but no image column.
func (t *Table) DeriveImage() bool {
	src := t.ColumnIndex(TokenIDColumn)
	if src < 0 || t.ColumnIndex(ImageColumn) >= 0 {
		return false
	}
	typ := t.Types[TokenIDColumn]
	if typ == "" {
		typ = TypeInteger
	}
	_ = t.AddColumn(ImageColumn, typ, func(row []any) any { return row[src] })
	return true
}

// DedupeBy keeps one record per value of column key. A later record
// replaces an earlier one in place. Records with a nil key are kept.
func (t *Table) DedupeBy(key string) int {
	ki := t.ColumnIndex(key)
	if ki < 0 {
		return 0
	}
	pos := make(map[string]int, len(t.Rows))
	out := t.Rows[:0]
	dropped := 0
	for _, r := range t.Rows {
		if r[ki] == nil {
			out = append(out, r)
			continue
		}
		k := fmt.Sprint(r[ki])
		if at, ok := pos[k]; ok {
			out[at] = r
			dropped++
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	t.Rows = out
	return dropped
}

// Clean applies the standard preparation of a freshly loaded event table.
func (t *Table) Clean() {
	t.DedupeBy(IndexColumn)
	t.DeriveImage()
}
