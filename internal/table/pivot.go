package table

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// TotalLabel is the row header of the total row.
const TotalLabel = "TOTAL"

// Config selects how a view pivots the table.
type Config struct {
	RowPivots    []string `yaml:"row_pivots,omitempty" json:"row_pivots,omitempty"`
	ColumnPivots []string `yaml:"column_pivots,omitempty" json:"column_pivots,omitempty"`
	// Columns limits and orders the value columns; empty means all.
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// Column is one value column of a view.
type Column struct {
	// Path is the column pivot labels followed by the column name.
	Path []string
	Name string
	Type Type
}

// Row is one row of a view. Row 0 is always the total row.
type Row struct {
	// Labels holds the formatted row pivot values down to Depth.
	Labels []string
	// Depth is 0 for the total row, the pivot level for group rows and 1
	// for records of an unpivoted view.
	Depth int
	// Count is the number of records aggregated into the row.
	Count int
	Cells []any
}

// View is a pivoted, flattened rendering of a table.
type View struct {
	Config  Config
	Columns []Column
	Rows    []Row
}

type group struct {
	key  any
	recs []int
}

// Pivot builds a view. Group rows aggregate their records: numeric columns
// are summed, other columns show their value when every record agrees.
func (t *Table) Pivot(cfg Config) (*View, error) {
	for _, name := range slices.Concat(cfg.RowPivots, cfg.ColumnPivots, cfg.Columns) {
		if t.ColumnIndex(name) < 0 {
			return nil, fmt.Errorf("unknown column %q", name)
		}
	}
	valueCols := cfg.Columns
	if len(valueCols) == 0 {
		valueCols = t.Columns
	}

	all := make([]int, t.Len())
	for i := range all {
		all[i] = i
	}

	combos := [][]any{nil}
	comboOf := make([]int, t.Len())
	if len(cfg.ColumnPivots) > 0 {
		combos, comboOf = t.columnCombos(cfg.ColumnPivots)
	}

	v := &View{Config: cfg}
	for _, combo := range combos {
		labels := make([]string, len(combo))
		for i, x := range combo {
			labels[i] = FormatValue(x)
		}
		for _, name := range valueCols {
			v.Columns = append(v.Columns, Column{
				Path: append(slices.Clone(labels), name),
				Name: name,
				Type: t.Types[name],
			})
		}
	}

	b := &pivotBuilder{t: t, view: v, combos: len(combos), comboOf: comboOf, valueCols: valueCols}
	v.Rows = append(v.Rows, b.row(all, nil, 0))

	if len(cfg.RowPivots) == 0 {
		for _, r := range all {
			b.addRecord(r)
		}
		return v, nil
	}
	b.descend(all, cfg.RowPivots, nil)
	return v, nil
}

// columnCombos returns the sorted distinct column pivot tuples and the
// tuple index of every record.
func (t *Table) columnCombos(pivots []string) ([][]any, []int) {
	var combos [][]any
	seen := make(map[string]int)
	first := make([]int, t.Len())
	for r := range t.Rows {
		vals := make([]any, len(pivots))
		for i, p := range pivots {
			vals[i] = t.Value(r, p)
		}
		k := fmt.Sprintf("%#v", vals)
		i, ok := seen[k]
		if !ok {
			i = len(combos)
			seen[k] = i
			combos = append(combos, vals)
		}
		first[r] = i
	}

	order := make([]int, len(combos))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return compareTuple(combos[a], combos[b]) })
	rank := make([]int, len(combos))
	sorted := make([][]any, len(combos))
	for pos, i := range order {
		rank[i] = pos
		sorted[pos] = combos[i]
	}
	for r := range first {
		first[r] = rank[first[r]]
	}
	return sorted, first
}

type pivotBuilder struct {
	t         *Table
	view      *View
	combos    int
	comboOf   []int
	valueCols []string
}

func (b *pivotBuilder) descend(recs []int, pivots []string, labels []string) {
	if len(pivots) == 0 {
		return
	}
	for _, g := range b.groups(recs, pivots[0]) {
		path := append(slices.Clone(labels), FormatValue(g.key))
		b.view.Rows = append(b.view.Rows, b.row(g.recs, path, len(path)))
		b.descend(g.recs, pivots[1:], path)
	}
}

func (b *pivotBuilder) groups(recs []int, col string) []group {
	idx := make(map[string]int)
	var out []group
	for _, r := range recs {
		v := b.t.Value(r, col)
		k := fmt.Sprintf("%T:%v", v, v)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, group{key: v})
		}
		out[i].recs = append(out[i].recs, r)
	}
	slices.SortStableFunc(out, func(a, c group) int { return compareValues(a.key, c.key) })
	return out
}

func (b *pivotBuilder) row(recs []int, labels []string, depth int) Row {
	if depth == 0 {
		labels = []string{TotalLabel}
	}
	row := Row{Labels: labels, Depth: depth, Count: len(recs), Cells: make([]any, len(b.view.Columns))}
	byCombo := make([][]int, b.combos)
	for _, r := range recs {
		c := b.comboOf[r]
		byCombo[c] = append(byCombo[c], r)
	}
	for ci, col := range b.view.Columns {
		row.Cells[ci] = b.aggregate(col, byCombo[ci/len(b.valueCols)])
	}
	return row
}

func (b *pivotBuilder) addRecord(r int) {
	row := Row{Depth: 1, Count: 1, Cells: make([]any, len(b.view.Columns))}
	for ci, col := range b.view.Columns {
		if b.comboOf[r] == ci/len(b.valueCols) {
			row.Cells[ci] = b.t.Value(r, col.Name)
		}
	}
	b.view.Rows = append(b.view.Rows, row)
}

func (b *pivotBuilder) aggregate(col Column, recs []int) any {
	if len(recs) == 0 {
		return nil
	}
	if col.Type.Numeric() && col.Name != ImageColumn {
		var isum int64
		var fsum float64
		for _, r := range recs {
			switch x := b.t.Value(r, col.Name).(type) {
			case int64:
				isum += x
			case float64:
				fsum += x
			}
		}
		if col.Type == TypeInteger {
			return isum
		}
		return fsum
	}
	var first any
	for _, r := range recs {
		v := b.t.Value(r, col.Name)
		if v == nil {
			continue
		}
		if first == nil {
			first = v
			continue
		}
		if compareValues(first, v) != 0 {
			return nil
		}
	}
	return first
}

// compareValues orders nil first, then values of the same kind naturally.
// Values of different kinds compare by their text.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareTuple(a, b []any) int {
	for i := range a {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}
