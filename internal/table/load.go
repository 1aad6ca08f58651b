package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an event file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for files whose format cannot be told from
// their extension.
var ErrUnknownFormat = errors.New("unknown table format")

// FormatFor picks the decoder for path from its extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// LoadFile reads, types and cleans the event table at path.
func LoadFile(path string) (*Table, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	t, err := Read(f, format, DefaultName)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	t.Clean()
	return t, nil
}

// Read decodes records in format and infers the schema.
func Read(r io.Reader, format Format, name string) (*Table, error) {
	var (
		recs []record
		err  error
	)
	switch format {
	case FormatJSON:
		recs, err = readJSON(r)
	case FormatCSV:
		recs, err = readCSV(r)
	case FormatYAML:
		recs, err = readYAML(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return build(name, recs, format == FormatCSV), nil
}

type field struct {
	key string
	val any
}

type record []field

// build lays records out in first-seen column order.
func build(name string, recs []record, parseStrings bool) *Table {
	var columns []string
	pos := make(map[string]int)
	for _, rec := range recs {
		for _, f := range rec {
			if _, ok := pos[f.key]; !ok {
				pos[f.key] = len(columns)
				columns = append(columns, f.key)
			}
		}
	}

	rows := make([][]any, len(recs))
	for i, rec := range recs {
		row := make([]any, len(columns))
		for _, f := range rec {
			row[pos[f.key]] = f.val
		}
		rows[i] = row
	}

	types := make(map[string]Type, len(columns))
	col := make([]any, len(rows))
	for ci, c := range columns {
		for ri := range rows {
			col[ri] = rows[ri][ci]
		}
		typ := inferType(col, parseStrings)
		types[c] = typ
		for ri := range rows {
			rows[ri][ci] = convert(rows[ri][ci], typ)
		}
	}

	t := New(name, columns, types)
	t.Rows = rows
	return t
}

// readJSON accepts an array of objects or a stream of objects (JSON lines).
func readJSON(r io.Reader) ([]record, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	var recs []record
	switch tok {
	case json.Delim('['):
		for dec.More() {
			if err := expectDelim(dec, '{'); err != nil {
				return nil, err
			}
			rec, err := readObject(dec)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		if err := expectDelim(dec, ']'); err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		} else if err != nil {
			return nil, err
		}
	case json.Delim('{'):
		for {
			rec, err := readObject(dec)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
			if err := expectDelim(dec, '{'); err == io.EOF {
				break
			} else if err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("decoding json: expected array or object, got %v", tok)
	}
	return recs, nil
}

func expectDelim(dec *json.Decoder, d json.Delim) error {
	tok, err := dec.Token()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("decoding json: %w", err)
	}
	if tok != d {
		return fmt.Errorf("decoding json: expected %v, got %v", d, tok)
	}
	return nil
}

// readObject reads the members of an object whose '{' was consumed.
func readObject(dec *json.Decoder) (record, error) {
	var rec record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decoding json: expected key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding json field %q: %w", key, err)
		}
		rec = flatten(rec, key, v)
	}
	if err := expectDelim(dec, '}'); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return rec, nil
}

// flatten appends v under key, joining nested object keys with "_" the way
// the event export names them (asset.token_id becomes asset_token_id).
func flatten(rec record, key string, v any) record {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rec = flatten(rec, key+"_"+k, x[k])
		}
		return rec
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmt.Sprint(e)
		}
		return append(rec, field{key, strings.Join(parts, ",")})
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return append(rec, field{key, n})
		}
		if f, err := x.Float64(); err == nil {
			return append(rec, field{key, f})
		}
		return append(rec, field{key, x.String()})
	default:
		return append(rec, field{key, v})
	}
}

func readCSV(r io.Reader) ([]record, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decoding csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var recs []record
	for {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding csv: %w", err)
		}
		rec := make(record, 0, len(header))
		for i, key := range header {
			var v any
			if i < len(line) && line[i] != "" {
				v = line[i]
			}
			rec = append(rec, field{key, v})
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// readYAML accepts a sequence of mappings. Mapping order is kept.
func readYAML(r io.Reader) ([]record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading yaml: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	seq := doc.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("decoding yaml: expected a sequence of records, line %d", seq.Line)
	}

	recs := make([]record, 0, len(seq.Content))
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("decoding yaml: record at line %d is not a mapping", item.Line)
		}
		var rec record
		for i := 0; i+1 < len(item.Content); i += 2 {
			key := item.Content[i].Value
			var v any
			if err := item.Content[i+1].Decode(&v); err != nil {
				return nil, fmt.Errorf("decoding yaml field %q: %w", key, err)
			}
			rec = flatten(rec, key, v)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
