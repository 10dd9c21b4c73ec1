package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

var (
	// ErrNoHeader is returned when the input has no header row.
	ErrNoHeader = errors.New("csv has no header row")
	// ErrRowTooLong is returned when a row has more fields than the header.
	ErrRowTooLong = errors.New("row has more fields than header")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Kind is the inferred type of a column.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Value is a single typed cell: int64, float64 or string. A nil Value is a
// missing cell and encodes as JSON null.
type Value any

// Table is a parsed CSV file.
type Table struct {
	Columns []string
	Kinds   []Kind
	Rows    [][]Value
}

// Record is one row bound to the column names of its table.
type Record struct {
	columns []string
	values  []Value
}

// Get returns the value for the named column.
func (r Record) Get(column string) (Value, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record as an object whose keys follow header order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Records returns the rows of t in file order. The result is never nil.
func (t *Table) Records() []Record {
	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, Record{columns: t.Columns, values: row})
	}
	return out
}

// LoadFile reads and parses the CSV file at path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return t, nil
}

// Parse reads CSV from r. The first record is the header; column types are
// inferred once all rows have been read.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, err
	}
	columns := uniqueColumns(header)

	var raw [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > len(columns) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w (%d > %d)", line, ErrRowTooLong, len(rec), len(columns))
		}
		raw = append(raw, rec)
	}

	kinds := make([]Kind, len(columns))
	for i := range columns {
		kinds[i] = inferKind(raw, i)
	}

	rows := make([][]Value, 0, len(raw))
	for _, rec := range raw {
		row := make([]Value, len(columns))
		for i := range columns {
			if i >= len(rec) || missing(rec[i]) {
				continue
			}
			row[i] = convert(rec[i], kinds[i])
		}
		rows = append(rows, row)
	}
	return &Table{Columns: columns, Kinds: kinds, Rows: rows}, nil
}

// uniqueColumns names empty header cells by position and suffixes repeated
// names with .1, .2, ...
func uniqueColumns(header []string) []string {
	taken := make(map[string]bool, len(header))
	dups := make(map[string]int)
	out := make([]string, len(header))
	for i, name := range header {
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for taken[candidate] {
			dups[name]++
			candidate = fmt.Sprintf("%s.%d", name, dups[name])
		}
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}

// missing reports whether a cell holds no value.
func missing(s string) bool {
	switch s {
	case "", "NA", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan", "null", "NULL", "None", "#N/A", "<NA>":
		return true
	}
	return false
}

func inferKind(raw [][]string, col int) Kind {
	kind := KindInt
	filled := false
	for _, rec := range raw {
		if col >= len(rec) || missing(rec[col]) {
			continue
		}
		filled = true
		s := rec[col]
		if kind == KindInt {
			if _, err := strconv.ParseInt(s, 10, 64); err == nil {
				continue
			}
			kind = KindFloat
		}
		if f, err := strconv.ParseFloat(s, 64); err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return KindString
		}
	}
	if !filled {
		return KindString
	}
	return kind
}

func convert(s string, kind Kind) Value {
	switch kind {
	case KindInt:
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	case KindFloat:
		v, _ := strconv.ParseFloat(s, 64)
		return v
	default:
		return s
	}
}
