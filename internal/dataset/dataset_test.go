package dataset

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func encode(t *testing.T, tbl *Table) string {
	t.Helper()
	b, err := json.Marshal(tbl.Records())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestParseIntegers(t *testing.T) {
	tbl, err := Parse(strings.NewReader("a,b\n1,2\n3,4\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := encode(t, tbl), `[{"a":1,"b":2},{"a":3,"b":4}]`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if !reflect.DeepEqual(tbl.Kinds, []Kind{KindInt, KindInt}) {
		t.Fatalf("unexpected kinds: %v", tbl.Kinds)
	}
}

func TestParseHeaderOnly(t *testing.T) {
	tbl, err := Parse(strings.NewReader("a,b\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := encode(t, tbl); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}
}

func TestParseColumnKinds(t *testing.T) {
	in := "state,abbr,income,age\nAlabama,AL,42830,38.6\nAlaska,AK,71583,33.3\n"
	tbl, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []Kind{KindString, KindString, KindInt, KindFloat}
	if !reflect.DeepEqual(tbl.Kinds, want) {
		t.Fatalf("kinds = %v, want %v", tbl.Kinds, want)
	}
	got := encode(t, tbl)
	exp := `[{"state":"Alabama","abbr":"AL","income":42830,"age":38.6},{"state":"Alaska","abbr":"AK","income":71583,"age":33.3}]`
	if got != exp {
		t.Fatalf("got %s, want %s", got, exp)
	}
}

func TestParseMixedColumnStaysString(t *testing.T) {
	tbl, err := Parse(strings.NewReader("v\n1\nx\n2.5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := encode(t, tbl), `[{"v":"1"},{"v":"x"},{"v":"2.5"}]`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestParseIntPromotedToFloat(t *testing.T) {
	tbl, err := Parse(strings.NewReader("v\n1\n2.5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := encode(t, tbl), `[{"v":1},{"v":2.5}]`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestParseMissingCells(t *testing.T) {
	tbl, err := Parse(strings.NewReader("a,b,c\n1,,x\nNaN,2\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := `[{"a":1,"b":null,"c":"x"},{"a":null,"b":2,"c":null}]`
	if got := encode(t, tbl); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestParseNonFiniteIsString(t *testing.T) {
	tbl, err := Parse(strings.NewReader("v\n1\nInf\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Kinds[0] != KindString {
		t.Fatalf("expected string column, got %v", tbl.Kinds[0])
	}
}

func TestParseRowTooLong(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b\n1,2\n3,4,5\n"))
	if !errors.Is(err, ErrRowTooLong) {
		t.Fatalf("expected ErrRowTooLong, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}

func TestParseMalformedQuotes(t *testing.T) {
	if _, err := Parse(strings.NewReader("a,b\n\"1,2\n")); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestParseDuplicateAndEmptyHeaders(t *testing.T) {
	tbl, err := Parse(strings.NewReader("a,a,,a,a.1\n1,2,3,4,5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"a", "a.1", "Unnamed: 2", "a.2", "a.1.1"}
	if !reflect.DeepEqual(tbl.Columns, want) {
		t.Fatalf("columns = %v, want %v", tbl.Columns, want)
	}
}

func TestParseStripsBOM(t *testing.T) {
	tbl, err := Parse(strings.NewReader("\ufeffa\n1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Columns[0] != "a" {
		t.Fatalf("BOM not stripped: %q", tbl.Columns[0])
	}
}

func TestRecordGet(t *testing.T) {
	tbl, err := Parse(strings.NewReader("abbr,income\nAL,42830\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rec := tbl.Records()[0]
	if v, ok := rec.Get("income"); !ok || v != int64(42830) {
		t.Fatalf("unexpected income: %v %v", v, ok)
	}
	if _, ok := rec.Get("missing"); ok {
		t.Fatal("expected missing column")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n3,4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	first, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	second, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if encode(t, first) != encode(t, second) {
		t.Fatal("repeated loads differ")
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
