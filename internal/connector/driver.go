package connector

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/ir"
)

// Driver converts between file bytes and a dataset.
type Driver interface {
	// Extension is the file extension written by Encode, without the dot.
	Extension() string
	Decode(data []byte) (*dataset.Dataset, error)
	Encode(d *dataset.Dataset) ([]byte, error)
}

// DriverFor picks the driver for loc from its Format, or from the file
// extension of its Location when no format is given.
func DriverFor(loc ir.Location) (Driver, error) {
	format := strings.ToLower(strings.TrimSpace(loc.Format))
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(loc.Location)), ".")
	}
	switch format {
	case "csv":
		return CSV{}, nil
	case "tsv":
		return CSV{Comma: '\t'}, nil
	case "jsonl", "ndjson":
		return JSONL{}, nil
	case "parquet":
		return nil, ir.Errorf(ir.ErrDatasetAccess, "parquet driver not available in this build")
	case "":
		return nil, ir.Errorf(ir.ErrDatasetAccess, "cannot determine file format of %q: set format", loc.Location)
	}
	return nil, ir.Errorf(ir.ErrDatasetAccess, "unsupported file format %q", format)
}

// CSV reads delimited text with a header row. Each column gets one type:
// int if every non-empty cell is an integer, else float if every cell is
// numeric, else bool if every cell is true/false, else string. Empty cells
// are null.
type CSV struct {
	Comma rune // defaults to ','
}

func (c CSV) comma() rune {
	if c.Comma == 0 {
		return ','
	}
	return c.Comma
}

// Extension implements Driver.
func (c CSV) Extension() string {
	if c.comma() == '\t' {
		return "tsv"
	}
	return "csv"
}

// Decode implements Driver.
func (c CSV) Decode(data []byte) (*dataset.Dataset, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.Comma = c.comma()

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return dataset.Empty(), nil
	}
	if err != nil {
		return nil, ir.Wrap(ir.ErrDatasetAccess, err, "decode csv header")
	}
	cells := make([][]string, len(header))
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ir.Wrap(ir.ErrDatasetAccess, err, "decode csv")
		}
		for i, cell := range rec {
			cells[i] = append(cells[i], cell)
		}
	}

	cols := make([]dataset.Column, len(header))
	for i, name := range header {
		cols[i] = dataset.Column{Name: strings.TrimSpace(name), Values: inferColumn(cells[i])}
	}
	d, err := dataset.New(cols...)
	if err != nil {
		return nil, ir.Wrap(ir.ErrDatasetAccess, err, "decode csv")
	}
	return d, nil
}

// Encode implements Driver. Nulls are written as empty cells.
func (c CSV) Encode(d *dataset.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = c.comma()
	if err := w.Write(d.Names()); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	rec := make([]string, d.Width())
	for r := 0; r < d.Rows(); r++ {
		for i, v := range d.Row(r) {
			rec[i], _ = ir.Text(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("encode csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

type cellKind int

const (
	kindInt cellKind = iota
	kindFloat
	kindBool
	kindString
)

func inferColumn(cells []string) []ir.Value {
	kind := inferKind(cells)

	values := make([]ir.Value, len(cells))
	for i, s := range cells {
		if s == "" {
			values[i] = ir.Null{}
			continue
		}
		switch kind {
		case kindInt:
			n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			values[i] = ir.Int(n)
		case kindFloat:
			f, _ := ir.AsFloat(ir.String(s))
			values[i] = ir.Float(f)
		case kindBool:
			values[i] = ir.Bool(strings.EqualFold(strings.TrimSpace(s), "true"))
		default:
			values[i] = ir.String(s)
		}
	}
	return values
}

// inferKind returns the narrowest kind every non-empty cell fits.
func inferKind(cells []string) cellKind {
	for kind := kindInt; kind < kindString; kind++ {
		ok := true
		for _, s := range cells {
			if s != "" && !fits(kind, s) {
				ok = false
				break
			}
		}
		if ok {
			return kind
		}
	}
	return kindString
}

func fits(kind cellKind, s string) bool {
	t := strings.TrimSpace(s)
	switch kind {
	case kindInt:
		_, err := strconv.ParseInt(t, 10, 64)
		return err == nil
	case kindFloat:
		_, ok := ir.AsFloat(ir.String(t))
		return ok
	case kindBool:
		return strings.EqualFold(t, "true") || strings.EqualFold(t, "false")
	default:
		return true
	}
}

// JSONL reads one JSON object per line. Columns appear in order of first
// appearance; a key missing from a line is null for that row. Nested
// arrays and objects are rejected.
type JSONL struct{}

// Extension implements Driver.
func (JSONL) Extension() string { return "jsonl" }

// Decode implements Driver.
func (JSONL) Decode(data []byte) (*dataset.Dataset, error) {
	var (
		names []string
		index = map[string]int{}
		rows  []map[string]ir.Value
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		row, keys, err := decodeObject(sc.Bytes())
		if err != nil {
			return nil, ir.Wrap(ir.ErrDatasetAccess, err, fmt.Sprintf("decode jsonl line %d", line))
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(names)
				names = append(names, k)
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, ir.Wrap(ir.ErrDatasetAccess, err, "decode jsonl")
	}

	cols := make([]dataset.Column, len(names))
	for i, name := range names {
		values := make([]ir.Value, len(rows))
		for r, row := range rows {
			if v, ok := row[name]; ok {
				values[r] = v
			} else {
				values[r] = ir.Null{}
			}
		}
		cols[i] = dataset.Column{Name: name, Values: values}
	}
	d, err := dataset.New(cols...)
	if err != nil {
		return nil, ir.Wrap(ir.ErrDatasetAccess, err, "decode jsonl")
	}
	return d, nil
}

// decodeObject decodes one object, returning its keys in document order.
func decodeObject(line []byte) (map[string]ir.Value, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected an object")
	}

	row := map[string]ir.Value{}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := tok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		v, err := jsonValue(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return row, keys, nil
}

func jsonValue(raw any) (ir.Value, error) {
	switch v := raw.(type) {
	case nil:
		return ir.Null{}, nil
	case bool:
		return ir.Bool(v), nil
	case string:
		return ir.String(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return ir.Int(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return ir.Float(f), nil
	default:
		return nil, fmt.Errorf("nested values are not supported")
	}
}

// Encode implements Driver.
func (JSONL) Encode(d *dataset.Dataset) ([]byte, error) {
	names := d.Names()
	keys := make([][]byte, len(names))
	for i, name := range names {
		k, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("encode jsonl: %w", err)
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	for r := 0; r < d.Rows(); r++ {
		buf.WriteByte('{')
		for i, v := range d.Row(r) {
			if i > 0 {
				buf.WriteByte(',')
			}
			val, err := json.Marshal(ir.Native(v))
			if err != nil {
				return nil, fmt.Errorf("encode jsonl: %w", err)
			}
			buf.Write(keys[i])
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteString("}\n")
	}
	return buf.Bytes(), nil
}
