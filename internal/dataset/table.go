package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	logx "github.com/datatalk-core/server/pkg/logger"
)

// ColumnType classifies the values stored in a column.
type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeInteger ColumnType = "integer"
	TypeFloat   ColumnType = "float"
	TypeDate    ColumnType = "date"
	TypeBoolean ColumnType = "boolean"
)

// Numeric reports whether the type participates in numeric aggregation.
func (c ColumnType) Numeric() bool {
	return c == TypeInteger || c == TypeFloat
}

// Column describes one typed column of a Table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is an immutable in-memory single-table dataset loaded from CSV.
// Cells hold string, int64, float64, bool, or nil for missing values;
// date cells keep their original string form with a TypeDate tag.
type Table struct {
	name    string
	columns []Column
	rows    [][]any
	index   map[string]int // lower-cased column name -> position
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", "Jan-2006"}

// LoadCSVFile loads a CSV file from disk into a Table named name.
func LoadCSVFile(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadCSV(name, f)
}

// LoadCSV reads CSV data, infers a type per column from the observed values,
// and materialises typed rows. The first record is the header.
func LoadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}

	header := records[0]
	raw := records[1:]

	t := &Table{
		name:    name,
		columns: make([]Column, len(header)),
		index:   make(map[string]int, len(header)),
	}
	for i, h := range header {
		col := normalizeColumnName(h)
		t.columns[i] = Column{Name: col, Type: inferColumnType(raw, i)}
		t.index[strings.ToLower(col)] = i
	}

	t.rows = make([][]any, 0, len(raw))
	for _, rec := range raw {
		row := make([]any, len(t.columns))
		for i := range t.columns {
			if i >= len(rec) {
				row[i] = nil
				continue
			}
			row[i] = convertCell(rec[i], t.columns[i].Type)
		}
		t.rows = append(t.rows, row)
	}

	logx.Info().
		Str("table", name).
		Int("rows", len(t.rows)).
		Int("columns", len(t.columns)).
		Msg("dataset loaded")

	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the typed column descriptors in declaration order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int { return len(t.rows) }

func (t *Table) columnIndex(name string) (int, bool) {
	i, ok := t.index[strings.ToLower(name)]
	return i, ok
}

// normalizeColumnName converts a raw CSV header into an identifier-safe name,
// e.g. "Market Cap" -> "Market_Cap".
func normalizeColumnName(h string) string {
	h = strings.TrimSpace(h)
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	var b strings.Builder
	for _, r := range h {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// inferColumnType scans a column's non-empty values and picks the narrowest
// type that fits all of them: integer -> float -> boolean -> date -> string.
func inferColumnType(rows [][]string, col int) ColumnType {
	allInt, allFloat, allBool, allDate := true, true, true, true
	seen := false

	for _, rec := range rows {
		if col >= len(rec) {
			continue
		}
		v := strings.TrimSpace(rec[col])
		if v == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allFloat = false
		}
		switch strings.ToLower(v) {
		case "true", "false":
		default:
			allBool = false
		}
		if !parseableDate(v) {
			allDate = false
		}
	}

	if !seen {
		return TypeString
	}
	switch {
	case allInt:
		return TypeInteger
	case allFloat:
		return TypeFloat
	case allBool:
		return TypeBoolean
	case allDate:
		return TypeDate
	default:
		return TypeString
	}
}

func parseableDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func convertCell(raw string, ct ColumnType) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	switch ct {
	case TypeInteger:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case TypeFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(strings.ToLower(raw)); err == nil {
			return b
		}
	}
	// TypeDate and TypeString keep the original text; failed conversions
	// degrade to text rather than dropping the value.
	return raw
}
