package dataset

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnMeta describes one column for prompt construction and type-based
// handler inference.
type ColumnMeta struct {
	Name        string     `yaml:"name"`
	Type        ColumnType `yaml:"type"`
	Unit        string     `yaml:"unit,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Examples    []string   `yaml:"examples,omitempty"`
	Nullable    bool       `yaml:"nullable"`
}

// Metadata is the schema/metadata provider for a loaded table.
type Metadata struct {
	Table       string       `yaml:"table"`
	Description string       `yaml:"description,omitempty"`
	RowCount    int          `yaml:"-"`
	ColumnMetas []ColumnMeta `yaml:"columns"`
}

// DescribeTable auto-generates metadata from the loaded table: a type per
// column, example values, nullability, and a unit guessed from the name.
func DescribeTable(t *Table) *Metadata {
	m := &Metadata{
		Table:    t.Name(),
		RowCount: t.RowCount(),
	}
	for i, col := range t.columns {
		m.ColumnMetas = append(m.ColumnMetas, ColumnMeta{
			Name:        col.Name,
			Type:        col.Type,
			Unit:        guessUnit(col.Name),
			Description: strings.ReplaceAll(col.Name, "_", " "),
			Examples:    t.exampleValues(i, 3),
			Nullable:    t.hasNulls(i),
		})
	}
	return m
}

func (t *Table) exampleValues(col, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, row := range t.rows {
		if len(out) >= limit {
			break
		}
		if row[col] == nil {
			continue
		}
		v := cellString(row[col])
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (t *Table) hasNulls(col int) bool {
	for _, row := range t.rows {
		if row[col] == nil {
			return true
		}
	}
	return false
}

func guessUnit(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "cap"), strings.Contains(n, "revenue"), strings.Contains(n, "income"):
		return "USD (millions)"
	case strings.Contains(n, "price"):
		return "USD"
	case strings.Contains(n, "ratio"):
		return "ratio"
	case strings.Contains(n, "yield"):
		return "percentage"
	default:
		return ""
	}
}

// ApplyOverridesFile merges a hand-curated YAML metadata file over the
// auto-generated metadata. Only non-empty override fields replace
// generated values, and override columns must exist in the table.
func (m *Metadata) ApplyOverridesFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read metadata overrides: %w", err)
	}
	var o Metadata
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return fmt.Errorf("parse metadata overrides: %w", err)
	}
	if o.Description != "" {
		m.Description = o.Description
	}
	for _, oc := range o.ColumnMetas {
		cm := m.column(oc.Name)
		if cm == nil {
			return fmt.Errorf("metadata overrides: unknown column %q", oc.Name)
		}
		if oc.Unit != "" {
			cm.Unit = oc.Unit
		}
		if oc.Description != "" {
			cm.Description = oc.Description
		}
		if len(oc.Examples) > 0 {
			cm.Examples = oc.Examples
		}
	}
	return nil
}

func (m *Metadata) column(name string) *ColumnMeta {
	for i := range m.ColumnMetas {
		if strings.EqualFold(m.ColumnMetas[i].Name, name) {
			return &m.ColumnMetas[i]
		}
	}
	return nil
}

// Columns returns all column names in declaration order.
func (m *Metadata) Columns() []string {
	out := make([]string, 0, len(m.ColumnMetas))
	for _, c := range m.ColumnMetas {
		out = append(out, c.Name)
	}
	return out
}

// ColumnInfo returns the metadata for one column, nil when unknown.
func (m *Metadata) ColumnInfo(name string) *ColumnMeta {
	return m.column(name)
}

// SchemaDescription renders the schema in the text form consumed by the
// intent and planner prompts.
func (m *Metadata) SchemaDescription() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", m.Table)
	if m.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", m.Description)
	}
	fmt.Fprintf(&b, "Total Rows: %d\n", m.RowCount)
	b.WriteString("\nColumns:\n")
	for _, c := range m.ColumnMetas {
		fmt.Fprintf(&b, "- %s (%s): %s", c.Name, c.Type, c.Description)
		if c.Unit != "" {
			fmt.Fprintf(&b, " [Unit: %s]", c.Unit)
		}
		if len(c.Examples) > 0 {
			fmt.Fprintf(&b, " [Examples: %s]", strings.Join(c.Examples, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
