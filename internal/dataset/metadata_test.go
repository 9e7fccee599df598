package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDescribeTable(t *testing.T) {
	table := loadFixture(t)
	m := DescribeTable(table)

	if m.Table != "sp500_companies" || m.RowCount != 4 {
		t.Fatalf("table=%s rows=%d", m.Table, m.RowCount)
	}
	if len(m.ColumnMetas) != 5 {
		t.Fatalf("columns = %d, want 5", len(m.ColumnMetas))
	}

	cap := m.ColumnInfo("Market_Cap")
	if cap == nil {
		t.Fatal("Market_Cap metadata missing")
	}
	if cap.Unit != "USD (millions)" {
		t.Errorf("unit = %q", cap.Unit)
	}
	if cap.Description != "Market Cap" {
		t.Errorf("description = %q", cap.Description)
	}
	if cap.Nullable {
		t.Error("Market_Cap should not be nullable")
	}

	pe := m.ColumnInfo("PE_Ratio")
	if pe == nil || !pe.Nullable {
		t.Error("PE_Ratio should be nullable")
	}
	if pe.Unit != "ratio" {
		t.Errorf("PE unit = %q", pe.Unit)
	}

	sym := m.ColumnInfo("Symbol")
	if len(sym.Examples) != 3 {
		t.Errorf("examples = %v, want 3 distinct values", sym.Examples)
	}
}

func TestColumnInfoCaseInsensitive(t *testing.T) {
	m := DescribeTable(loadFixture(t))
	if m.ColumnInfo("market_cap") == nil {
		t.Error("lookup should be case-insensitive")
	}
	if m.ColumnInfo("nope") != nil {
		t.Error("unknown column should return nil")
	}
}

func TestSchemaDescription(t *testing.T) {
	m := DescribeTable(loadFixture(t))
	m.Description = "S&P 500 constituents"
	desc := m.SchemaDescription()

	for _, want := range []string{
		"Table: sp500_companies",
		"Description: S&P 500 constituents",
		"Total Rows: 4",
		"- Market_Cap (integer): Market Cap [Unit: USD (millions)]",
		"- Symbol (string): Symbol",
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("schema description missing %q:\n%s", want, desc)
		}
	}
}

func TestApplyOverridesFile(t *testing.T) {
	m := DescribeTable(loadFixture(t))

	path := filepath.Join(t.TempDir(), "meta.yaml")
	overrides := `table: sp500_companies
description: Hand-curated dataset notes
columns:
  - name: Market_Cap
    unit: USD (billions)
    description: Total market capitalization
  - name: Symbol
    examples: ["AAPL", "MSFT"]
`
	if err := os.WriteFile(path, []byte(overrides), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.ApplyOverridesFile(path); err != nil {
		t.Fatalf("ApplyOverridesFile: %v", err)
	}

	if m.Description != "Hand-curated dataset notes" {
		t.Errorf("description = %q", m.Description)
	}
	cap := m.ColumnInfo("Market_Cap")
	if cap.Unit != "USD (billions)" || cap.Description != "Total market capitalization" {
		t.Errorf("override not applied: %+v", cap)
	}
	// untouched fields keep generated values
	if len(cap.Examples) == 0 {
		t.Error("examples should keep generated values")
	}
	if got := m.ColumnInfo("Symbol").Examples; len(got) != 2 || got[0] != "AAPL" {
		t.Errorf("Symbol examples = %v", got)
	}
}

func TestApplyOverridesUnknownColumn(t *testing.T) {
	m := DescribeTable(loadFixture(t))

	path := filepath.Join(t.TempDir(), "meta.yaml")
	overrides := "columns:\n  - name: Nope\n    unit: x\n"
	if err := os.WriteFile(path, []byte(overrides), 0o644); err != nil {
		t.Fatal(err)
	}
	err := m.ApplyOverridesFile(path)
	if err == nil || !strings.Contains(err.Error(), `unknown column "Nope"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestApplyOverridesMissingFile(t *testing.T) {
	m := DescribeTable(loadFixture(t))
	if err := m.ApplyOverridesFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
}
