package dataset

import (
	"strings"
	"testing"
)

const fixtureCSV = `Symbol,Security,Sector,Market Cap,PE Ratio
AAPL,Apple Inc.,Tech,3000,29.5
MSFT,Microsoft,Tech,2800,32.1
XOM,Exxon,Energy,450,13.0
JPM,JPMorgan,Financials,500,
`

func loadFixture(t *testing.T) *Table {
	t.Helper()
	table, err := LoadCSV("sp500_companies", strings.NewReader(fixtureCSV))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	return table
}

func TestLoadCSVTypeInference(t *testing.T) {
	table := loadFixture(t)

	want := map[string]ColumnType{
		"Symbol":     TypeString,
		"Security":   TypeString,
		"Sector":     TypeString,
		"Market_Cap": TypeInteger,
		"PE_Ratio":   TypeFloat,
	}
	cols := table.Columns()
	if len(cols) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(cols))
	}
	for _, c := range cols {
		if want[c.Name] != c.Type {
			t.Errorf("column %s: type %s, want %s", c.Name, c.Type, want[c.Name])
		}
	}
	if table.RowCount() != 4 {
		t.Fatalf("row count = %d, want 4", table.RowCount())
	}
}

func TestNormalizeColumnName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Market Cap", "Market_Cap"},
		{"PE-Ratio", "PE_Ratio"},
		{"  Price  ", "Price"},
		{"Div. Yield", "Div_Yield"},
	}
	for _, c := range cases {
		if got := normalizeColumnName(c.in); got != c.want {
			t.Errorf("normalizeColumnName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLoadCSVMissingValues(t *testing.T) {
	table := loadFixture(t)

	res, err := table.Execute(ctxOf(t), "SELECT PE_Ratio FROM sp500_companies WHERE Symbol = 'JPM'")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 1 {
		t.Fatalf("row count = %d", res.RowCount)
	}
	if res.Rows[0]["PE_Ratio"] != nil {
		t.Fatalf("empty cell should be nil, got %v", res.Rows[0]["PE_Ratio"])
	}
}

func TestLoadCSVDateColumn(t *testing.T) {
	csv := "Name,Listed\nA,2001-05-09\nB,1999-12-31\n"
	table, err := LoadCSV("t", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	cols := table.Columns()
	if cols[1].Type != TypeDate {
		t.Fatalf("Listed type = %s, want date", cols[1].Type)
	}
	// date cells keep their text form
	res, err := table.Execute(ctxOf(t), "SELECT Listed FROM t LIMIT 1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Rows[0]["Listed"] != "2001-05-09" {
		t.Fatalf("date cell = %v", res.Rows[0]["Listed"])
	}
}

func TestLoadCSVEmpty(t *testing.T) {
	if _, err := LoadCSV("t", strings.NewReader("")); err == nil {
		t.Fatal("empty csv should error")
	}
}
