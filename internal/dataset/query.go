package dataset

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	logx "github.com/datatalk-core/server/pkg/logger"
)

// QueryResult is one retrieval outcome: the executed query plus its rows.
type QueryResult struct {
	Query    string           `json:"query"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// NumericColumns returns result columns whose values are numeric.
func (r *QueryResult) NumericColumns() []string {
	var out []string
	for _, c := range r.Columns {
		if r.columnIsNumeric(c) {
			out = append(out, c)
		}
	}
	return out
}

// CategoricalColumns returns result columns whose values are plain text.
func (r *QueryResult) CategoricalColumns() []string {
	var out []string
	for _, c := range r.Columns {
		if r.columnIsNumeric(c) {
			continue
		}
		for _, row := range r.Rows {
			if _, ok := row[c].(string); ok {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// NumericColumn collects the column's non-null values coerced to float64.
func (r *QueryResult) NumericColumn(name string) []float64 {
	var out []float64
	for _, row := range r.Rows {
		if f, ok := AsFloat(row[name]); ok {
			out = append(out, f)
		}
	}
	return out
}

func (r *QueryResult) columnIsNumeric(name string) bool {
	for _, row := range r.Rows {
		switch row[name].(type) {
		case int64, float64:
			return true
		case nil:
			continue
		default:
			return false
		}
	}
	return false
}

// AsFloat converts a result cell to float64 when it holds a numeric value.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ---- query language ----
//
// The executor understands a single-table SELECT subset:
//
//	SELECT col | agg(col) [AS alias], ... | *
//	FROM <table>
//	[WHERE col op literal [AND ...]]
//	[GROUP BY col]
//	[ORDER BY col|alias [ASC|DESC]]
//	[LIMIT n]
//
// with aggregates COUNT, SUM, AVG, MIN, MAX and operators
// =, !=, <>, <, <=, >, >=, LIKE, IS [NOT] NULL.

type selectItem struct {
	agg     string // lower-cased aggregate function, empty for a plain column
	column  string // "*" only valid for COUNT
	alias   string
	display string
}

type condition struct {
	column string
	op     string // "=", "!=", "<", "<=", ">", ">=", "like", "isnull", "notnull"
	value  any    // float64 or string literal
}

type selectStmt struct {
	star      bool
	items     []selectItem
	table     string
	where     []condition
	groupBy   string
	orderBy   string
	orderDesc bool
	limit     int // -1 when absent
}

// Execute parses and runs the query against the table.
func (t *Table) Execute(ctx context.Context, query string) (*QueryResult, error) {
	stmt, err := t.compile(query)
	if err != nil {
		return nil, err
	}

	rows := t.filterRows(stmt.where)

	var res *QueryResult
	switch {
	case stmt.groupBy != "":
		res, err = t.executeGrouped(stmt, rows)
	case hasAggregate(stmt.items):
		res, err = t.executeAggregate(stmt, rows)
	default:
		res, err = t.executeProjection(stmt, rows)
	}
	if err != nil {
		return nil, err
	}

	orderRows(res, stmt)
	if stmt.limit >= 0 && len(res.Rows) > stmt.limit {
		res.Rows = res.Rows[:stmt.limit]
	}
	res.Query = query
	res.RowCount = len(res.Rows)

	logx.Debug().Str("table", t.name).Int("rows", res.RowCount).Msg("query executed")
	return res, nil
}

// Explain validates the query without executing it: syntax, table name, and
// every referenced column must resolve. This is the dry-run facility used by
// the pre-retrieval validation gate.
func (t *Table) Explain(ctx context.Context, query string) error {
	_, err := t.compile(query)
	return err
}

// SampleRows returns up to limit rows of the whole table.
func (t *Table) SampleRows(ctx context.Context, limit int) (*QueryResult, error) {
	return t.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", t.name, limit))
}

func (t *Table) compile(query string) (*selectStmt, error) {
	stmt, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(stmt.table, t.name) {
		return nil, fmt.Errorf("unknown table %q", stmt.table)
	}
	for _, it := range stmt.items {
		if it.column == "*" {
			if it.agg != "count" {
				return nil, fmt.Errorf("%s(*) is not supported", strings.ToUpper(it.agg))
			}
			continue
		}
		if _, ok := t.columnIndex(it.column); !ok {
			return nil, fmt.Errorf("unknown column %q", it.column)
		}
	}
	for _, c := range stmt.where {
		if _, ok := t.columnIndex(c.column); !ok {
			return nil, fmt.Errorf("unknown column %q", c.column)
		}
	}
	if stmt.groupBy != "" {
		if _, ok := t.columnIndex(stmt.groupBy); !ok {
			return nil, fmt.Errorf("unknown column %q", stmt.groupBy)
		}
		for _, it := range stmt.items {
			if it.agg == "" && !strings.EqualFold(it.column, stmt.groupBy) {
				return nil, fmt.Errorf("column %q must be aggregated or grouped", it.column)
			}
		}
	} else if hasAggregate(stmt.items) {
		for _, it := range stmt.items {
			if it.agg == "" {
				return nil, fmt.Errorf("column %q must be aggregated or grouped", it.column)
			}
		}
	}
	if stmt.orderBy != "" && !t.orderKeyKnown(stmt) {
		return nil, fmt.Errorf("unknown column %q", stmt.orderBy)
	}
	return stmt, nil
}

// orderKeyKnown reports whether ORDER BY names a table column or one of the
// query's output columns (aliases included).
func (t *Table) orderKeyKnown(stmt *selectStmt) bool {
	if _, ok := t.columnIndex(stmt.orderBy); ok {
		return true
	}
	for _, it := range stmt.items {
		if strings.EqualFold(it.display, stmt.orderBy) {
			return true
		}
	}
	return false
}

func hasAggregate(items []selectItem) bool {
	for _, it := range items {
		if it.agg != "" {
			return true
		}
	}
	return false
}

func (t *Table) filterRows(conds []condition) [][]any {
	if len(conds) == 0 {
		return t.rows
	}
	var out [][]any
	for _, row := range t.rows {
		ok := true
		for _, c := range conds {
			if !t.matches(row, c) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

func (t *Table) matches(row []any, c condition) bool {
	idx, _ := t.columnIndex(c.column)
	cell := row[idx]

	switch c.op {
	case "isnull":
		return cell == nil
	case "notnull":
		return cell != nil
	}
	if cell == nil {
		return false
	}

	if c.op == "like" {
		pat, _ := c.value.(string)
		return likeMatch(cellString(cell), pat)
	}

	// Numeric comparison when both sides are numeric, string otherwise.
	if cf, ok := AsFloat(cell); ok {
		if lf, ok := literalFloat(c.value); ok {
			return compareFloats(cf, lf, c.op)
		}
	}
	return compareStrings(cellString(cell), fmt.Sprint(c.value), c.op)
}

func literalFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func compareFloats(a, b float64, op string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

func compareStrings(a, b, op string) bool {
	switch op {
	case "=":
		return strings.EqualFold(a, b)
	case "!=":
		return !strings.EqualFold(a, b)
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// likeMatch implements SQL LIKE with % and _ wildcards, case-insensitive.
func likeMatch(s, pattern string) bool {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func cellString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}

func (t *Table) executeProjection(stmt *selectStmt, rows [][]any) (*QueryResult, error) {
	var cols []string
	var idxs []int
	if stmt.star {
		for i, c := range t.columns {
			cols = append(cols, c.Name)
			idxs = append(idxs, i)
		}
	} else {
		for _, it := range stmt.items {
			i, _ := t.columnIndex(it.column)
			cols = append(cols, it.display)
			idxs = append(idxs, i)
		}
	}

	res := &QueryResult{Columns: cols}
	for _, row := range rows {
		out := make(map[string]any, len(cols))
		for j, i := range idxs {
			out[cols[j]] = row[i]
		}
		res.Rows = append(res.Rows, out)
	}
	return res, nil
}

func (t *Table) executeAggregate(stmt *selectStmt, rows [][]any) (*QueryResult, error) {
	res := &QueryResult{}
	out := make(map[string]any, len(stmt.items))
	for _, it := range stmt.items {
		res.Columns = append(res.Columns, it.display)
		v, err := t.aggregate(it, rows)
		if err != nil {
			return nil, err
		}
		out[it.display] = v
	}
	res.Rows = []map[string]any{out}
	return res, nil
}

func (t *Table) executeGrouped(stmt *selectStmt, rows [][]any) (*QueryResult, error) {
	gIdx, _ := t.columnIndex(stmt.groupBy)

	groups := make(map[string][][]any)
	var order []string
	for _, row := range rows {
		key := cellString(row[gIdx])
		if row[gIdx] == nil {
			key = ""
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	res := &QueryResult{}
	for _, it := range stmt.items {
		res.Columns = append(res.Columns, it.display)
	}
	for _, key := range order {
		grp := groups[key]
		out := make(map[string]any, len(stmt.items))
		for _, it := range stmt.items {
			if it.agg == "" {
				out[it.display] = grp[0][gIdx]
				continue
			}
			v, err := t.aggregate(it, grp)
			if err != nil {
				return nil, err
			}
			out[it.display] = v
		}
		res.Rows = append(res.Rows, out)
	}
	return res, nil
}

func (t *Table) aggregate(it selectItem, rows [][]any) (any, error) {
	if it.agg == "count" {
		if it.column == "*" {
			return int64(len(rows)), nil
		}
		idx, _ := t.columnIndex(it.column)
		var n int64
		for _, row := range rows {
			if row[idx] != nil {
				n++
			}
		}
		return n, nil
	}

	idx, _ := t.columnIndex(it.column)
	if !t.columns[idx].Type.Numeric() {
		return nil, fmt.Errorf("%s(%s): column is not numeric", strings.ToUpper(it.agg), it.column)
	}

	var vals []float64
	for _, row := range rows {
		if f, ok := AsFloat(row[idx]); ok {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return nil, nil
	}

	switch it.agg {
	case "sum":
		return sum(vals), nil
	case "avg":
		return sum(vals) / float64(len(vals)), nil
	case "min":
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case "max":
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported aggregate %q", it.agg)
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func orderRows(res *QueryResult, stmt *selectStmt) {
	if stmt.orderBy == "" {
		return
	}
	key := stmt.orderBy
	// ORDER BY resolves against output columns first (aliases included).
	for _, c := range res.Columns {
		if strings.EqualFold(c, key) {
			key = c
			break
		}
	}
	sort.SliceStable(res.Rows, func(i, j int) bool {
		a, b := res.Rows[i][key], res.Rows[j][key]
		less := lessCell(a, b)
		if stmt.orderDesc {
			return lessCell(b, a)
		}
		return less
	})
}

func lessCell(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	af, aok := AsFloat(a)
	bf, bok := AsFloat(b)
	if aok && bok {
		return af < bf
	}
	return cellString(a) < cellString(b)
}
