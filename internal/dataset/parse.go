package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokSymbol
	tokEOF
)

type token struct {
	kind tokKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '\'':
			j := i + 1
			for j < len(input) && input[j] != '\'' {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			toks = append(toks, token{tokString, input[i+1 : j]})
			i = j + 1
		case c == '"':
			j := i + 1
			for j < len(input) && input[j] != '"' {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated quoted identifier")
			}
			toks = append(toks, token{tokIdent, input[i+1 : j]})
			i = j + 1
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, input[i:j]})
			i = j
		case isIdentByte(c):
			j := i
			for j < len(input) && isIdentByte(input[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, input[i:j]})
			i = j
		case c == '<' || c == '>' || c == '!':
			if i+1 < len(input) && (input[i+1] == '=' || c == '<' && input[i+1] == '>') {
				toks = append(toks, token{tokSymbol, input[i : i+2]})
				i += 2
			} else {
				toks = append(toks, token{tokSymbol, string(c)})
				i++
			}
		case c == '=' || c == ',' || c == '(' || c == ')' || c == '*' || c == ';' || c == '-':
			toks = append(toks, token{tokSymbol, string(c)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

type parser struct {
	toks []token
	pos  int
}

func parseQuery(query string) (*selectStmt, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	p := &parser{toks: toks}
	stmt, err := p.parseSelect()
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return stmt, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) keyword(kw string) bool {
	t := p.cur()
	if t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) symbol(s string) bool {
	t := p.cur()
	if t.kind == tokSymbol && t.text == s {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectIdent() (string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return "", fmt.Errorf("expected identifier, got %q", t.text)
	}
	return t.text, nil
}

func (p *parser) parseSelect() (*selectStmt, error) {
	stmt := &selectStmt{limit: -1}

	if !p.keyword("select") {
		return nil, fmt.Errorf("expected SELECT")
	}

	if p.symbol("*") {
		stmt.star = true
	} else {
		for {
			it, err := p.parseSelectItem()
			if err != nil {
				return nil, err
			}
			stmt.items = append(stmt.items, it)
			if !p.symbol(",") {
				break
			}
		}
	}

	if !p.keyword("from") {
		return nil, fmt.Errorf("expected FROM")
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.table = table

	if p.keyword("where") {
		for {
			c, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			stmt.where = append(stmt.where, c)
			if !p.keyword("and") {
				break
			}
		}
	}

	if p.keyword("group") {
		if !p.keyword("by") {
			return nil, fmt.Errorf("expected BY after GROUP")
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.groupBy = col
	}

	if p.keyword("order") {
		if !p.keyword("by") {
			return nil, fmt.Errorf("expected BY after ORDER")
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.orderBy = col
		if p.keyword("desc") {
			stmt.orderDesc = true
		} else {
			p.keyword("asc")
		}
	}

	if p.keyword("limit") {
		t := p.next()
		if t.kind != tokNumber {
			return nil, fmt.Errorf("expected number after LIMIT")
		}
		n, err := strconv.Atoi(t.text)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid LIMIT %q", t.text)
		}
		stmt.limit = n
	}

	p.symbol(";")
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input %q", p.cur().text)
	}
	return stmt, nil
}

var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
}

func (p *parser) parseSelectItem() (selectItem, error) {
	var it selectItem

	ident, err := p.expectIdent()
	if err != nil {
		return it, err
	}

	if aggregateFuncs[strings.ToLower(ident)] && p.symbol("(") {
		it.agg = strings.ToLower(ident)
		if p.symbol("*") {
			it.column = "*"
		} else {
			col, err := p.expectIdent()
			if err != nil {
				return it, err
			}
			it.column = col
		}
		if !p.symbol(")") {
			return it, fmt.Errorf("expected ) after %s", strings.ToUpper(it.agg))
		}
		it.display = fmt.Sprintf("%s(%s)", it.agg, it.column)
	} else {
		it.column = ident
		it.display = ident
	}

	if p.keyword("as") {
		alias, err := p.expectIdent()
		if err != nil {
			return it, err
		}
		it.alias = alias
		it.display = alias
	}
	return it, nil
}

func (p *parser) parseCondition() (condition, error) {
	var c condition

	col, err := p.expectIdent()
	if err != nil {
		return c, err
	}
	c.column = col

	if p.keyword("is") {
		if p.keyword("not") {
			if !p.keyword("null") {
				return c, fmt.Errorf("expected NULL after IS NOT")
			}
			c.op = "notnull"
			return c, nil
		}
		if !p.keyword("null") {
			return c, fmt.Errorf("expected NULL after IS")
		}
		c.op = "isnull"
		return c, nil
	}

	if p.keyword("like") {
		t := p.next()
		if t.kind != tokString {
			return c, fmt.Errorf("expected string pattern after LIKE")
		}
		c.op = "like"
		c.value = t.text
		return c, nil
	}

	t := p.next()
	if t.kind != tokSymbol {
		return c, fmt.Errorf("expected comparison operator, got %q", t.text)
	}
	op := t.text
	if op == "<>" {
		op = "!="
	}
	switch op {
	case "=", "!=", "<", "<=", ">", ">=":
		c.op = op
	default:
		return c, fmt.Errorf("unsupported operator %q", t.text)
	}

	neg := false
	if p.cur().kind == tokSymbol && p.cur().text == "-" {
		p.pos++
		neg = true
	}
	lit := p.next()
	switch lit.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(lit.text, 64)
		if err != nil {
			return c, fmt.Errorf("invalid number %q", lit.text)
		}
		if neg {
			f = -f
		}
		c.value = f
	case tokString:
		if neg {
			return c, fmt.Errorf("unexpected - before string literal")
		}
		c.value = lit.text
	case tokIdent:
		// Bare words (e.g. TRUE) compare as text.
		if neg {
			return c, fmt.Errorf("unexpected - before %q", lit.text)
		}
		c.value = lit.text
	default:
		return c, fmt.Errorf("expected literal, got %q", lit.text)
	}
	return c, nil
}
