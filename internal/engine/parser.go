package engine

import (
	"fmt"
	"strconv"

	"github.com/SimonWaldherr/bongodb/internal/storage"
)

// What: a hand-written recursive-descent parser over BongoDB's statement
// grammar (§6 "Statement AST"): SELECT, INSERT, UPDATE, DELETE, CREATE
// TABLE, DROP TABLE, FLUSH, and the supplemented SHOW TABLES.
// How: two-token lookahead (cur/peek) over the lexer's token stream, one
// parseX method per statement kind, expression parsing by precedence
// climbing (OR, then AND, then comparison).
// Why: this grammar is small and fixed; a generator toolchain buys
// nothing a dozen parseX methods don't already give directly.

// Parser holds the lexer and current/peek tokens for recursive-descent
// parsing of one statement.
type Parser struct {
	lx   *lexer
	cur  token
	peek token
}

// NewParser creates a parser over sql.
func NewParser(sql string) *Parser {
	p := &Parser{lx: newLexer(sql)}
	p.cur = p.lx.nextToken()
	p.peek = p.lx.nextToken()
	return p
}

func (p *Parser) next() { p.cur, p.peek = p.peek, p.lx.nextToken() }

func (p *Parser) expectSymbol(sym string) error {
	if p.cur.Typ == tSymbol && p.cur.Val == sym {
		p.next()
		return nil
	}
	return p.errf("expected symbol %q", sym)
}

func (p *Parser) expectKeyword(kw string) error {
	if p.cur.Typ == tKeyword && p.cur.Val == kw {
		p.next()
		return nil
	}
	return p.errf("expected keyword %q", kw)
}

func (p *Parser) errf(format string, a ...any) error {
	return fmt.Errorf("parse error near %q: %s", p.cur.Val, fmt.Sprintf(format, a...))
}

// expectIdent returns the current token's literal value as an identifier
// (table/column name) and advances. Names are case-sensitive (§3
// ColumnDef) so no case folding happens here.
func (p *Parser) expectIdent() (string, error) {
	if p.cur.Typ != tIdent {
		return "", p.errf("expected identifier")
	}
	name := p.cur.Val
	p.next()
	return name, nil
}

// ParseStatement parses exactly one statement from the input, optionally
// followed by a trailing ';' and EOF.
func (p *Parser) ParseStatement() (Statement, error) {
	var stmt Statement
	var err error
	switch {
	case p.cur.Typ == tKeyword && p.cur.Val == "SELECT":
		stmt, err = p.parseSelect()
	case p.cur.Typ == tKeyword && p.cur.Val == "INSERT":
		stmt, err = p.parseInsert()
	case p.cur.Typ == tKeyword && p.cur.Val == "UPDATE":
		stmt, err = p.parseUpdate()
	case p.cur.Typ == tKeyword && p.cur.Val == "DELETE":
		stmt, err = p.parseDelete()
	case p.cur.Typ == tKeyword && p.cur.Val == "CREATE":
		stmt, err = p.parseCreateTable()
	case p.cur.Typ == tKeyword && p.cur.Val == "DROP":
		stmt, err = p.parseDropTable()
	case p.cur.Typ == tKeyword && p.cur.Val == "FLUSH":
		p.next()
		stmt, err = &Flush{}, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "SHOW":
		stmt, err = p.parseShowTables()
	default:
		return nil, p.errf("expected a statement keyword")
	}
	if err != nil {
		return nil, err
	}
	if p.cur.Typ == tSymbol && p.cur.Val == ";" {
		p.next()
	}
	if p.cur.Typ != tEOF {
		return nil, p.errf("unexpected trailing input")
	}
	return stmt, nil
}

func (p *Parser) parseShowTables() (Statement, error) {
	p.next() // SHOW
	if err := p.expectKeyword("TABLES"); err != nil {
		return nil, err
	}
	return &ShowTables{}, nil
}

func (p *Parser) parseSelect() (*Select, error) {
	p.next() // SELECT
	items, err := p.parseSelectItems()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	sel := &Select{Table: table, Items: items}
	if p.cur.Typ == tKeyword && p.cur.Val == "WHERE" {
		p.next()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}
	if p.cur.Typ == tKeyword && p.cur.Val == "ORDER" {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		dir := Asc
		if p.cur.Typ == tKeyword && (p.cur.Val == "ASC" || p.cur.Val == "DESC") {
			if p.cur.Val == "DESC" {
				dir = Desc
			}
			p.next()
		}
		sel.Order = &OrderBy{Column: col, Dir: dir}
	}
	return sel, nil
}

func (p *Parser) parseSelectItems() (SelectItems, error) {
	if p.cur.Typ == tSymbol && p.cur.Val == "*" {
		p.next()
		return SelectItems{Wildcard: true}, nil
	}
	var cols []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return SelectItems{}, err
		}
		cols = append(cols, name)
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	return SelectItems{Columns: cols}, nil
}

func (p *Parser) parseInsert() (*Insert, error) {
	p.next() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, name)
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows [][]storage.Value
	for {
		row, err := p.parseValueTuple(len(cols))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	return &Insert{Table: table, Columns: cols, Rows: rows}, nil
}

func (p *Parser) parseValueTuple(want int) ([]storage.Value, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var vals []storage.Value
	for {
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if len(vals) != want {
		return nil, p.errf("value tuple has %d values, expected %d", len(vals), want)
	}
	return vals, nil
}

// parseLiteralValue parses one INSERT-tuple literal: a number, string,
// TRUE/FALSE, or NULL. Unlike parsePrimary, it never accepts an
// identifier — INSERT values must be constants (§6 "Insert{...rows:
// [[Value,...],...]}").
func (p *Parser) parseLiteralValue() (storage.Value, error) {
	switch {
	case p.cur.Typ == tNumber:
		s := p.cur.Val
		p.next()
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer literal %q", s)
		}
		return n, nil
	case p.cur.Typ == tString:
		s := p.cur.Val
		p.next()
		return s, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "TRUE":
		p.next()
		return true, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "FALSE":
		p.next()
		return false, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "NULL":
		p.next()
		return nil, nil
	default:
		return nil, p.errf("expected a literal value")
	}
}

func (p *Parser) parseUpdate() (*Update, error) {
	p.next() // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var assigns []Assignment
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		val, err := p.parseAssignmentValue()
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, Assignment{Column: col, Value: val})
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	upd := &Update{Table: table, Assignments: assigns}
	if p.cur.Typ == tKeyword && p.cur.Val == "WHERE" {
		p.next()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Where = where
	}
	return upd, nil
}

// parseAssignmentValue parses the right-hand side of a SET clause as a
// constant (§6 "Update{assignments: [(col, Value),...]}" — assignments
// are new Values, not arbitrary expressions).
func (p *Parser) parseAssignmentValue() (storage.Expr, error) {
	v, err := p.parseLiteralValue()
	if err != nil {
		return nil, err
	}
	return &storage.Literal{Val: v}, nil
}

func (p *Parser) parseDelete() (*Delete, error) {
	p.next() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	del := &Delete{Table: table}
	if p.cur.Typ == tKeyword && p.cur.Val == "WHERE" {
		p.next()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		del.Where = where
	}
	return del, nil
}

func (p *Parser) parseCreateTable() (*CreateTable, error) {
	p.next() // CREATE
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []ColumnSpec
	for {
		colName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		typ, size, err := p.parseColumnType()
		if err != nil {
			return nil, err
		}
		cols = append(cols, ColumnSpec{Name: colName, Type: typ, Size: size})
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, p.errf("CREATE TABLE requires at least one column")
	}
	return &CreateTable{Name: name, Columns: cols}, nil
}

func (p *Parser) parseColumnType() (storage.ValueType, int, error) {
	switch {
	case p.cur.Typ == tKeyword && p.cur.Val == "INT":
		p.next()
		return storage.IntType, 0, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "BOOLEAN":
		p.next()
		return storage.BoolType, 0, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "VARCHAR":
		p.next()
		if err := p.expectSymbol("("); err != nil {
			return 0, 0, err
		}
		if p.cur.Typ != tNumber {
			return 0, 0, p.errf("expected VARCHAR size")
		}
		size, err := strconv.Atoi(p.cur.Val)
		if err != nil {
			return 0, 0, p.errf("invalid VARCHAR size %q", p.cur.Val)
		}
		p.next()
		if err := p.expectSymbol(")"); err != nil {
			return 0, 0, err
		}
		return storage.VarcharType, size, nil
	default:
		return 0, 0, p.errf("expected a column type")
	}
}

func (p *Parser) parseDropTable() (*DropTable, error) {
	p.next() // DROP
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	return &DropTable{Names: names}, nil
}

// ------------------------------ expressions ------------------------------

// parseExpr parses a WHERE-clause predicate by precedence climbing: OR
// binds loosest, then AND, then the six comparison operators.
func (p *Parser) parseExpr() (storage.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (storage.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tKeyword && p.cur.Val == "OR" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &storage.Binary{Op: storage.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (storage.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tKeyword && p.cur.Val == "AND" {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &storage.Binary{Op: storage.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (storage.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur.Typ == tKeyword && p.cur.Val == "IS" {
		p.next()
		not := false
		if p.cur.Typ == tKeyword && p.cur.Val == "NOT" {
			not = true
			p.next()
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &storage.IsNullTest{Expr: left, Not: not}, nil
	}
	if p.cur.Typ != tSymbol {
		return left, nil
	}
	op, ok := comparisonOp(p.cur.Val)
	if !ok {
		return left, nil
	}
	p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &storage.Binary{Op: op, Left: left, Right: right}, nil
}

func comparisonOp(sym string) (storage.BinOp, bool) {
	switch sym {
	case ">":
		return storage.OpGt, true
	case "<":
		return storage.OpLt, true
	case ">=":
		return storage.OpGtEq, true
	case "<=":
		return storage.OpLtEq, true
	case "=":
		return storage.OpEq, true
	case "!=":
		return storage.OpNotEq, true
	default:
		return 0, false
	}
}

func (p *Parser) parsePrimary() (storage.Expr, error) {
	switch {
	case p.cur.Typ == tSymbol && p.cur.Val == "(":
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return e, nil
	case p.cur.Typ == tIdent:
		name := p.cur.Val
		p.next()
		return &storage.Ident{Col: name}, nil
	default:
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		return &storage.Literal{Val: v}, nil
	}
}
