// Package engine implements BongoDB's Parser and Executor: turning SQL
// statement text into an AST (§6 "Statement AST") and dispatching each
// Statement to its handler against the storage and concurrency packages
// (§4.2, §4.3).
package engine

import "github.com/SimonWaldherr/bongodb/internal/storage"

// Statement is the tagged union the Parser produces and the Executor
// consumes (§6).
type Statement interface {
	isStatement()
}

// SelectItems is either an explicit column list or the Wildcard (*).
type SelectItems struct {
	Wildcard bool
	Columns  []string
}

// OrderDir is the sort direction of an ORDER BY clause.
type OrderDir int

const (
	// Asc sorts ascending.
	Asc OrderDir = iota
	// Desc sorts descending.
	Desc
)

// OrderBy names the column and direction a Select result is sorted by.
type OrderBy struct {
	Column string
	Dir    OrderDir
}

// Select is `SELECT items FROM table [WHERE where] [ORDER BY order]`.
type Select struct {
	Table string
	Items SelectItems
	Where storage.Expr
	Order *OrderBy
}

func (*Select) isStatement() {}

// Insert is `INSERT INTO table (columns) VALUES rows`.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]storage.Value
}

func (*Insert) isStatement() {}

// Assignment is one `column = expr` pair of an UPDATE's SET clause.
type Assignment struct {
	Column string
	Value  storage.Expr
}

// Update is `UPDATE table SET assignments [WHERE where]`.
type Update struct {
	Table       string
	Assignments []Assignment
	Where       storage.Expr
}

func (*Update) isStatement() {}

// Delete is `DELETE FROM table [WHERE where]`.
type Delete struct {
	Table string
	Where storage.Expr
}

func (*Delete) isStatement() {}

// ColumnSpec is one `name TYPE` pair of a CREATE TABLE's column list.
type ColumnSpec struct {
	Name string
	Type storage.ValueType
	Size int
}

// CreateTable is `CREATE TABLE name (columns)`.
type CreateTable struct {
	Name    string
	Columns []ColumnSpec
}

func (*CreateTable) isStatement() {}

// DropTable is `DROP TABLE names...`.
type DropTable struct {
	Names []string
}

func (*DropTable) isStatement() {}

// Flush is the bare `FLUSH` statement.
type Flush struct{}

func (*Flush) isStatement() {}

// ShowTables is the supplemented introspection statement `SHOW TABLES`.
type ShowTables struct{}

func (*ShowTables) isStatement() {}
