package engine

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/SimonWaldherr/bongodb/internal/concurrency"
	"github.com/SimonWaldherr/bongodb/internal/storage"
)

// What: dispatches a parsed Statement to its handler, acquiring catalog
// and table locks from the Concurrency Controller in the order §4.3
// prescribes, and returns a Response or a classified BongoError.
// How: one handler method per statement kind; table-scoped statements go
// through Controller.AcquireTableScoped, catalog-scoped statements
// (CREATE/DROP/FLUSH) hold the catalog lock exclusive for their whole
// duration via Controller.CatalogExclusive.
// Why: centralizing lock acquisition here (rather than in the parser or
// the storage layer) keeps the §5 ordering guarantees in one place that's
// easy to audit against the spec.

// Response is the result of executing one statement, independent of wire
// encoding (§6 "Response").
type Response struct {
	Data [][]storage.Value
}

// Executor ties a Catalog to a Concurrency Controller and an auto_flush
// policy (§6 "Startup configuration").
type Executor struct {
	Catalog    *storage.Catalog
	Controller *concurrency.Controller
	AutoFlush  bool
}

// New creates an Executor over an already-opened catalog.
func New(cat *storage.Catalog, ctrl *concurrency.Controller, autoFlush bool) *Executor {
	return &Executor{Catalog: cat, Controller: ctrl, AutoFlush: autoFlush}
}

// Execute dispatches stmt and, if AutoFlush is set and stmt is not a
// SELECT/SHOW TABLES, flushes afterward (§6 "auto_flush").
func (ex *Executor) Execute(stmt Statement) (*Response, error) {
	resp, err := ex.dispatch(stmt)
	if err != nil {
		if _, ok := err.(*InternalError); ok {
			log.Error().Str("statement", statementKind(stmt)).Err(err).Msg("internal error executing statement")
		} else {
			log.Debug().Str("statement", statementKind(stmt)).Err(err).Msg("statement failed")
		}
		return nil, err
	}
	if ex.AutoFlush && !isReadOnly(stmt) {
		if ferr := ex.flush(); ferr != nil {
			return nil, ferr
		}
	}
	return resp, nil
}

func isReadOnly(stmt Statement) bool {
	switch stmt.(type) {
	case *Select, *ShowTables:
		return true
	default:
		return false
	}
}

func statementKind(stmt Statement) string {
	switch stmt.(type) {
	case *Select:
		return "SELECT"
	case *Insert:
		return "INSERT"
	case *Update:
		return "UPDATE"
	case *Delete:
		return "DELETE"
	case *CreateTable:
		return "CREATE TABLE"
	case *DropTable:
		return "DROP TABLE"
	case *Flush:
		return "FLUSH"
	case *ShowTables:
		return "SHOW TABLES"
	default:
		return "UNKNOWN"
	}
}

func (ex *Executor) dispatch(stmt Statement) (*Response, error) {
	switch s := stmt.(type) {
	case *Select:
		return ex.execSelect(s)
	case *Insert:
		return ex.execInsert(s)
	case *Update:
		return ex.execUpdate(s)
	case *Delete:
		return ex.execDelete(s)
	case *CreateTable:
		return ex.execCreateTable(s)
	case *DropTable:
		return ex.execDropTable(s)
	case *Flush:
		if err := ex.flush(); err != nil {
			return nil, err
		}
		return &Response{}, nil
	case *ShowTables:
		return ex.execShowTables()
	default:
		return nil, internalErrf("unknown statement type %T", stmt)
	}
}

// resolveTable looks up name in the catalog, for use as the resolve
// callback of Controller.AcquireTableScoped.
func (ex *Executor) resolveTable(name string) (*storage.Table, error) {
	t, ok := ex.Catalog.Get(name)
	if !ok {
		return nil, schemaErrf("schema error: unknown table %q", name)
	}
	return t, nil
}

func (ex *Executor) execSelect(s *Select) (*Response, error) {
	var tbl *storage.Table
	release, err := ex.Controller.AcquireTableScoped(s.Table, false, func() error {
		t, err := ex.resolveTable(s.Table)
		if err != nil {
			return err
		}
		tbl = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := ex.scanOrProbe(tbl, s.Where)
	if err != nil {
		return nil, classifyExprError(err)
	}

	if s.Order != nil {
		orderIdx := tbl.Schema.ColIndex(s.Order.Column)
		if orderIdx < 0 {
			return nil, schemaErrf("schema error: unknown ORDER BY column %q", s.Order.Column)
		}
		sortRowsByColumn(rows, orderIdx, s.Order.Dir)
	}

	colIdx, err := ex.projectionColumns(tbl.Schema, s.Items)
	if err != nil {
		return nil, err
	}
	projected := make([][]storage.Value, len(rows))
	for i, r := range rows {
		projected[i] = lo.Map(colIdx, func(idx int, _ int) storage.Value { return r[idx] })
	}

	return &Response{Data: projected}, nil
}

// scanOrProbe applies the §4.1 "index-use gate": a root-level equality/
// inequality predicate on the index column is served by Table.Probe,
// everything else by Table.Scan.
func (ex *Executor) scanOrProbe(tbl *storage.Table, where storage.Expr) ([]storage.Row, error) {
	if op, lit, ok := storage.IndexProbe(where, tbl.Schema); ok {
		return tbl.Probe(op, lit)
	}
	return tbl.Scan(where)
}

func (ex *Executor) projectionColumns(schema storage.Schema, items SelectItems) ([]int, error) {
	if items.Wildcard {
		idx := make([]int, len(schema.Cols))
		for i := range schema.Cols {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, len(items.Columns))
	for i, name := range items.Columns {
		ci := schema.ColIndex(name)
		if ci < 0 {
			return nil, schemaErrf("schema error: unknown column %q", name)
		}
		idx[i] = ci
	}
	return idx, nil
}

// sortRowsByColumn sorts full table rows (pre-projection, so every column
// is always present) by the orderIdx column value. Null sorts before every
// non-null value.
func sortRowsByColumn(rows []storage.Row, orderIdx int, dir OrderDir) {
	less := func(a, b storage.Value) bool {
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		switch av := a.(type) {
		case int64:
			return av < b.(int64)
		case string:
			return av < b.(string)
		case bool:
			return !av && b.(bool)
		default:
			return false
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][orderIdx], rows[j][orderIdx]
		if dir == Desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

func (ex *Executor) execInsert(s *Insert) (*Response, error) {
	var tbl *storage.Table
	release, err := ex.Controller.AcquireTableScoped(s.Table, true, func() error {
		t, err := ex.resolveTable(s.Table)
		if err != nil {
			return err
		}
		tbl = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer release()

	idx, err := columnOrderIndex(tbl.Schema, s.Columns)
	if err != nil {
		return nil, err
	}

	rows := make([]storage.Row, len(s.Rows))
	for i, vals := range s.Rows {
		row := make(storage.Row, len(tbl.Schema.Cols))
		for j, v := range vals {
			row[idx[j]] = v
		}
		if err := storage.CheckRow(row, tbl.Schema); err != nil {
			return nil, classifyExprError(err)
		}
		rows[i] = row
	}
	for _, row := range rows {
		if _, err := tbl.Insert(row); err != nil {
			return nil, internalErrf("insert failed after validation passed: %v", err)
		}
	}
	return &Response{}, nil
}

// columnOrderIndex maps an INSERT's explicit column list onto schema
// positions; the column list must name every column of the schema exactly
// once, in schema order.
func columnOrderIndex(schema storage.Schema, columns []string) ([]int, error) {
	if len(columns) != len(schema.Cols) {
		return nil, schemaErrf("schema error: INSERT column list has %d columns, table has %d", len(columns), len(schema.Cols))
	}
	idx := make([]int, len(columns))
	for i, name := range columns {
		ci := schema.ColIndex(name)
		if ci < 0 {
			return nil, schemaErrf("schema error: unknown column %q in INSERT", name)
		}
		if ci != i {
			return nil, schemaErrf("schema error: INSERT column %q is at position %d, table has it at position %d", name, i+1, ci+1)
		}
		idx[i] = ci
	}
	return idx, nil
}

func (ex *Executor) execUpdate(s *Update) (*Response, error) {
	var tbl *storage.Table
	release, err := ex.Controller.AcquireTableScoped(s.Table, true, func() error {
		t, err := ex.resolveTable(s.Table)
		if err != nil {
			return err
		}
		tbl = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer release()

	assignments := make(map[string]storage.Expr, len(s.Assignments))
	for _, a := range s.Assignments {
		if tbl.Schema.ColIndex(a.Column) < 0 {
			return nil, schemaErrf("schema error: unknown column %q in UPDATE", a.Column)
		}
		assignments[a.Column] = a.Value
	}
	if _, err := tbl.Update(s.Where, assignments); err != nil {
		return nil, classifyExprError(err)
	}
	return &Response{}, nil
}

func (ex *Executor) execDelete(s *Delete) (*Response, error) {
	var tbl *storage.Table
	release, err := ex.Controller.AcquireTableScoped(s.Table, true, func() error {
		t, err := ex.resolveTable(s.Table)
		if err != nil {
			return err
		}
		tbl = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := tbl.Delete(s.Where); err != nil {
		return nil, classifyExprError(err)
	}
	return &Response{}, nil
}

func (ex *Executor) execCreateTable(s *CreateTable) (*Response, error) {
	release := ex.Controller.CatalogExclusive()
	defer release()

	cols := make([]storage.ColumnDef, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = storage.ColumnDef{Name: c.Name, Type: c.Type, Size: c.Size}
	}
	if _, err := ex.Catalog.Create(s.Name, storage.Schema{Cols: cols}); err != nil {
		return nil, schemaErrf("%s", err.Error())
	}
	return &Response{}, nil
}

// execDropTable pre-checks every named table exists before dropping any
// of them, so a DROP TABLE naming one bad table among several leaves all
// of them untouched (§7 "Validation errors are detected before mutation").
func (ex *Executor) execDropTable(s *DropTable) (*Response, error) {
	release := ex.Controller.CatalogExclusive()
	defer release()

	for _, name := range s.Names {
		if _, ok := ex.Catalog.Get(name); !ok {
			return nil, schemaErrf("schema error: unknown table %q", name)
		}
	}
	for _, name := range s.Names {
		if err := ex.Catalog.Drop(name); err != nil {
			return nil, internalErrf("drop failed after existence check passed: %v", err)
		}
	}
	return &Response{}, nil
}

func (ex *Executor) execShowTables() (*Response, error) {
	release := ex.Controller.CatalogShared()
	defer release()

	names := ex.Catalog.Names()
	data := make([][]storage.Value, len(names))
	for i, n := range names {
		tbl, _ := ex.Catalog.Get(n)
		data[i] = []storage.Value{n, int64(len(tbl.Schema.Cols))}
	}
	return &Response{Data: data}, nil
}

func (ex *Executor) flush() error {
	release := ex.Controller.CatalogExclusive()
	defer release()

	if err := ex.Catalog.FlushAll(); err != nil {
		return ioErrf("flush failed: %v", err)
	}
	return nil
}

// classifyExprError maps a storage-layer error into the §7 taxonomy:
// storage.TypeError stays a TypeError-shaped failure, anything else from
// the storage layer that wasn't anticipated is treated as internal.
func classifyExprError(err error) BongoError {
	if _, ok := err.(*storage.TypeError); ok {
		return &TypeError{Msg: err.Error()}
	}
	if be, ok := err.(BongoError); ok {
		return be
	}
	return internalErrf("%v", err)
}

// TypeError mirrors storage.TypeError in the executor's BongoError
// hierarchy (§7 "TypeError"). Wire code 2.
type TypeError struct{ Msg string }

func (e *TypeError) Error() string   { return e.Msg }
func (e *TypeError) SuccessCode() int { return 2 }
