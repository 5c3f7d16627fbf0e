package engine

import (
	"testing"

	"github.com/SimonWaldherr/bongodb/internal/concurrency"
	"github.com/SimonWaldherr/bongodb/internal/storage"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	cat, err := storage.OpenOrCreate(t.TempDir(), true)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return New(cat, concurrency.New(), false)
}

func run(t *testing.T, ex *Executor, sql string) *Response {
	t.Helper()
	stmt, err := NewParser(sql).ParseStatement()
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	resp, err := ex.Execute(stmt)
	if err != nil {
		t.Fatalf("execute %q: %v", sql, err)
	}
	return resp
}

func runErr(t *testing.T, ex *Executor, sql string) error {
	t.Helper()
	stmt, err := NewParser(sql).ParseStatement()
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	_, err = ex.Execute(stmt)
	if err == nil {
		t.Fatalf("expected execution error for %q", sql)
	}
	return err
}

func TestExecutorEndToEndScenario1(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, "CREATE TABLE Person (id INT, name VARCHAR(255), married BOOLEAN, grade INT)")
	run(t, ex, "INSERT INTO Person (id,name,married,grade) VALUES (1,'James',TRUE,3),(2,'Karl',FALSE,NULL),(3,'Sarah',TRUE,NULL)")
	resp := run(t, ex, "SELECT name,married FROM Person WHERE id > 1")
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(resp.Data), resp.Data)
	}
	names := map[string]bool{}
	for _, row := range resp.Data {
		names[row[0].(string)] = true
	}
	if !names["Karl"] || !names["Sarah"] {
		t.Fatalf("expected Karl and Sarah, got %v", resp.Data)
	}
}

func TestExecutorEndToEndScenario2NullEqualityExcludes(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, "CREATE TABLE Person (id INT, name VARCHAR(255), married BOOLEAN, grade INT)")
	run(t, ex, "INSERT INTO Person (id,name,married,grade) VALUES (1,'James',TRUE,3),(2,'Karl',FALSE,NULL)")
	resp := run(t, ex, "SELECT * FROM Person WHERE grade = NULL")
	if len(resp.Data) != 0 {
		t.Fatalf("expected zero rows for grade = NULL, got %v", resp.Data)
	}
}

func TestExecutorEndToEndScenario3UpdateThenIndexProbe(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, "CREATE TABLE Person (id INT, name VARCHAR(255), married BOOLEAN, grade INT)")
	run(t, ex, "INSERT INTO Person (id,name,married,grade) VALUES (1,'James',TRUE,3)")
	run(t, ex, "UPDATE Person SET married = FALSE WHERE id = 1")
	resp := run(t, ex, "SELECT married FROM Person WHERE id = 1")
	if len(resp.Data) != 1 || resp.Data[0][0] != false {
		t.Fatalf("expected [false], got %v", resp.Data)
	}
}

func TestExecutorEndToEndScenario4DeleteInsertRecyclesSlot(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, "CREATE TABLE Person (id INT, name VARCHAR(255), married BOOLEAN, grade INT)")
	run(t, ex, "INSERT INTO Person (id,name,married,grade) VALUES (1,'James',TRUE,3),(2,'Karl',FALSE,NULL),(3,'Sarah',TRUE,NULL)")
	run(t, ex, "DELETE FROM Person WHERE id = 2")
	run(t, ex, "INSERT INTO Person (id,name,married,grade) VALUES (4,'Ana',FALSE,5)")
	resp := run(t, ex, "SELECT id FROM Person ORDER BY id ASC")
	want := []int64{1, 3, 4}
	if len(resp.Data) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), resp.Data)
	}
	for i, w := range want {
		if resp.Data[i][0] != w {
			t.Fatalf("row %d: got %v, want %v", i, resp.Data[i][0], w)
		}
	}
}

func TestExecutorEndToEndScenario6VarcharOverflowLeavesTableUnchanged(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, "CREATE TABLE Person (id INT, name VARCHAR(2))")
	err := runErr(t, ex, "INSERT INTO Person (id,name) VALUES (1,'XYZ')")
	te, ok := err.(*TypeError)
	if !ok || te.SuccessCode() != 2 {
		t.Fatalf("expected a code-2 *TypeError (not *InternalError), got %v (%T)", err, err)
	}
	resp := run(t, ex, "SELECT * FROM Person")
	if len(resp.Data) != 0 {
		t.Fatalf("expected table unchanged after failed insert, got %v", resp.Data)
	}
}

func TestExecutorUnknownTableIsSchemaError(t *testing.T) {
	ex := newTestExecutor(t)
	err := runErr(t, ex, "SELECT * FROM Ghost")
	se, ok := err.(*SchemaError)
	if !ok {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
	if se.SuccessCode() != 2 {
		t.Fatalf("expected wire code 2, got %d", se.SuccessCode())
	}
}

func TestExecutorDropTableAllOrNothing(t *testing.T) {
	ex := newTestExecutor(t)
	run(t, ex, "CREATE TABLE A (id INT)")
	runErr(t, ex, "DROP TABLE A, Ghost")

	resp := run(t, ex, "SHOW TABLES")
	if len(resp.Data) != 1 || resp.Data[0][0] != "A" {
		t.Fatalf("expected table A to survive a DROP TABLE naming a missing table, got %v", resp.Data)
	}
}

func TestExecutorFlushPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cat, err := storage.OpenOrCreate(dir, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ex := New(cat, concurrency.New(), false)
	run(t, ex, "CREATE TABLE Person (id INT, name VARCHAR(32))")
	run(t, ex, "INSERT INTO Person (id,name) VALUES (1,'James')")
	run(t, ex, "FLUSH")
	cat.Close()

	cat2, err := storage.OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer cat2.Close()
	ex2 := New(cat2, concurrency.New(), false)
	resp := run(t, ex2, "SELECT * FROM Person ORDER BY id ASC")
	if len(resp.Data) != 1 || resp.Data[0][1] != "James" {
		t.Fatalf("expected James row to survive flush/reload, got %v", resp.Data)
	}
}

func TestExecutorAutoFlushFlushesAfterWrites(t *testing.T) {
	dir := t.TempDir()
	cat, err := storage.OpenOrCreate(dir, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ex := New(cat, concurrency.New(), true)
	run(t, ex, "CREATE TABLE Person (id INT)")
	run(t, ex, "INSERT INTO Person (id) VALUES (1)")
	cat.Close()

	cat2, err := storage.OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("reopen after auto_flush: %v", err)
	}
	defer cat2.Close()
	tbl, ok := cat2.Get("Person")
	if !ok {
		t.Fatal("expected Person table to have been persisted by auto_flush")
	}
	rows, _ := tbl.Scan(nil)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row persisted, got %d", len(rows))
	}
}
