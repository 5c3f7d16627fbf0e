package storage

import (
	"bytes"
	"testing"
)

func newPeopleTable() *Table {
	s := Schema{Cols: []ColumnDef{
		{Name: "id", Type: IntType},
		{Name: "name", Type: VarcharType, Size: 10},
		{Name: "active", Type: BoolType},
	}}
	return NewTable("people", s)
}

func TestTableInsertAndScan(t *testing.T) {
	tbl := newPeopleTable()
	if _, err := tbl.Insert(Row{int64(1), "alice", true}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := tbl.Insert(Row{int64(2), "bob", false}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rows, err := tbl.Scan(nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestTableInsertRejectsTypeMismatch(t *testing.T) {
	tbl := newPeopleTable()
	if _, err := tbl.Insert(Row{"not an int", "alice", true}); err == nil {
		t.Fatal("expected type error on bad id column")
	}
}

func TestTableProbeUsesIndex(t *testing.T) {
	tbl := newPeopleTable()
	tbl.Insert(Row{int64(1), "alice", true})
	tbl.Insert(Row{int64(2), "bob", false})
	rows, err := tbl.Probe(OpEq, int64(2))
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(rows) != 1 || rows[0][1] != "bob" {
		t.Fatalf("expected bob, got %v", rows)
	}
}

func TestTableDeleteRecyclesSlot(t *testing.T) {
	tbl := newPeopleTable()
	id1, _ := tbl.Insert(Row{int64(1), "alice", true})
	n, err := tbl.Delete(&Binary{Op: OpEq, Left: &Ident{Col: "id"}, Right: &Literal{Val: int64(1)}})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deletion, got %d", n)
	}
	rows, _ := tbl.Scan(nil)
	if len(rows) != 0 {
		t.Fatalf("expected no live rows after delete, got %v", rows)
	}
	id2, err := tbl.Insert(Row{int64(2), "bob", false})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("expected ghost slot %d to be recycled, got new slot %d", id1, id2)
	}
}

func TestTableUpdateRollsBackOnTypeError(t *testing.T) {
	tbl := newPeopleTable()
	tbl.Insert(Row{int64(1), "alice", true})
	tbl.Insert(Row{int64(2), "bob", false})

	_, err := tbl.Update(nil, map[string]Expr{
		"active": &Literal{Val: "not a bool"},
	})
	if _, ok := err.(*TypeError); !ok {
		t.Fatalf("expected *TypeError from assigning a string to a BOOLEAN column, got %v (%T)", err, err)
	}

	rows, _ := tbl.Scan(nil)
	for _, r := range rows {
		if r[1] == "alice" && r[2] != true {
			t.Fatalf("expected rollback to preserve alice's original active=true, got %v", r[2])
		}
		if r[1] == "bob" && r[2] != false {
			t.Fatalf("expected rollback to preserve bob's original active=false, got %v", r[2])
		}
	}
}

func TestTableUpdateMatchingRows(t *testing.T) {
	tbl := newPeopleTable()
	tbl.Insert(Row{int64(1), "alice", true})
	tbl.Insert(Row{int64(2), "bob", false})

	n, err := tbl.Update(
		&Binary{Op: OpEq, Left: &Ident{Col: "id"}, Right: &Literal{Val: int64(2)}},
		map[string]Expr{"active": &Literal{Val: true}},
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row updated, got %d", n)
	}
	rows, _ := tbl.Probe(OpEq, int64(2))
	if len(rows) != 1 || rows[0][2] != true {
		t.Fatalf("expected bob.active=true, got %v", rows)
	}
}

func TestTableFlushLoadRoundTrip(t *testing.T) {
	tbl := newPeopleTable()
	tbl.Insert(Row{int64(1), "alice", true})
	id2, _ := tbl.Insert(Row{int64(2), "bob", false})
	tbl.Delete(&Binary{Op: OpEq, Left: &Ident{Col: "id"}, Right: &Literal{Val: int64(2)}})

	var buf bytes.Buffer
	if err := tbl.Flush(&buf); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if tbl.Dirty() {
		t.Fatal("table should be clean after flush")
	}

	loaded := NewTable("people", tbl.Schema)
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("load: %v", err)
	}
	rows, err := loaded.Scan(nil)
	if err != nil {
		t.Fatalf("scan after load: %v", err)
	}
	if len(rows) != 1 || rows[0][1] != "alice" {
		t.Fatalf("expected only alice to survive, got %v", rows)
	}

	// Ghost slot id should be recycled first on the reloaded table too,
	// proving the freelist was correctly rebuilt from the slot array.
	newID, err := loaded.Insert(Row{int64(3), "carol", true})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if newID != id2 {
		t.Fatalf("expected reload to rebuild freelist with ghost slot %d, got %d", id2, newID)
	}
}
