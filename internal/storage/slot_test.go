package storage

import "testing"

func TestEncodeDecodeSlotRoundTrip(t *testing.T) {
	s := testSchema()
	row := Row{int64(42), "bob", true}
	buf := encodeSlot(s, true, row)
	if len(buf) != s.SlotSize() {
		t.Fatalf("encoded slot is %d bytes, want %d", len(buf), s.SlotSize())
	}
	live, got, err := decodeSlot(s, buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !live {
		t.Fatal("expected live slot")
	}
	for i := range row {
		if got[i] != row[i] {
			t.Fatalf("column %d: got %v, want %v", i, got[i], row[i])
		}
	}
}

func TestEncodeDecodeSlotWithNulls(t *testing.T) {
	s := testSchema()
	row := Row{int64(1), nil, nil}
	buf := encodeSlot(s, true, row)
	live, got, err := decodeSlot(s, buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !live {
		t.Fatal("expected live slot")
	}
	if got[1] != nil || got[2] != nil {
		t.Fatalf("expected nulls preserved, got %v", got)
	}
	if got[0] != int64(1) {
		t.Fatalf("got[0] = %v, want 1", got[0])
	}
}

func TestDecodeGhostSlot(t *testing.T) {
	s := testSchema()
	buf := encodeSlot(s, false, nil)
	live, row, err := decodeSlot(s, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if live {
		t.Fatal("expected ghost slot")
	}
	if row != nil {
		t.Fatalf("expected nil row for ghost slot, got %v", row)
	}
}

func TestDecodeSlotWrongSize(t *testing.T) {
	s := testSchema()
	if _, _, err := decodeSlot(s, make([]byte, 3)); err == nil {
		t.Fatal("expected error for malformed slot buffer")
	}
}
