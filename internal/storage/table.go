package storage

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
)

// Table is the per-table storage engine: a dense slot array, a hash index
// over the schema's index column, and a freelist of ghost slot ids
// available for reuse (§3, §4.1). Each method holds the Table's own mutex
// for the duration of the call; ordering whole statements against each
// other is left to callers (the concurrency controller) per the
// catalog/table lock protocol in §5.
type Table struct {
	Name   string
	Schema Schema

	mu       sync.Mutex // held by every method while it reads or writes the fields below
	slots    []slotEntry
	index    *hashIndex
	freelist *roaring.Bitmap
	dirty    bool
}

type slotEntry struct {
	live bool
	row  Row
}

// NewTable creates an empty in-memory table for schema.
func NewTable(name string, schema Schema) *Table {
	return &Table{
		Name:     name,
		Schema:   schema,
		index:    newHashIndex(),
		freelist: roaring.New(),
	}
}

// Insert appends row to the table, preferring a recycled ghost slot over
// growing the slot array (§4.1 "Ghost slots"). Returns the slot id used.
func (t *Table) Insert(row Row) (uint32, error) {
	if err := CheckRow(row, t.Schema); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.allocSlot(row)
	h := hashValue(row[0])
	t.index.insert(h, id)
	t.dirty = true
	return id, nil
}

// allocSlot reuses a ghost slot if one is free, else appends a new slot.
// Caller holds t.mu.
func (t *Table) allocSlot(row Row) uint32 {
	if !t.freelist.IsEmpty() {
		it := t.freelist.Iterator()
		id := it.Next()
		t.freelist.Remove(id)
		t.slots[id] = slotEntry{live: true, row: row}
		return id
	}
	id := uint32(len(t.slots))
	t.slots = append(t.slots, slotEntry{live: true, row: row})
	return id
}

// Scan evaluates predicate against every live row in slot-id order (a full
// table scan) and returns the matching rows.
func (t *Table) Scan(predicate Expr) ([]Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Row
	for _, s := range t.slots {
		if !s.live {
			continue
		}
		ok, err := Matches(predicate, t.Schema, s.row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s.row.Clone())
		}
	}
	return out, nil
}

// Probe accelerates an equality/inequality predicate on the index column
// via the hash index, re-checking each bucket candidate's actual value to
// resolve hash collisions (§4.1 "Index-use gate").
func (t *Table) Probe(op BinOp, literal Value) ([]Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := hashValue(literal)
	var out []Row
	switch op {
	case OpEq:
		for _, id := range t.index.candidates(h) {
			s := t.slots[id]
			if !s.live {
				continue
			}
			eq, err := evalComparison(OpEq, s.row[0], literal)
			if err != nil {
				return nil, err
			}
			if b, _ := eq.(bool); b {
				out = append(out, s.row.Clone())
			}
		}
	case OpNotEq:
		// Not-equal cannot be served from a single bucket; fall back to a
		// full scan restricted to the index column comparison.
		for _, s := range t.slots {
			if !s.live {
				continue
			}
			neq, err := evalComparison(OpNotEq, s.row[0], literal)
			if err != nil {
				return nil, err
			}
			if b, _ := neq.(bool); b {
				out = append(out, s.row.Clone())
			}
		}
	default:
		return nil, errors.Errorf("probe does not support operator %s", op)
	}
	return out, nil
}

// Update applies assignments (column name -> new value expression) to every
// live row matching predicate. Per row, the full new row is validated
// before any slot is mutated; if validation fails partway through the scan,
// every already-applied mutation in this call is rolled back and the error
// is returned, leaving the table exactly as it was before the call (§7
// "per-statement atomicity under TypeError").
func (t *Table) Update(predicate Expr, assignments map[string]Expr) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type journalEntry struct {
		id  uint32
		old Row
	}
	var journal []journalEntry

	rollback := func() {
		for _, j := range journal {
			old := t.slots[j.id].row
			t.index.remove(hashValue(old[0]), j.id)
			t.slots[j.id] = slotEntry{live: true, row: j.old}
			t.index.insert(hashValue(j.old[0]), j.id)
		}
	}

	updated := 0
	for id := range t.slots {
		s := t.slots[id]
		if !s.live {
			continue
		}
		ok, err := Matches(predicate, t.Schema, s.row)
		if err != nil {
			rollback()
			return 0, err
		}
		if !ok {
			continue
		}
		newRow := s.row.Clone()
		for col, expr := range assignments {
			idx := t.Schema.ColIndex(col)
			if idx < 0 {
				rollback()
				return 0, typeErrf("unknown column %q in assignment", col)
			}
			v, err := Eval(expr, t.Schema, s.row)
			if err != nil {
				rollback()
				return 0, err
			}
			newRow[idx] = v
		}
		if err := CheckRow(newRow, t.Schema); err != nil {
			rollback()
			return 0, err
		}
		journal = append(journal, journalEntry{id: uint32(id), old: s.row})
		t.index.remove(hashValue(s.row[0]), uint32(id))
		t.slots[id] = slotEntry{live: true, row: newRow}
		t.index.insert(hashValue(newRow[0]), uint32(id))
		updated++
	}
	if updated > 0 {
		t.dirty = true
	}
	return updated, nil
}

// Delete marks every live row matching predicate as a ghost slot and
// returns its id to the freelist for reuse.
func (t *Table) Delete(predicate Expr) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	deleted := 0
	for id := range t.slots {
		s := t.slots[id]
		if !s.live {
			continue
		}
		ok, err := Matches(predicate, t.Schema, s.row)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		t.index.remove(hashValue(s.row[0]), uint32(id))
		t.slots[id] = slotEntry{live: false, row: nil}
		t.freelist.Add(uint32(id))
		deleted++
	}
	if deleted > 0 {
		t.dirty = true
	}
	return deleted, nil
}

// Dirty reports whether the table has unflushed mutations.
func (t *Table) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

// Flush writes the table's full slot array to w in the on-disk format
// (§6): magic, version, slot count, slot size, then each slot record in
// order. Ghost slots are written too, so slot ids survive a flush/load
// round trip (I4).
func (t *Table) Flush(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(fileMagic[:]); err != nil {
		return errors.Wrap(err, "write magic")
	}
	if err := bw.WriteByte(fileVersion); err != nil {
		return errors.Wrap(err, "write version")
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(t.slots)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(t.Schema.SlotSize()))
	if _, err := bw.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, s := range t.slots {
		buf := encodeSlot(t.Schema, s.live, s.row)
		if _, err := bw.Write(buf); err != nil {
			return errors.Wrap(err, "write slot")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush buffer")
	}
	t.dirty = false
	return nil
}

// Load replaces the table's slot array from r and rebuilds the hash index
// and freelist from scratch — neither is persisted (§6 "Index and freelist
// are never persisted; they are rebuilt from the slot array on load").
func (t *Table) Load(r io.Reader) error {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return errors.Wrap(err, "read magic")
	}
	if magic != fileMagic {
		return errors.Errorf("bad file magic for table %q", t.Name)
	}
	version, err := br.ReadByte()
	if err != nil {
		return errors.Wrap(err, "read version")
	}
	if version != fileVersion {
		return errors.Errorf("unsupported file version %d for table %q", version, t.Name)
	}
	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return errors.Wrap(err, "read header")
	}
	count := binary.LittleEndian.Uint32(hdr[0:4])
	slotSize := int(binary.LittleEndian.Uint32(hdr[4:8]))
	if slotSize != t.Schema.SlotSize() {
		return errors.Errorf("table %q: file slot size %d does not match schema slot size %d", t.Name, slotSize, t.Schema.SlotSize())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.slots = make([]slotEntry, count)
	t.index.reset()
	t.freelist = roaring.New()

	buf := make([]byte, slotSize)
	for id := uint32(0); id < count; id++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return errors.Wrapf(err, "read slot %d", id)
		}
		live, row, err := decodeSlot(t.Schema, buf)
		if err != nil {
			return errors.Wrapf(err, "decode slot %d", id)
		}
		t.slots[id] = slotEntry{live: live, row: row}
		if live {
			t.index.insert(hashValue(row[0]), id)
		} else {
			t.freelist.Add(id)
		}
	}
	t.dirty = false
	return nil
}
