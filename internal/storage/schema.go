// Package storage implements BongoDB's per-table storage engine: the
// fixed-size slot format, the hash index over each table's index column,
// ghost-slot recycling, and the on-disk file layout. It also implements the
// Catalog, the process-wide mapping from table name to live Table.
//
// What: One Table instance owns a dense array of fixed-size Slots, a hash
// index from index-column value to the set of slot ids holding that value,
// and a freelist of ghost (deleted) slot ids available for reuse by the next
// INSERT. The Catalog owns the map from table name to Table plus the root
// data directory.
// How: Slots are encoded with a fixed per-schema layout (§4.1 of the spec):
// a live/ghost flag byte, then per-column null-tag + value bytes. Hash
// buckets and the freelist are represented as roaring bitmaps of slot ids —
// both are exactly "a set of small non-negative integers", which is the
// shape roaring bitmaps are built for.
// Why: A fixed slot layout makes slot addressing O(1) and FLUSH a single
// sequential write; ghost-slot recycling keeps DELETE O(1) at the cost of
// unbounded growth under churn, deferred to a future compactor (not in
// scope here).
package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ValueType enumerates the three declared column types. Every column is
// nullable regardless of its declared type; Null is a legal value of every
// type.
type ValueType int

const (
	// IntType is a 64-bit signed integer column.
	IntType ValueType = iota
	// BoolType is a single-byte boolean column.
	BoolType
	// VarcharType is a variable-length UTF-8 string column bounded by Size
	// bytes.
	VarcharType
)

func (t ValueType) String() string {
	switch t {
	case IntType:
		return "INT"
	case BoolType:
		return "BOOLEAN"
	case VarcharType:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

// ColumnDef describes one column of a Schema: its (case-sensitive) name,
// its declared type, and — for VARCHAR — the maximum UTF-8 byte length of
// the stored string.
type ColumnDef struct {
	Name string
	Type ValueType
	// Size is the maximum UTF-8 byte length of a VARCHAR value. Ignored for
	// INT and BOOLEAN.
	Size int
}

// TypeString renders the column's declared type the way meta.json and
// CREATE TABLE both spell it, e.g. "INT", "BOOLEAN", "VARCHAR(255)".
func (c ColumnDef) TypeString() string {
	if c.Type == VarcharType {
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	}
	return c.Type.String()
}

// ParseTypeString parses a column type spelling as produced by TypeString,
// e.g. "INT", "BOOLEAN", "VARCHAR(255)".
func ParseTypeString(s string) (ValueType, int, error) {
	s = strings.TrimSpace(s)
	up := strings.ToUpper(s)
	switch {
	case up == "INT":
		return IntType, 0, nil
	case up == "BOOLEAN":
		return BoolType, 0, nil
	case strings.HasPrefix(up, "VARCHAR(") && strings.HasSuffix(up, ")"):
		inner := up[len("VARCHAR(") : len(up)-1]
		n, err := strconv.Atoi(inner)
		if err != nil || n < 0 {
			return 0, 0, errors.Errorf("invalid VARCHAR size in %q", s)
		}
		return VarcharType, n, nil
	default:
		return 0, 0, errors.Errorf("unknown column type %q", s)
	}
}

// Schema is the ordered sequence of a table's columns. Column order is
// authoritative: INSERT column lists must match it exactly, and the first
// column is always the index column (§3).
type Schema struct {
	Cols []ColumnDef
}

// IndexColumn returns the name of the schema's index column (its first
// column). Panics if the schema has no columns; CREATE TABLE rejects an
// empty column list so this should never observe one.
func (s Schema) IndexColumn() string {
	return s.Cols[0].Name
}

// ColIndex returns the position of the named (case-sensitive) column, or
// -1 if it is not part of the schema.
func (s Schema) ColIndex(name string) int {
	for i, c := range s.Cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SlotSize returns the fixed on-disk/in-memory size in bytes of one slot
// under this schema: one live/ghost flag byte, plus for each column one
// null-tag byte and the column's maximum encoded value size.
func (s Schema) SlotSize() int {
	total := 1 // live/ghost flag
	for _, c := range s.Cols {
		total += 1 // null tag
		switch c.Type {
		case IntType:
			total += 8
		case BoolType:
			total += 1
		case VarcharType:
			total += 4 + c.Size
		}
	}
	return total
}
