package storage

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// fileMagic tags a BongoDB table file; fileVersion is the current on-disk
// format version (§6 "On-disk layout").
var fileMagic = [4]byte{'B', 'N', 'G', 'O'}

const fileVersion byte = 1

// fileHeaderSize is magic(4) + version(1) + slotCount(4) + slotSize(4).
const fileHeaderSize = 4 + 1 + 4 + 4

const (
	ghostFlag byte = 0x00
	liveFlag  byte = 0x01

	nullTag    byte = 0x01
	notNullTag byte = 0x00
)

// encodeSlot writes one fixed-size slot record for row under schema into a
// freshly allocated buffer of schema.SlotSize() bytes. live selects the
// slot-wide flag byte. If row is nil (a ghost slot with no live content),
// only the flag byte is meaningful; the remainder is zero-filled.
func encodeSlot(schema Schema, live bool, row Row) []byte {
	buf := make([]byte, schema.SlotSize())
	if live {
		buf[0] = liveFlag
	} else {
		buf[0] = ghostFlag
	}
	if !live || row == nil {
		return buf
	}
	off := 1
	for i, c := range schema.Cols {
		v := row[i]
		if v == nil {
			buf[off] = nullTag
			off += 1 + valueWidth(c)
			continue
		}
		buf[off] = notNullTag
		off++
		switch c.Type {
		case IntType:
			binary.LittleEndian.PutUint64(buf[off:off+8], uint64(v.(int64)))
			off += 8
		case BoolType:
			if v.(bool) {
				buf[off] = 1
			} else {
				buf[off] = 0
			}
			off++
		case VarcharType:
			s := v.(string)
			binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(s)))
			copy(buf[off+4:off+4+len(s)], s)
			off += 4 + c.Size
		}
	}
	return buf
}

func valueWidth(c ColumnDef) int {
	switch c.Type {
	case IntType:
		return 8
	case BoolType:
		return 1
	case VarcharType:
		return 4 + c.Size
	default:
		return 0
	}
}

// decodeSlot parses a fixed-size slot buffer (as produced by encodeSlot)
// into its live/ghost flag and, if live, its Row.
func decodeSlot(schema Schema, buf []byte) (live bool, row Row, err error) {
	if len(buf) != schema.SlotSize() {
		return false, nil, errors.Errorf("slot buffer has %d bytes, expected %d", len(buf), schema.SlotSize())
	}
	live = buf[0] == liveFlag
	if !live {
		return false, nil, nil
	}
	row = make(Row, len(schema.Cols))
	off := 1
	for i, c := range schema.Cols {
		isNull := buf[off] == nullTag
		off++
		switch c.Type {
		case IntType:
			if !isNull {
				row[i] = int64(binary.LittleEndian.Uint64(buf[off : off+8]))
			}
			off += 8
		case BoolType:
			if !isNull {
				row[i] = buf[off] != 0
			}
			off++
		case VarcharType:
			if !isNull {
				l := binary.LittleEndian.Uint32(buf[off : off+4])
				row[i] = string(buf[off+4 : off+4+int(l)])
			}
			off += 4 + c.Size
		}
	}
	return true, row, nil
}
