package storage

import (
	"encoding/binary"
	"hash/fnv"

	roaring "github.com/RoaringBitmap/roaring/v2"
)

// nullBucket is the reserved hash bucket for a Null index value. Every
// non-null hash clears the top bit (see hashValue), so nullBucket — which
// has only the top bit set — can never collide with a non-null bucket
// (§4.1 "Index column", Design Notes "Hash index with collision chains").
const nullBucket uint64 = 1 << 63

// hashValue computes the bucket hash for an index-column value.
func hashValue(v Value) uint64 {
	if v == nil {
		return nullBucket
	}
	h := fnv.New64a()
	switch t := v.(type) {
	case int64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(t))
		h.Write(b[:])
	case bool:
		if t {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case string:
		h.Write([]byte(t))
	}
	return h.Sum64() &^ nullBucket
}

// hashIndex is a multi-map from bucket hash to the set of slot ids whose
// index-column value hashes to that bucket (I1). Each bucket is a roaring
// bitmap of slot ids: a compact representation of exactly the structure
// needed here ("a set of small non-negative integers" with
// insert/remove/iterate as the only operations).
type hashIndex struct {
	buckets map[uint64]*roaring.Bitmap
}

func newHashIndex() *hashIndex {
	return &hashIndex{buckets: make(map[uint64]*roaring.Bitmap)}
}

func (h *hashIndex) insert(hash uint64, slotID uint32) {
	bm := h.buckets[hash]
	if bm == nil {
		bm = roaring.New()
		h.buckets[hash] = bm
	}
	bm.Add(slotID)
}

func (h *hashIndex) remove(hash uint64, slotID uint32) {
	bm, ok := h.buckets[hash]
	if !ok {
		return
	}
	bm.Remove(slotID)
	if bm.IsEmpty() {
		delete(h.buckets, hash)
	}
}

// candidates returns the slot ids in a bucket, which may include hash
// collisions the caller must resolve by re-reading the candidate slot's
// actual index value (I3, Design Notes).
func (h *hashIndex) candidates(hash uint64) []uint32 {
	bm, ok := h.buckets[hash]
	if !ok {
		return nil
	}
	return bm.ToArray()
}

// reset clears the index, used when rebuilding it from scratch on load.
func (h *hashIndex) reset() {
	h.buckets = make(map[uint64]*roaring.Bitmap)
}
