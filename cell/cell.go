// Package cell implements the three on-disk cell codecs used by the
// slotted page layout: leaf cells and intermediate cells (index file nodes)
// and record cells (heap file rows). A codec encodes/decodes a cell body —
// the bytes that follow the page's own per-cell validity flag byte, which
// the cell codecs never see; that flag belongs to the page (see package
// page) and is not part of any cell's payload.
//
// All multi-byte fields are little-endian, matching spec.md §3/§6.
package cell

import "encoding/binary"

// Kind distinguishes the three cell variants a page can hold.
type Kind int

const (
	KindLeaf Kind = iota
	KindIntermediate
	KindRecord
)

// Leaf is an index-file leaf cell: it resolves a key to a heap location.
//
// Wire layout: key_size(2) | heap_page_id(2) | slot_id(2) | key(4).
// key_size is always 4 (keys are fixed 32-bit ints) but is still stored,
// matching spec.md's byte table, to leave room for variable-length keys
// without changing the cell shape later.
type Leaf struct {
	Key        int32
	HeapPageID uint16
	SlotID     uint16
}

const leafKeySize = 4

// PayloadSize is the exact number of bytes Encode writes.
func (l Leaf) PayloadSize() int { return 2 + 2 + 2 + 4 }

func (l Leaf) Kind() Kind { return KindLeaf }

// Encode serializes the cell body (not including the page's flag byte).
func (l Leaf) Encode() []byte {
	buf := make([]byte, l.PayloadSize())
	binary.LittleEndian.PutUint16(buf[0:2], leafKeySize)
	binary.LittleEndian.PutUint16(buf[2:4], l.HeapPageID)
	binary.LittleEndian.PutUint16(buf[4:6], l.SlotID)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(l.Key))
	return buf
}

// DecodeLeaf reads a leaf cell body starting at body[0].
func DecodeLeaf(body []byte) Leaf {
	return Leaf{
		HeapPageID: binary.LittleEndian.Uint16(body[2:4]),
		SlotID:     binary.LittleEndian.Uint16(body[4:6]),
		Key:        int32(binary.LittleEndian.Uint32(body[6:10])),
	}
}

// Intermediate is an index-file internal-node cell: it resolves a key
// range to a child page.
//
// Wire layout: key_size(2) | child_page_id(2) | key(4).
type Intermediate struct {
	Key         int32
	ChildPageID uint16
}

func (c Intermediate) PayloadSize() int { return 2 + 2 + 4 }

func (c Intermediate) Kind() Kind { return KindIntermediate }

func (c Intermediate) Encode() []byte {
	buf := make([]byte, c.PayloadSize())
	binary.LittleEndian.PutUint16(buf[0:2], leafKeySize)
	binary.LittleEndian.PutUint16(buf[2:4], c.ChildPageID)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.Key))
	return buf
}

func DecodeIntermediate(body []byte) Intermediate {
	return Intermediate{
		ChildPageID: binary.LittleEndian.Uint16(body[2:4]),
		Key:         int32(binary.LittleEndian.Uint32(body[4:8])),
	}
}

// Record is a heap-file cell holding the actual value bytes for a key.
//
// Wire layout: key(4) | value_size(8) | value(value_size).
type Record struct {
	Key   int32
	Value []byte
}

func (r Record) PayloadSize() int { return 4 + 8 + len(r.Value) }

func (r Record) Kind() Kind { return KindRecord }

func (r Record) Encode() []byte {
	buf := make([]byte, r.PayloadSize())
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Key))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(len(r.Value)))
	copy(buf[12:], r.Value)
	return buf
}

// DecodeRecord reads a record cell body starting at body[0]. body must
// extend at least 12+value_size bytes past its start.
func DecodeRecord(body []byte) Record {
	key := int32(binary.LittleEndian.Uint32(body[0:4]))
	valSize := binary.LittleEndian.Uint64(body[4:12])
	value := make([]byte, valSize)
	copy(value, body[12:12+int(valSize)])
	return Record{Key: key, Value: value}
}

// RecordValueBytes returns a view over just the value portion of an
// encoded record cell body, skipping key and value_size, without
// allocating a copy of the key.
func RecordValueBytes(body []byte) []byte {
	valSize := binary.LittleEndian.Uint64(body[4:12])
	return body[12 : 12+int(valSize)]
}
