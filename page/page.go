// Package page implements the slotted-page view described in spec.md §3/§4.2:
// a 4096-byte frame with a 256-byte header, a slot-pointer array that grows
// up from offset 256, and a cell heap that grows down from the end of the
// page. Page owns no storage of its own — it is a typed view over a
// caller-owned byte slice (normally a buffer-pool frame).
package page

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/pkg/errors"

	"pagekv/cell"
	"pagekv/errs"
)

const (
	// Size is the fixed page size in bytes.
	Size = 4096

	// HeaderEnd is where the slot-pointer array begins.
	HeaderEnd = 256

	offIsLeaf         = 0
	offSlotCount      = 1
	offDirOffset      = 2
	offRightmostChild = 4

	slotPointerSize = 2
	flagInvalidMask = 0x1
)

// Encoder is the shared contract the three cell codecs satisfy.
type Encoder interface {
	PayloadSize() int
	Encode() []byte
}

// Page is a typed view over a caller-owned 4096-byte frame.
type Page struct {
	buf   []byte
	dirty bool
}

// Initialize formats buf as a brand-new, empty page of the given node type
// and returns a Page view over it. buf must be exactly Size bytes.
func Initialize(buf []byte, isLeaf bool) *Page {
	p := &Page{buf: buf}
	p.setIsLeaf(isLeaf)
	p.setSlotCount(0)
	p.setDirOffset(Size)
	p.SetRightmostChild(0)
	return p
}

// Wrap treats buf as an already-formatted page and exposes read/mutate
// operations over it without touching its header.
func Wrap(buf []byte) *Page {
	return &Page{buf: buf}
}

// NeedsInit reports whether buf looks like a page that was never formatted
// by Initialize — its slot-directory offset is still the zero value rather
// than a valid offset into [HeaderEnd, Size]. A freshly allocated page slot
// that has never been written reads back as all zero bytes, which is
// indistinguishable from "not yet initialized" by this check; see
// SPEC_FULL.md §E.2 for why get_page relies on this instead of is_page_id_used
// alone.
func NeedsInit(buf []byte) bool {
	return binary.LittleEndian.Uint16(buf[offDirOffset:offDirOffset+2]) == 0
}

func (p *Page) IsLeaf() bool {
	return p.buf[offIsLeaf] == 1
}

func (p *Page) setIsLeaf(isLeaf bool) {
	if isLeaf {
		p.buf[offIsLeaf] = 1
	} else {
		p.buf[offIsLeaf] = 0
	}
}

func (p *Page) slotCount() uint8 {
	return p.buf[offSlotCount]
}

func (p *Page) setSlotCount(n uint8) {
	p.buf[offSlotCount] = n
}

func (p *Page) dirOffset() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offDirOffset : offDirOffset+2])
}

func (p *Page) setDirOffset(off uint16) {
	binary.LittleEndian.PutUint16(p.buf[offDirOffset:offDirOffset+2], off)
}

// RightmostChild returns the rightmost-child page id, meaningful only for
// intermediate nodes.
func (p *Page) RightmostChild() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offRightmostChild : offRightmostChild+2])
}

func (p *Page) SetRightmostChild(id uint16) {
	binary.LittleEndian.PutUint16(p.buf[offRightmostChild:offRightmostChild+2], id)
	p.MarkDirty()
}

func (p *Page) MarkDirty()    { p.dirty = true }
func (p *Page) ClearDirty()   { p.dirty = false }
func (p *Page) IsDirty() bool { return p.dirty }

// Bytes returns the underlying frame buffer. Callers must not retain it
// past the page's lifetime (see spec.md §5).
func (p *Page) Bytes() []byte { return p.buf }

func (p *Page) slotPointerOffset(slotID uint16) int {
	return HeaderEnd + slotPointerSize*int(slotID)
}

func (p *Page) cellOffset(slotID uint16) uint16 {
	o := p.slotPointerOffset(slotID)
	return binary.LittleEndian.Uint16(p.buf[o : o+2])
}

func cellValid(cellStart []byte) bool {
	return cellStart[0]&flagInvalidMask == 0
}

func markCellInvalid(cellStart []byte) {
	cellStart[0] |= flagInvalidMask
}

// InsertCell appends the encoded cell to the page's cell heap and a new
// slot pointer to the directory. Returns the assigned slot id, or ok=false
// if the page has no room — a terminal, capacity-based failure; there is
// no split.
func (p *Page) InsertCell(c Encoder) (slotID uint16, ok bool) {
	// The slot count header field is one byte wide (spec.md §3's page
	// layout table), so 255 valid-or-invalid slots is a hard ceiling
	// independent of however much heap space remains.
	if p.slotCount() == math.MaxUint8 {
		return 0, false
	}

	total := 1 + c.PayloadSize()
	curOffset := int(p.dirOffset())
	newOffset := curOffset - total
	slotPtrEnd := HeaderEnd + slotPointerSize*(int(p.slotCount())+1)
	if newOffset <= slotPtrEnd {
		return 0, false
	}

	cellBytes := p.buf[newOffset : newOffset+total]
	cellBytes[0] = 0 // valid
	copy(cellBytes[1:], c.Encode())

	id := p.slotCount()
	binary.LittleEndian.PutUint16(p.buf[p.slotPointerOffset(uint16(id)):], uint16(newOffset))
	p.setSlotCount(id + 1)
	p.setDirOffset(uint16(newOffset))
	p.MarkDirty()
	return uint16(id), true
}

// InvalidateSlot sets the invalid bit on the cell at slotID. The slot
// pointer and cell bytes are left in place; scans must skip it.
func (p *Page) InvalidateSlot(slotID uint16) {
	off := p.cellOffset(slotID)
	markCellInvalid(p.buf[off:])
	p.MarkDirty()
}

// FindLeafRef scans valid leaf cells for key. If doInvalidate is true and
// the key is found, the matching slot is also invalidated before return.
func (p *Page) FindLeafRef(key int32, doInvalidate bool) (heapPageID, slotID uint16, found bool, err error) {
	if !p.IsLeaf() {
		return 0, 0, false, errors.Wrap(errs.ErrWrongNodeKind, "find_leaf_ref on intermediate page")
	}

	n := int(p.slotCount())
	for i := 0; i < n; i++ {
		off := p.cellOffset(uint16(i))
		cellStart := p.buf[off:]
		if !cellValid(cellStart) {
			continue
		}
		lc := cell.DecodeLeaf(cellStart[1:])
		if lc.Key == key {
			if doInvalidate {
				markCellInvalid(cellStart)
				p.MarkDirty()
			}
			return lc.HeapPageID, lc.SlotID, true, nil
		}
	}
	return 0, 0, false, nil
}

// HasKey reports whether any valid leaf cell carries key.
func (p *Page) HasKey(key int32) (bool, error) {
	_, _, found, err := p.FindLeafRef(key, false)
	return found, err
}

// FindChildPage chooses the child whose stored key is the smallest value
// >= key; if none qualifies, it returns the rightmost-child page id.
// Intermediate cells are inserted in insertion order, not key order, so
// every call must sort from scratch.
func (p *Page) FindChildPage(key int32) (uint16, error) {
	entries, err := p.IntermediateEntries()
	if err != nil {
		return 0, errors.Wrap(err, "find_child_page")
	}
	for _, e := range entries {
		if e.Key >= key {
			return e.ChildPageID, nil
		}
	}
	return p.RightmostChild(), nil
}

// LeafEntry is one valid leaf cell, decoded for read-only inspection.
type LeafEntry struct {
	Key        int32
	HeapPageID uint16
	SlotID     uint16
}

// LeafEntries lists every valid leaf cell on the page, in slot order. It
// exists for read-only tooling (see package cursor's Inspect) that needs
// the whole cell set rather than a single-key lookup.
func (p *Page) LeafEntries() ([]LeafEntry, error) {
	if !p.IsLeaf() {
		return nil, errors.Wrap(errs.ErrWrongNodeKind, "leaf_entries on intermediate page")
	}
	n := int(p.slotCount())
	entries := make([]LeafEntry, 0, n)
	for i := 0; i < n; i++ {
		off := p.cellOffset(uint16(i))
		cellStart := p.buf[off:]
		if !cellValid(cellStart) {
			continue
		}
		lc := cell.DecodeLeaf(cellStart[1:])
		entries = append(entries, LeafEntry{Key: lc.Key, HeapPageID: lc.HeapPageID, SlotID: lc.SlotID})
	}
	return entries, nil
}

// IntermediateEntries lists every valid intermediate cell on the page,
// sorted ascending by key, mirroring the order FindChildPage scans in.
func (p *Page) IntermediateEntries() ([]IntermediateEntry, error) {
	if p.IsLeaf() {
		return nil, errors.Wrap(errs.ErrWrongNodeKind, "intermediate_entries on leaf page")
	}
	n := int(p.slotCount())
	entries := make([]IntermediateEntry, 0, n)
	for i := 0; i < n; i++ {
		off := p.cellOffset(uint16(i))
		cellStart := p.buf[off:]
		if !cellValid(cellStart) {
			continue
		}
		ic := cell.DecodeIntermediate(cellStart[1:])
		entries = append(entries, IntermediateEntry{Key: ic.Key, ChildPageID: ic.ChildPageID})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// IntermediateEntry is one valid intermediate cell, decoded for read-only
// inspection.
type IntermediateEntry struct {
	Key         int32
	ChildPageID uint16
}

// GetValueBytes returns a view over the value bytes of the record cell at
// slotID (a heap-file page only). Fails if the slot is invalid.
func (p *Page) GetValueBytes(slotID uint16) ([]byte, error) {
	off := p.cellOffset(slotID)
	cellStart := p.buf[off:]
	if !cellValid(cellStart) {
		return nil, errors.Wrapf(errs.ErrNotFound, "slot %d is invalid", slotID)
	}
	return cell.RecordValueBytes(cellStart[1:]), nil
}
