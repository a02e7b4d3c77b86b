// Package cursor implements the stateless B+-tree coordinator from
// spec.md §4.6: root-to-leaf descent over an index file, and record
// insert/read/remove/update against a heap file, both through one shared
// buffer pool. No operation pins or unpins frames — per spec.md §5 that is
// reserved for a future concurrency-aware pass, and bufferpool.Pool.GetPage
// itself never pins either (see its doc comment), so a page fetched here
// remains an eviction candidate the moment another page is requested.
package cursor

import (
	"github.com/pkg/errors"

	"pagekv/bufferpool"
	"pagekv/cell"
	"pagekv/errs"
	"pagekv/pfile"
)

// FindLeafPageID descends from the index file's root (page 0) to the leaf
// that would hold key.
func FindLeafPageID(pool *bufferpool.Pool, indexFile *pfile.File, key int32) (uint16, error) {
	pageID := uint16(0)
	for {
		pg, err := pool.GetPage(pageID, indexFile)
		if err != nil {
			return 0, errors.Wrapf(err, "descend to page %d", pageID)
		}
		if pg.IsLeaf() {
			return pageID, nil
		}
		child, err := pg.FindChildPage(key)
		if err != nil {
			return 0, errors.Wrapf(err, "find child of page %d", pageID)
		}
		if !indexFile.IsPageIDUsed(child) {
			return 0, errors.Wrapf(errs.ErrInvariant, "child page %d of page %d does not exist", child, pageID)
		}
		pageID = child
	}
}

// FindRecordLocation descends to the owning leaf and delegates to the
// leaf's find_leaf_ref. Intermediate nodes visited along the way are never
// invalidated, even when doInvalidate is true.
func FindRecordLocation(pool *bufferpool.Pool, indexFile *pfile.File, key int32, doInvalidate bool) (heapPageID, slotID uint16, found bool, err error) {
	leafID, err := FindLeafPageID(pool, indexFile, key)
	if err != nil {
		return 0, 0, false, err
	}
	leaf, err := pool.GetPage(leafID, indexFile)
	if err != nil {
		return 0, 0, false, errors.Wrapf(err, "fetch leaf page %d", leafID)
	}
	return leaf.FindLeafRef(key, doInvalidate)
}

// Read locates key and returns a copy of its value bytes.
func Read(pool *bufferpool.Pool, indexFile, heapFile *pfile.File, key int32) ([]byte, error) {
	heapPageID, slotID, found, err := FindRecordLocation(pool, indexFile, key, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(errs.ErrNotFound, "key %d", key)
	}
	heapPage, err := pool.GetPage(heapPageID, heapFile)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch heap page %d", heapPageID)
	}
	raw, err := heapPage.GetValueBytes(slotID)
	if err != nil {
		return nil, errors.Wrapf(err, "read slot %d of heap page %d", slotID, heapPageID)
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Remove invalidates the leaf cell and the underlying record cell for key.
// Fails with errs.ErrNotFound if key is absent.
func Remove(pool *bufferpool.Pool, indexFile, heapFile *pfile.File, key int32) error {
	heapPageID, slotID, found, err := FindRecordLocation(pool, indexFile, key, true)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(errs.ErrNotFound, "key %d", key)
	}
	heapPage, err := pool.GetPage(heapPageID, heapFile)
	if err != nil {
		return errors.Wrapf(err, "fetch heap page %d", heapPageID)
	}
	heapPage.InvalidateSlot(slotID)
	return nil
}

// Insert appends a record cell for (key, value) to the heap file, then
// inserts a leaf cell referencing it into the leaf that owns key. Fails
// with errs.ErrDuplicate if key is already present.
//
// If the heap append succeeds but the leaf insert subsequently fails (leaf
// full), the heap cell is left behind as garbage — this is spec.md §4.6's
// documented limitation, not a bug; there is no rollback or two-phase
// insert.
func Insert(pool *bufferpool.Pool, indexFile, heapFile *pfile.File, key int32, value []byte) error {
	_, _, found, err := FindRecordLocation(pool, indexFile, key, false)
	if err != nil {
		return err
	}
	if found {
		return errors.Wrapf(errs.ErrDuplicate, "key %d", key)
	}

	heapPageID, slotID, err := appendRecordCell(pool, heapFile, key, value)
	if err != nil {
		return err
	}

	leafID, err := FindLeafPageID(pool, indexFile, key)
	if err != nil {
		return err
	}
	leafPage, err := pool.GetPage(leafID, indexFile)
	if err != nil {
		return errors.Wrapf(err, "fetch leaf page %d", leafID)
	}
	if _, ok := leafPage.InsertCell(cell.Leaf{Key: key, HeapPageID: heapPageID, SlotID: slotID}); !ok {
		return errors.Wrapf(errs.ErrCapacity, "leaf page %d full, page split not implemented", leafID)
	}
	return nil
}

// Update is remove-then-insert, per spec.md §4.6 — deliberately coarse to
// keep the invariants simple rather than mutating a record cell in place.
func Update(pool *bufferpool.Pool, indexFile, heapFile *pfile.File, key int32, value []byte) error {
	if err := Remove(pool, indexFile, heapFile, key); err != nil {
		return err
	}
	return Insert(pool, indexFile, heapFile, key, value)
}

// appendRecordCell writes a record cell to the heap file's current maximum
// page; if that page is full, it allocates one more page and retries once.
func appendRecordCell(pool *bufferpool.Pool, heapFile *pfile.File, key int32, value []byte) (heapPageID, slotID uint16, err error) {
	pageID := heapFile.MaxPageID()

	heapPage, err := pool.GetPage(pageID, heapFile)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "fetch heap page %d", pageID)
	}
	if slot, ok := heapPage.InsertCell(cell.Record{Key: key, Value: value}); ok {
		return pageID, slot, nil
	}

	newPageID, err := heapFile.AllocateNextPageID()
	if err != nil {
		return 0, 0, err
	}
	newHeapPage, err := pool.GetPage(newPageID, heapFile)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "fetch heap page %d", newPageID)
	}
	slot, ok := newHeapPage.InsertCell(cell.Record{Key: key, Value: value})
	if !ok {
		return 0, 0, errors.Wrapf(errs.ErrCapacity, "new heap page %d also full", newPageID)
	}
	return newPageID, slot, nil
}
