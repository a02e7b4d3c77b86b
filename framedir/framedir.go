// Package framedir tracks which frame of the buffer pool's shared buffer
// holds which (page_id, file) pair, along with pin counts, grounded in
// original_source/src/frame_directory.h's FrameDirectory.
//
// Eviction victim selection is FIFO by slot index: the first occupied,
// unpinned frame scanning from frame 0 upward. This is deliberately the
// simplest correct policy and is meant to be swapped for LRU or clock
// later without touching callers — see FindVictimFrame.
package framedir

import (
	"go.uber.org/zap"

	"pagekv/errs"

	"github.com/pkg/errors"
)

// Key identifies a page within a specific file.
type Key struct {
	PageID uint16
	Path   string
}

type frame struct {
	occupied bool
	key      Key
	pinCount int
}

// Directory owns the bookkeeping for a fixed number of frames. It holds no
// page bytes itself — callers manage the matching byte buffer by frame id.
type Directory struct {
	frames   []frame
	byKey    map[Key]int
	freeList []int
	logger   *zap.Logger
}

// New creates a Directory managing frameCount frames, all initially free.
func New(frameCount int, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Directory{
		frames: make([]frame, frameCount),
		byKey:  make(map[Key]int, frameCount),
		logger: logger,
	}
	for i := frameCount - 1; i >= 0; i-- {
		d.freeList = append(d.freeList, i)
	}
	return d
}

// Capacity returns the total number of frames managed.
func (d *Directory) Capacity() int { return len(d.frames) }

// ClaimFreeFrame pops a free frame id, if any remain.
func (d *Directory) ClaimFreeFrame() (frameID int, ok bool) {
	if len(d.freeList) == 0 {
		return 0, false
	}
	n := len(d.freeList) - 1
	id := d.freeList[n]
	d.freeList = d.freeList[:n]
	return id, true
}

// FindFrameByPage returns the frame currently holding key, if any.
func (d *Directory) FindFrameByPage(key Key) (frameID int, ok bool) {
	id, ok := d.byKey[key]
	return id, ok
}

// RegisterPage marks frameID as holding key with a zero pin count.
func (d *Directory) RegisterPage(frameID int, key Key) {
	d.frames[frameID] = frame{occupied: true, key: key}
	d.byKey[key] = frameID
}

// UnregisterPage clears frameID and returns it to the free list.
func (d *Directory) UnregisterPage(frameID int) {
	f := d.frames[frameID]
	if f.occupied {
		delete(d.byKey, f.key)
	}
	d.frames[frameID] = frame{}
	d.freeList = append(d.freeList, frameID)
}

// Pin increments frameID's pin count.
func (d *Directory) Pin(frameID int) {
	d.frames[frameID].pinCount++
}

// Unpin decrements frameID's pin count, floored at zero.
func (d *Directory) Unpin(frameID int) {
	if d.frames[frameID].pinCount > 0 {
		d.frames[frameID].pinCount--
	}
}

// IsPinned reports whether frameID has at least one outstanding pin.
func (d *Directory) IsPinned(frameID int) bool {
	return d.frames[frameID].pinCount > 0
}

// FindVictimFrame scans frames in slot order and returns the first
// occupied, unpinned one. Returns errs.ErrInvariant if every frame is
// either free (callers should have used ClaimFreeFrame) or pinned.
func (d *Directory) FindVictimFrame() (int, error) {
	for i, f := range d.frames {
		if f.occupied && f.pinCount == 0 {
			return i, nil
		}
	}
	d.logger.Warn("no eviction victim available, all frames pinned or free")
	return 0, errors.Wrap(errs.ErrInvariant, "no unpinned frame available for eviction")
}

// KeyOf returns the (page_id, file) key currently held by frameID.
func (d *Directory) KeyOf(frameID int) (Key, bool) {
	f := d.frames[frameID]
	return f.key, f.occupied
}
