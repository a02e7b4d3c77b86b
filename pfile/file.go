// Package pfile implements the paged-file abstraction from spec.md §3: a
// 256-byte header (whose first two bytes hold max_page_id, little-endian)
// followed by fixed 4096-byte pages at HeaderSize + page_id*page.Size.
//
// File descriptors are shared process-wide per absolute path (see
// registry.go), grounded in original_source/src/file.cpp's stream_cache_,
// so two File values opened against the same path observe the same
// underlying os.File and neither closes it out from under the other.
package pfile

import (
	"encoding/binary"
	"io"
	"math"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"pagekv/errs"
	"pagekv/page"
)

const (
	// HeaderSize is the fixed on-disk header size preceding page 0.
	HeaderSize = 256

	maxPageIDOffset = 0
)

// File is a handle onto one paged data file. All page-level I/O and
// max_page_id bookkeeping goes through it; it does not know about frames
// or pinning (that's package framedir/bufferpool).
//
// Page 0 is always considered used, even on a brand-new file: max_page_id
// defaults to 0 and is_page_id_used(page_id) is simply page_id <= max_page_id,
// matching original_source/src/file.h's File(path, max_page_id=0) and
// spec.md §8 property 13.
type File struct {
	mu     sync.Mutex
	path   string
	sf     *sharedFile
	maxID  uint16
	logger *zap.Logger
}

// Open opens (creating if absent) the paged file at path and loads its
// header. logger may be nil, in which case a no-op logger is used.
func Open(path string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve path %s", path)
	}

	sf, err := acquireShared(abs)
	if err != nil {
		return nil, err
	}

	f := &File{path: abs, sf: sf, logger: logger}

	info, err := sf.f.Stat()
	if err != nil {
		sf.release()
		return nil, errors.Wrapf(err, "stat %s", abs)
	}

	if info.Size() == 0 {
		logger.Info("creating new paged file", zap.String("path", abs))
		if err := f.writeHeaderLocked(0); err != nil {
			sf.release()
			return nil, err
		}
		f.maxID = 0
		return f, nil
	}

	header := make([]byte, HeaderSize)
	if _, err := sf.f.ReadAt(header, 0); err != nil {
		sf.release()
		return nil, errors.Wrapf(err, "read header of %s", abs)
	}
	f.maxID = binary.LittleEndian.Uint16(header[maxPageIDOffset : maxPageIDOffset+2])
	logger.Info("opened existing paged file",
		zap.String("path", abs),
		zap.Uint16("max_page_id", f.maxID),
		zap.String("size", humanize.Bytes(uint64(info.Size()))),
	)
	return f, nil
}

// Path returns the absolute path this File was opened against.
func (f *File) Path() string { return f.path }

func (f *File) writeHeaderLocked(maxID uint16) error {
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(header[maxPageIDOffset:maxPageIDOffset+2], maxID)
	if _, err := f.sf.f.WriteAt(header, 0); err != nil {
		return errors.Wrapf(err, "write header of %s", f.path)
	}
	return nil
}

// IsPageIDUsed reports whether pageID has ever been allocated in this
// file: pageID <= max_page_id. Page 0 is always used, even before any
// explicit allocation, since max_page_id defaults to 0.
func (f *File) IsPageIDUsed(pageID uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pageID <= f.maxID
}

// MaxPageID returns the highest page id ever allocated.
func (f *File) MaxPageID() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxID
}

// AllocateNextPageID reserves the next page id and persists max_page_id to
// the header immediately (SPEC_FULL.md §E.1; original_source's
// allocateNextPageId only bumps the counter in memory), so a reopen after
// allocation sees the new max_page_id. Since page 0 is always
// considered used, the first call on a brand-new file returns 1.
func (f *File) AllocateNextPageID() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.maxID == math.MaxUint16 {
		return 0, errors.Wrap(errs.ErrInvariant, "page id overflow")
	}
	next := f.maxID + 1

	if err := f.writeHeaderLocked(next); err != nil {
		return 0, err
	}
	f.maxID = next
	return next, nil
}

func pageOffset(pageID uint16) int64 {
	return int64(HeaderSize) + int64(pageID)*int64(page.Size)
}

// ReadPage loads page pageID into buf, which must be page.Size bytes. A
// used page id (per IsPageIDUsed) may still have no bytes physically on
// disk yet — page 0 of a brand-new file is the standing example, since
// max_page_id defaults to 0 before anything was ever written there. In
// that case ReadPage zero-fills whatever the file doesn't yet contain
// rather than failing, so page.NeedsInit sees the all-zero buffer it
// expects from an unformatted page.
func (f *File) ReadPage(pageID uint16, buf []byte) error {
	if len(buf) != page.Size {
		return errors.Errorf("read buffer must be %d bytes, got %d", page.Size, len(buf))
	}
	n, err := f.sf.f.ReadAt(buf, pageOffset(pageID))
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "read page %d of %s", pageID, f.path)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage persists buf (page.Size bytes) as pageID.
func (f *File) WritePage(pageID uint16, buf []byte) error {
	if len(buf) != page.Size {
		return errors.Errorf("write buffer must be %d bytes, got %d", page.Size, len(buf))
	}
	if _, err := f.sf.f.WriteAt(buf, pageOffset(pageID)); err != nil {
		return errors.Wrapf(err, "write page %d of %s", pageID, f.path)
	}
	return nil
}

// Sync flushes pending writes to stable storage.
func (f *File) Sync() error {
	if err := f.sf.f.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", f.path)
	}
	return nil
}

// Close drops this handle's reference on the shared descriptor, closing
// it once every other File for this path has also closed.
func (f *File) Close() error {
	f.logger.Info("closing paged file", zap.String("path", f.path))
	return f.sf.release()
}
