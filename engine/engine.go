// Package engine wires a table name to its on-disk (.index, .db) path pair
// and exposes insert/read/remove/update over one shared buffer pool,
// grounded in original_source/src/btreecursor.h's path-generation helper
// ("centralizes file naming under ./data/<table>.{index,db}") and its
// BTreeCursor arbitration-layer shape.
package engine

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"pagekv/bufferpool"
	"pagekv/cursor"
	"pagekv/pfile"
)

// DefaultFrameCount is the buffer pool size used when callers don't need
// to tune it, matching spec.md §3's default of 10 frames.
const DefaultFrameCount = 10

// Engine owns one buffer pool shared across every table it has opened, and
// the open index/heap file handles per table.
type Engine struct {
	dataDir string
	pool    *bufferpool.Pool
	tables  map[string]*table
	logger  *zap.Logger
}

type table struct {
	indexFile *pfile.File
	heapFile  *pfile.File
}

// Open creates an Engine rooted at dataDir (created if absent), with a
// buffer pool of frameCount frames shared across every table it opens.
func Open(dataDir string, frameCount int, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data directory %s", dataDir)
	}
	return &Engine{
		dataDir: dataDir,
		pool:    bufferpool.New(frameCount, logger),
		tables:  make(map[string]*table),
		logger:  logger,
	}, nil
}

func (e *Engine) paths(name string) (indexPath, heapPath string) {
	base := filepath.Join(e.dataDir, name)
	return base + ".index", base + ".db"
}

// table opens (or returns the already-open) index/heap file pair for name.
func (e *Engine) table(name string) (*table, error) {
	if t, ok := e.tables[name]; ok {
		return t, nil
	}
	indexPath, heapPath := e.paths(name)

	indexFile, err := pfile.Open(indexPath, e.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "open index file for table %s", name)
	}
	heapFile, err := pfile.Open(heapPath, e.logger)
	if err != nil {
		indexFile.Close()
		return nil, errors.Wrapf(err, "open heap file for table %s", name)
	}

	t := &table{indexFile: indexFile, heapFile: heapFile}
	e.tables[name] = t
	return t, nil
}

// Insert inserts (key, value) into table.
func (e *Engine) Insert(table string, key int32, value []byte) error {
	t, err := e.table(table)
	if err != nil {
		return err
	}
	return cursor.Insert(e.pool, t.indexFile, t.heapFile, key, value)
}

// Read returns the value stored for key in table.
func (e *Engine) Read(table string, key int32) ([]byte, error) {
	t, err := e.table(table)
	if err != nil {
		return nil, err
	}
	return cursor.Read(e.pool, t.indexFile, t.heapFile, key)
}

// Remove deletes key from table.
func (e *Engine) Remove(table string, key int32) error {
	t, err := e.table(table)
	if err != nil {
		return err
	}
	return cursor.Remove(e.pool, t.indexFile, t.heapFile, key)
}

// Update replaces the value stored for key in table.
func (e *Engine) Update(table string, key int32, value []byte) error {
	t, err := e.table(table)
	if err != nil {
		return err
	}
	return cursor.Update(e.pool, t.indexFile, t.heapFile, key, value)
}

// Flush writes back every dirty cached page across every open table.
func (e *Engine) Flush() error {
	return e.pool.Flush()
}

// Close flushes and closes every open table's file handles.
func (e *Engine) Close() error {
	if err := e.pool.Flush(); err != nil {
		return err
	}
	for name, t := range e.tables {
		if err := t.indexFile.Close(); err != nil {
			return errors.Wrapf(err, "close index file for table %s", name)
		}
		if err := t.heapFile.Close(); err != nil {
			return errors.Wrapf(err, "close heap file for table %s", name)
		}
	}
	return nil
}

// Pool exposes the shared buffer pool, for callers (e.g. Inspect) that need
// direct page access alongside table I/O.
func (e *Engine) Pool() *bufferpool.Pool { return e.pool }

// IndexFile returns the open index file handle for table, opening it if
// necessary.
func (e *Engine) IndexFile(name string) (*pfile.File, error) {
	t, err := e.table(name)
	if err != nil {
		return nil, err
	}
	return t.indexFile, nil
}
