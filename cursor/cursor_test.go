package cursor

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagekv/bufferpool"
	"pagekv/errs"
	"pagekv/pfile"
)

type harness struct {
	pool      *bufferpool.Pool
	indexFile *pfile.File
	heapFile  *pfile.File
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	indexFile, err := pfile.Open(filepath.Join(dir, "t.index"), nil)
	require.NoError(t, err)
	heapFile, err := pfile.Open(filepath.Join(dir, "t.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		indexFile.Close()
		heapFile.Close()
	})
	return &harness{
		pool:      bufferpool.New(10, nil),
		indexFile: indexFile,
		heapFile:  heapFile,
	}
}

func TestInsertThenReadRoundTrips(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, Insert(h.pool, h.indexFile, h.heapFile, 42, []byte("hello world")))

	got, err := Read(h.pool, h.indexFile, h.heapFile, 42)
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("hello world"), got))
}

func TestReadMissingKeyFails(t *testing.T) {
	h := newHarness(t)
	_, err := Read(h.pool, h.indexFile, h.heapFile, 1)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestInsertDuplicateFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, Insert(h.pool, h.indexFile, h.heapFile, 1, []byte("a")))
	err := Insert(h.pool, h.indexFile, h.heapFile, 1, []byte("b"))
	require.ErrorIs(t, err, errs.ErrDuplicate)
}

func TestInsertRemoveReadFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, Insert(h.pool, h.indexFile, h.heapFile, 99, []byte("transient")))
	require.NoError(t, Remove(h.pool, h.indexFile, h.heapFile, 99))

	_, err := Read(h.pool, h.indexFile, h.heapFile, 99)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRemoveMissingKeyFails(t *testing.T) {
	h := newHarness(t)
	err := Remove(h.pool, h.indexFile, h.heapFile, 7)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateReturnsNewValue(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, Insert(h.pool, h.indexFile, h.heapFile, 5, []byte("v1")))
	require.NoError(t, Update(h.pool, h.indexFile, h.heapFile, 5, []byte("v2")))

	got, err := Read(h.pool, h.indexFile, h.heapFile, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}

func TestTripleInsertAndRead(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		key   int32
		value string
	}{
		{1, "value1"},
		{2, "value-two"},
		{10, "value-003"},
	}
	for _, c := range cases {
		require.NoError(t, Insert(h.pool, h.indexFile, h.heapFile, c.key, []byte(c.value)))
	}
	for _, c := range cases {
		got, err := Read(h.pool, h.indexFile, h.heapFile, c.key)
		require.NoError(t, err)
		require.Equal(t, c.value, string(got))
	}
}

func TestCrossFileIsolation(t *testing.T) {
	dir := t.TempDir()
	indexA, err := pfile.Open(filepath.Join(dir, "a.index"), nil)
	require.NoError(t, err)
	heapA, err := pfile.Open(filepath.Join(dir, "a.db"), nil)
	require.NoError(t, err)
	indexB, err := pfile.Open(filepath.Join(dir, "b.index"), nil)
	require.NoError(t, err)
	heapB, err := pfile.Open(filepath.Join(dir, "b.db"), nil)
	require.NoError(t, err)
	defer indexA.Close()
	defer heapA.Close()
	defer indexB.Close()
	defer heapB.Close()

	pool := bufferpool.New(10, nil)
	require.NoError(t, Insert(pool, indexA, heapA, 1, []byte("from-a")))

	_, err = Read(pool, indexB, heapB, 1)
	require.ErrorIs(t, err, errs.ErrNotFound, "a key inserted in table a must not be visible in table b")
}

func TestInsertExhaustsLeafCapacity(t *testing.T) {
	h := newHarness(t)
	var inserted int
	var lastErr error
	for i := int32(0); i < 2000; i++ {
		if err := Insert(h.pool, h.indexFile, h.heapFile, i, []byte("v")); err != nil {
			lastErr = err
			break
		}
		inserted++
	}
	require.ErrorIs(t, lastErr, errs.ErrCapacity)
	require.Greater(t, inserted, 0)

	// Everything inserted before exhaustion must still read back correctly.
	for i := int32(0); i < int32(inserted); i++ {
		got, err := Read(h.pool, h.indexFile, h.heapFile, i)
		require.NoError(t, err)
		require.Equal(t, "v", string(got))
	}
}
