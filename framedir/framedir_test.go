package framedir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pagekv/errs"
)

func TestClaimFreeFrameExhaustsCapacity(t *testing.T) {
	d := New(2, nil)

	f0, ok := d.ClaimFreeFrame()
	require.True(t, ok)
	f1, ok := d.ClaimFreeFrame()
	require.True(t, ok)
	require.NotEqual(t, f0, f1)

	_, ok = d.ClaimFreeFrame()
	require.False(t, ok)
}

func TestRegisterAndFindFrameByPage(t *testing.T) {
	d := New(2, nil)
	frameID, _ := d.ClaimFreeFrame()
	key := Key{PageID: 3, Path: "a.index"}
	d.RegisterPage(frameID, key)

	got, ok := d.FindFrameByPage(key)
	require.True(t, ok)
	require.Equal(t, frameID, got)
}

func TestUnregisterReturnsFrameToFreeList(t *testing.T) {
	d := New(1, nil)
	frameID, _ := d.ClaimFreeFrame()
	key := Key{PageID: 1, Path: "a.index"}
	d.RegisterPage(frameID, key)

	d.UnregisterPage(frameID)
	_, ok := d.FindFrameByPage(key)
	require.False(t, ok)

	reclaimed, ok := d.ClaimFreeFrame()
	require.True(t, ok)
	require.Equal(t, frameID, reclaimed)
}

func TestPinBlocksEviction(t *testing.T) {
	d := New(1, nil)
	frameID, _ := d.ClaimFreeFrame()
	d.RegisterPage(frameID, Key{PageID: 1, Path: "a.index"})
	d.Pin(frameID)

	_, err := d.FindVictimFrame()
	require.ErrorIs(t, err, errs.ErrInvariant)

	d.Unpin(frameID)
	victim, err := d.FindVictimFrame()
	require.NoError(t, err)
	require.Equal(t, frameID, victim)
}

func TestFindVictimFrameIsFIFOBySlotIndex(t *testing.T) {
	d := New(3, nil)
	f0, _ := d.ClaimFreeFrame()
	f1, _ := d.ClaimFreeFrame()
	d.RegisterPage(f0, Key{PageID: 0, Path: "a.index"})
	d.RegisterPage(f1, Key{PageID: 1, Path: "a.index"})

	victim, err := d.FindVictimFrame()
	require.NoError(t, err)
	require.Equal(t, minInt(f0, f1), victim, "victim must be the lowest occupied, unpinned slot")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
