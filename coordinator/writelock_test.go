package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteLock_TryLockSucceedsWhenFree(t *testing.T) {
	wl := NewWriteLock()
	require.True(t, wl.TryLock(1))
	require.Equal(t, int64(1), wl.HeldBy())
}

func TestWriteLock_TryLockFailsForOtherHolder(t *testing.T) {
	wl := NewWriteLock()
	require.True(t, wl.TryLock(1))
	require.False(t, wl.TryLock(2))
}

func TestWriteLock_ReacquireByHolderSucceeds(t *testing.T) {
	wl := NewWriteLock()
	require.True(t, wl.TryLock(1))
	require.True(t, wl.TryLock(1))
}

func TestWriteLock_UnlockByNonHolderIsNoop(t *testing.T) {
	wl := NewWriteLock()
	require.True(t, wl.TryLock(1))
	wl.Unlock(2)
	require.Equal(t, int64(1), wl.HeldBy())
}

func TestWriteLock_UnlockThenReacquireByOther(t *testing.T) {
	wl := NewWriteLock()
	require.True(t, wl.TryLock(1))
	wl.Unlock(1)
	require.Equal(t, int64(0), wl.HeldBy())
	require.True(t, wl.TryLock(2))
}
