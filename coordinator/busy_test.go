package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusyContext_ReadyWhenDeadlinePassed(t *testing.T) {
	bc := NewWriteLockBusyContext(10 * time.Millisecond)
	require.False(t, bc.Ready(time.Now(), false))
	require.True(t, bc.Ready(time.Now().Add(20*time.Millisecond), false))
}

func TestBusyContext_ReadyWhenWriteLockAvailable(t *testing.T) {
	bc := NewWriteLockBusyContext(time.Hour)
	require.True(t, bc.Ready(time.Now(), true))
}

func TestBusyContext_SleepableIgnoresWriteLock(t *testing.T) {
	bc := NewSleepBusyContext(time.Hour)
	require.False(t, bc.Ready(time.Now(), true))
}

func TestBusyContext_CanceledIsAlwaysReady(t *testing.T) {
	bc := NewWriteLockBusyContext(time.Hour)
	bc.Canceled = true
	require.True(t, bc.Ready(time.Now(), false))
}
