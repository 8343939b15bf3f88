package worker

import (
	"testing"
	"time"

	"github.com/little-pan/sqlite-server/coordinator"
	"github.com/little-pan/sqlite-server/processor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestConn(id int64) *Conn {
	wl := coordinator.NewWriteLock()
	p := processor.New(id, 4096, 65536, wl, zerolog.Nop())
	return &Conn{
		Proc:   p,
		Send:   func([]byte) error { return nil },
		Cancel: func() {},
	}
}

func TestAdmit_RejectsOverCapacity(t *testing.T) {
	w := New("w0", Config{MaxConns: 1}, zerolog.Nop())
	w.admit(newTestConn(1))
	require.Len(t, w.active, 1)

	rejected := false
	c2 := newTestConn(2)
	c2.Send = func([]byte) error { rejected = true; return nil }
	w.admit(c2)
	require.Len(t, w.active, 1)
	require.True(t, rejected)
}

func TestRunBusyResume_ResumesReadyTask(t *testing.T) {
	w := New("w0", Config{MaxConns: 4}, zerolog.Nop())
	c := newTestConn(1)
	w.admit(c)
	w.busy[1] = c

	c.Proc.Busy = coordinator.NewSleepBusyContext(-time.Millisecond)
	ran := false
	c.Proc.QueryTask = func() error { ran = true; return nil }

	w.runBusyResume(time.Now())
	require.True(t, ran)
	require.Nil(t, c.Proc.Busy)
	require.NotContains(t, w.busy, int64(1))
}

func TestRunBusyResume_SkipsNotYetReady(t *testing.T) {
	w := New("w0", Config{MaxConns: 4}, zerolog.Nop())
	c := newTestConn(1)
	w.admit(c)
	w.busy[1] = c

	c.Proc.Busy = coordinator.NewSleepBusyContext(time.Hour)
	ran := false
	c.Proc.QueryTask = func() error { ran = true; return nil }

	w.runBusyResume(time.Now())
	require.False(t, ran)
	require.Contains(t, w.busy, int64(1))
}

func TestNextSelectTimeout_NoBusyUsesIdleInterval(t *testing.T) {
	w := New("w0", Config{MaxConns: 4, IdleCheckInterval: 5 * time.Second}, zerolog.Nop())
	got := w.nextSelectTimeout(time.Now(), 5*time.Second)
	require.Equal(t, 5*time.Second, got)
}

func TestSweepIdle_StopsTimedOutConnection(t *testing.T) {
	w := New("w0", Config{MaxConns: 4, SleepTimeout: time.Millisecond}, zerolog.Nop())
	c := newTestConn(1)
	w.admit(c)
	c.Proc.State = processor.StateSleep
	c.Proc.SinceAt = time.Now().Add(-time.Second)

	w.sweepIdle(time.Now())
	require.NotContains(t, w.active, int64(1))
}
