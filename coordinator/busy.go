package coordinator

import "time"

// BusyContext is created when a write-requiring statement finds the
// process-wide write lock held by another connection, or when sleep(N)
// parks a connection (spec §3's "Busy context"). It carries no
// goroutine of its own; the Worker polls it from its single event loop.
type BusyContext struct {
	Deadline    time.Time
	Sleepable   bool // true for sleep(N); false for a write-lock wait
	Canceled    bool
	OnWriteLock bool
}

// NewWriteLockBusyContext parks a connection waiting on the write lock,
// timing out after timeout (0 = surface immediately as Busy, <0 = wait
// forever, spec §8 boundary behavior).
func NewWriteLockBusyContext(timeout time.Duration) *BusyContext {
	bc := &BusyContext{OnWriteLock: true, Sleepable: false}
	if timeout < 0 {
		bc.Deadline = time.Time{} // zero value never compares ready via Ready() below
	} else {
		bc.Deadline = time.Now().Add(timeout)
	}
	return bc
}

// NewSleepBusyContext parks a connection for sleep(N) seconds.
func NewSleepBusyContext(d time.Duration) *BusyContext {
	return &BusyContext{Sleepable: true, Deadline: time.Now().Add(d)}
}

// Ready reports whether bc should be resumed: now ≥ deadline, or (not
// sleepable and the write lock has become available to it), or canceled
// (spec §3's "Busy context ... Readiness" rule).
func (bc *BusyContext) Ready(now time.Time, writeLockAvailable bool) bool {
	if bc.Canceled {
		return true
	}
	if !bc.Deadline.IsZero() && !now.Before(bc.Deadline) {
		return true
	}
	if !bc.Sleepable && writeLockAvailable {
		return true
	}
	return false
}

// RemainingUntilDeadline returns the duration until bc's deadline, or a
// very large duration if it has none (infinite wait), used by the
// Worker to compute its minimum select timeout across all busy
// connections (spec §4.5).
func (bc *BusyContext) RemainingUntilDeadline(now time.Time) time.Duration {
	if bc.Deadline.IsZero() {
		return time.Hour // effectively unbounded; select timeout clamps elsewhere
	}
	d := bc.Deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
