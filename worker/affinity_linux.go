//go:build linux

package worker

import (
	"golang.org/x/sys/unix"
)

// pinToCPU best-effort pins the calling goroutine's underlying OS
// thread to cpu, so a Worker's event loop keeps warm cache lines across
// ticks instead of migrating between cores. Failure is non-fatal: a
// Worker runs correctly unpinned, this is purely a locality hint.
func pinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
