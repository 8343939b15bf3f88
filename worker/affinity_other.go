//go:build !linux

package worker

// pinToCPU is a no-op outside linux; golang.org/x/sys/unix's affinity
// calls are linux-specific.
func pinToCPU(cpu int) error {
	return nil
}
