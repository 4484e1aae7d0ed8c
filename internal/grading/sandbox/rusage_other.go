//go:build !linux

package sandbox

import "os"

// peakMemoryKB is unavailable on non-Linux platforms; memory accounting
// falls back to zero and memory limits are not enforced locally.
func peakMemoryKB(_ *os.ProcessState) int64 {
	return 0
}
