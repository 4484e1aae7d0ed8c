//go:build linux

package sandbox

import (
	"os"
	"syscall"
)

// peakMemoryKB extracts the max resident set size from process rusage.
// Maxrss is reported in kilobytes on Linux.
func peakMemoryKB(state *os.ProcessState) int64 {
	if ru, ok := state.SysUsage().(*syscall.Rusage); ok && ru != nil {
		return ru.Maxrss
	}
	return 0
}
