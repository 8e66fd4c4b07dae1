//go:build linux || darwin

package walk

import (
	"os"
	"syscall"
)

// deviceID returns the device identifier path resides on, used by the
// cross-device guard to detect mount-point boundaries.
func deviceID(path string) (uint64, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(stat.Dev), true
}

// longPath is a no-op on POSIX systems, which have no MAX_PATH ceiling
// requiring an extended-length prefix.
func longPath(path string) string { return path }
