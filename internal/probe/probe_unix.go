//go:build linux || darwin

package probe

import (
	"os"
	"syscall"
)

// allocatedSize returns the cluster-rounded on-disk size via st_blocks.
// POSIX platforms have a real block count available from stat(2); the
// logical size is returned only when info carries no syscall.Stat_t.
func allocatedSize(_ string, info os.FileInfo) (int64, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.Size(), nil
	}
	return int64(stat.Blocks) * 512, nil
}
