//go:build windows

package walk

import (
	"path/filepath"
	"strings"
	"syscall"
)

// deviceID returns the volume serial number path resides on.
func deviceID(path string) (uint64, bool) {
	ptr, err := syscall.UTF16PtrFromString(longPath(path))
	if err != nil {
		return 0, false
	}
	h, err := syscall.CreateFile(
		ptr,
		0,
		syscall.FILE_SHARE_READ|syscall.FILE_SHARE_WRITE|syscall.FILE_SHARE_DELETE,
		nil,
		syscall.OPEN_EXISTING,
		syscall.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return 0, false
	}
	defer syscall.CloseHandle(h)

	var info syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(h, &info); err != nil {
		return 0, false
	}
	return uint64(info.VolumeSerialNumber), true
}

// longPath prepends the extended-length prefix for absolute paths so
// walks are not bounded by MAX_PATH.
func longPath(path string) string {
	if strings.HasPrefix(path, `\\?\`) || !filepath.IsAbs(path) {
		return path
	}
	return `\\?\` + path
}
