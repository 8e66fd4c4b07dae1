//go:build windows

package probe

import (
	"os"
	"syscall"
	"unsafe"
)

var (
	modkernel32              = syscall.NewLazyDLL("kernel32.dll")
	procGetCompressedFileSize = modkernel32.NewProc("GetCompressedFileSizeW")
)

// allocatedSize uses GetCompressedFileSizeW, which reports the real
// on-disk allocation for compressed and sparse files as well as plain
// ones.
func allocatedSize(path string, info os.FileInfo) (int64, error) {
	ptr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return info.Size(), err
	}

	var highOrder uint32
	lowOrder, _, callErr := procGetCompressedFileSize.Call(
		uintptr(unsafe.Pointer(ptr)),
		uintptr(unsafe.Pointer(&highOrder)),
	)
	const invalidFileSize = 0xFFFFFFFF
	if lowOrder == invalidFileSize && callErr != syscall.Errno(0) {
		return 0, callErr
	}

	return int64(highOrder)<<32 | int64(uint32(lowOrder)), nil
}
