//go:build windows

package classify

import "syscall"

const (
	fileAttributeHidden = 0x2
	fileAttributeSystem = 0x4
)

// IsHidden reports whether the entry at fullPath carries the Windows
// hidden or system attribute. name is unused on this platform but kept
// for symmetry with the POSIX dot-file check.
func IsHidden(_ string, fullPath string) bool {
	ptr, err := syscall.UTF16PtrFromString(fullPath)
	if err != nil {
		return false
	}
	attrs, err := syscall.GetFileAttributes(ptr)
	if err != nil {
		return false
	}
	return attrs&(fileAttributeHidden|fileAttributeSystem) != 0
}
