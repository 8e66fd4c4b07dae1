//go:build linux || darwin

package classify

import "strings"

// IsHidden reports whether name is hidden by POSIX convention (a
// leading dot). There is no separate "system" attribute on these
// platforms.
func IsHidden(name string, _ string) bool {
	return strings.HasPrefix(name, ".")
}
