// Package pathutil provides the path normalization shared by every
// component that keys a map or compares paths: the Walker's frame map,
// the Aggregator's ancestor-chain propagation, and root-path resolution
// at the CLI and API boundaries.
package pathutil

import "path/filepath"

// Normalize cleans path for use as a map key or comparison value: it
// collapses "." and "..", removes trailing slashes, and leaves relative
// paths relative.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// NormalizeAll normalizes each element of paths in place and returns it.
func NormalizeAll(paths []string) []string {
	for i, p := range paths {
		paths[i] = Normalize(p)
	}
	return paths
}
