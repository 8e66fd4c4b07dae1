// Package exclude implements a compiled glob set, built once per scan,
// that decides whether an absolute path should be skipped before it is
// descended into or emitted.
package exclude

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher holds the compiled exclude patterns for a single scan.
// Matching is case-insensitive and supports "**" cross-segment
// wildcards via doublestar.
type Matcher struct {
	patterns []string
}

// New compiles the given glob patterns. Patterns were already validated
// by scanopts.Options.Validate before a scan starts, but compilation
// errors are still surfaced defensively.
func New(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		if _, err := doublestar.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, strings.ToLower(filepathToSlash(p)))
	}
	return m, nil
}

// Excluded reports whether path matches any configured pattern. Matching
// is performed against the full absolute path, case-insensitively.
func (m *Matcher) Excluded(path string) bool {
	if len(m.patterns) == 0 {
		return false
	}
	candidate := strings.ToLower(filepathToSlash(path))
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, candidate); ok {
			return true
		}
		// Also try matching any suffix starting at a path separator, so
		// "node_modules" or "*.tmp" match "/root/node_modules" or
		// "/home/user/file.tmp" as well as nested occurrences, without
		// requiring the caller to write a leading "**/" on every exclude.
		if ok, _ := doublestar.Match("**/"+p, candidate); ok {
			return true
		}
	}
	return false
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
