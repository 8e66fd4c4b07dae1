// Package scanopts defines the request-level scan options and the
// process-level scanner tunables, and validates/resolves both before a
// scan is allowed to start.
package scanopts

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
)

// Input errors, rejected before a scan is created.
var (
	ErrEmptyRoots    = errors.New("root_paths must be non-empty")
	ErrRootNotFound  = errors.New("root path does not exist")
	ErrRootNotDir    = errors.New("root path is not a directory")
	ErrInvalidGlob   = errors.New("invalid exclude glob pattern")
	ErrBadDepth      = errors.New("max_depth must be >= 0")
	ErrBadConcurrent = errors.New("concurrency must be >= 1")
)

// Options are the per-request scan options.
type Options struct {
	RootPaths        []string `json:"root_paths"`
	FollowSymlinks   bool     `json:"follow_symlinks"`
	IncludeHidden    bool     `json:"include_hidden"`
	MeasureLogical   bool     `json:"measure_logical"`
	MeasureAllocated bool     `json:"measure_allocated"`
	Excludes         []string `json:"excludes"`
	MaxDepth         *int     `json:"max_depth"`
	Concurrency      *int     `json:"concurrency"`
}

// DefaultOptions returns the default per-request options. RootPaths is
// left empty; callers must set it.
func DefaultOptions() Options {
	return Options{
		FollowSymlinks:   false,
		IncludeHidden:    true,
		MeasureLogical:   true,
		MeasureAllocated: true,
		Excludes:         nil,
		MaxDepth:         nil,
		Concurrency:      nil,
	}
}

// Validate rejects malformed options before a scan is created. It does
// not mutate o.
func (o Options) Validate() error {
	if len(o.RootPaths) == 0 {
		return ErrEmptyRoots
	}
	for _, root := range o.RootPaths {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrRootNotDir, root)
		}
	}
	for _, pattern := range o.Excludes {
		if _, err := doublestar.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidGlob, pattern, err)
		}
	}
	if o.MaxDepth != nil && *o.MaxDepth < 0 {
		return ErrBadDepth
	}
	if o.Concurrency != nil && *o.Concurrency < 1 {
		return ErrBadConcurrent
	}
	return nil
}

// Tunables are process-level scanner configuration, set once at process
// startup.
type Tunables struct {
	BatchSize          int
	FlushThreshold     int
	FlushIntervalMs    int
	DirConcurrency     int
	HandleLimit        *int
	ProgressIntervalMs int
	PlaceholderCeiling int
}

// DefaultTunables returns the default process-level tunables, with
// directory concurrency derived from the host's logical CPU count
// (roughly 75%, floor 2).
func DefaultTunables() Tunables {
	return Tunables{
		BatchSize:          4000,
		FlushThreshold:     8000,
		FlushIntervalMs:    750,
		DirConcurrency:     defaultDirConcurrency(),
		HandleLimit:        nil,
		ProgressIntervalMs: 500,
		PlaceholderCeiling: 999,
	}
}

func defaultDirConcurrency() int {
	n := (runtime.NumCPU()*3 + 3) / 4 // ceil(75%)
	if n < 2 {
		return 2
	}
	return n
}

// EffectiveConcurrency resolves the directory concurrency to use for a
// single scan: the request-level override, if present, clamped to the
// configured ceiling and the handle limit.
func EffectiveConcurrency(opts Options, tun Tunables) int {
	n := tun.DirConcurrency
	if opts.Concurrency != nil && *opts.Concurrency < n {
		n = *opts.Concurrency
	}
	if tun.HandleLimit != nil && *tun.HandleLimit < n {
		n = *tun.HandleLimit
	}
	if n < 1 {
		n = 1
	}
	return n
}

// RowsPerChunk computes how many rows of a given column count fit under
// the placeholder ceiling.
func RowsPerChunk(tun Tunables, columns int) int {
	if columns <= 0 {
		return 0
	}
	n := tun.PlaceholderCeiling / columns
	if n < 1 {
		return 1
	}
	return n
}
