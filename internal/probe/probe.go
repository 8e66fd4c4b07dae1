// Package probe reports, given a file path, its logical (apparent) size
// and its allocated (on-disk, cluster-rounded) size, backed by a small
// bounded LRU so repeat probes of the same path (revisits through
// symlinks, retries after a transient error) don't re-stat the file.
package probe

import (
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Result is an immutable snapshot of a single probe.
type Result struct {
	LogicalSize   int64
	AllocatedSize int64
}

// Probe measures file sizes with an LRU cache of recent results.
type Probe struct {
	cache            *lru.Cache[string, Result]
	measureLogical   bool
	measureAllocated bool
}

// defaultCacheSize is the LRU capacity, order of 10^4 entries.
const defaultCacheSize = 16384

// New creates a Probe. measureLogical/measureAllocated mirror the scan
// options of the same name: when measureAllocated is false, allocated
// size is copied from logical.
func New(measureLogical, measureAllocated bool) (*Probe, error) {
	c, err := lru.New[string, Result](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create size probe cache: %w", err)
	}
	return &Probe{cache: c, measureLogical: measureLogical, measureAllocated: measureAllocated}, nil
}

// Probe returns (logical, allocated) for path, using a cached snapshot
// when available. On failure it returns a probe-failed error; the
// caller is responsible for recording a warning and treating the file
// as zero-size.
func (p *Probe) Probe(path string, info os.FileInfo) (Result, error) {
	if cached, ok := p.cache.Get(path); ok {
		return cached, nil
	}

	var res Result
	if p.measureLogical {
		res.LogicalSize = info.Size()
	}
	if p.measureAllocated {
		allocated, err := allocatedSize(path, info)
		if err != nil {
			return Result{}, fmt.Errorf("probe allocated size for %s: %w", path, err)
		}
		res.AllocatedSize = allocated
	} else {
		res.AllocatedSize = res.LogicalSize
	}

	p.cache.Add(path, res)
	return res, nil
}

// Len reports the current number of cached entries, for tests/metrics.
func (p *Probe) Len() int {
	return p.cache.Len()
}
