// Package config binds scanopts.Options and scanopts.Tunables to cobra
// flags, shared by the serve and scan commands so both resolve the same
// two-layer option model from their respective flag sets.
package config

import (
	"github.com/spf13/cobra"

	"github.com/zerox80/speicherwald/internal/scanopts"
)

// ScanFlags holds the raw flag destinations for per-request scan
// options, bound once per command and resolved into scanopts.Options
// after parsing.
type ScanFlags struct {
	followSymlinks   bool
	includeHidden    bool
	measureLogical   bool
	measureAllocated bool
	excludes         []string
	maxDepth         int
	concurrency      int
}

// RegisterScanFlags adds the per-request scan option flags to cmd and
// returns a handle used to resolve them after Execute parses args.
func RegisterScanFlags(cmd *cobra.Command) *ScanFlags {
	f := &ScanFlags{}
	d := scanopts.DefaultOptions()

	cmd.Flags().BoolVar(&f.followSymlinks, "follow-symlinks", d.FollowSymlinks, "descend into symlinked/junction directories")
	cmd.Flags().BoolVar(&f.includeHidden, "include-hidden", d.IncludeHidden, "include hidden and system entries")
	cmd.Flags().BoolVar(&f.measureLogical, "measure-logical", d.MeasureLogical, "measure logical (apparent) size")
	cmd.Flags().BoolVar(&f.measureAllocated, "measure-allocated", d.MeasureAllocated, "measure allocated (on-disk) size")
	cmd.Flags().StringSliceVar(&f.excludes, "exclude", nil, "glob pattern to exclude (repeatable)")
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", -1, "maximum descent depth, -1 for unlimited")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "directory concurrency override, 0 for the server default")
	return f
}

// Resolve builds a scanopts.Options for roots from the parsed flags.
func (f *ScanFlags) Resolve(roots []string) scanopts.Options {
	opts := scanopts.Options{
		RootPaths:        roots,
		FollowSymlinks:   f.followSymlinks,
		IncludeHidden:    f.includeHidden,
		MeasureLogical:   f.measureLogical,
		MeasureAllocated: f.measureAllocated,
		Excludes:         f.excludes,
	}
	if f.maxDepth >= 0 {
		opts.MaxDepth = &f.maxDepth
	}
	if f.concurrency > 0 {
		opts.Concurrency = &f.concurrency
	}
	return opts
}

// TunableFlags holds the raw flag destinations for process-level
// tunables, bound on the server command.
type TunableFlags struct {
	batchSize          int
	flushThreshold     int
	flushIntervalMs    int
	dirConcurrency     int
	handleLimit        int
	progressIntervalMs int
	placeholderCeiling int
}

// RegisterTunableFlags adds the scanner-tunable flags to cmd.
func RegisterTunableFlags(cmd *cobra.Command) *TunableFlags {
	f := &TunableFlags{}
	d := scanopts.DefaultTunables()

	cmd.Flags().IntVar(&f.batchSize, "batch-size", d.BatchSize, "aggregator batch size")
	cmd.Flags().IntVar(&f.flushThreshold, "flush-threshold", d.FlushThreshold, "row count that forces a flush")
	cmd.Flags().IntVar(&f.flushIntervalMs, "flush-interval-ms", d.FlushIntervalMs, "max milliseconds between flushes")
	cmd.Flags().IntVar(&f.dirConcurrency, "dir-concurrency", d.DirConcurrency, "default directory concurrency ceiling")
	cmd.Flags().IntVar(&f.handleLimit, "handle-limit", 0, "hard ceiling on concurrent open directories, 0 for none")
	cmd.Flags().IntVar(&f.progressIntervalMs, "progress-interval-ms", d.ProgressIntervalMs, "minimum milliseconds between progress events")
	cmd.Flags().IntVar(&f.placeholderCeiling, "placeholder-ceiling", d.PlaceholderCeiling, "max SQL placeholders per statement")
	return f
}

// Resolve builds a scanopts.Tunables from the parsed flags.
func (f *TunableFlags) Resolve() scanopts.Tunables {
	tun := scanopts.Tunables{
		BatchSize:          f.batchSize,
		FlushThreshold:     f.flushThreshold,
		FlushIntervalMs:    f.flushIntervalMs,
		DirConcurrency:     f.dirConcurrency,
		ProgressIntervalMs: f.progressIntervalMs,
		PlaceholderCeiling: f.placeholderCeiling,
	}
	if f.handleLimit > 0 {
		tun.HandleLimit = &f.handleLimit
	}
	return tun
}
