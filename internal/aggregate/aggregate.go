// Package aggregate implements the aggregator: a single reactive
// accumulator that turns the directory walker's stream of file and
// directory-close records into node rows, batches them for the store
// adapter, and republishes progress onto the event bus.
//
// It relies on the walker's ordering guarantee that a directory's close
// record is only emitted after every one of its files and child
// directory-close records has already arrived, and that guarantee only
// holds if the aggregator consumes the walker's file and dir-close
// records from one ordered channel: the walker sends both kinds on
// Input.Records, so the aggregator never has to choose between two
// simultaneously-ready channels the way a two-channel select would.
// The aggregator itself does no expected/completed bookkeeping, it
// simply propagates sizes and counts eagerly up the ancestor chain as
// records arrive and reads a frame's totals the moment its own close
// record shows up.
package aggregate

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/zerox80/speicherwald/internal/events"
	"github.com/zerox80/speicherwald/internal/model"
	"github.com/zerox80/speicherwald/internal/scanopts"
)

// Input is the channel set fed by one or more Walkers. Records carries
// both file and directory-close records on one channel, preserving the
// Walker's emission order; Warnings is independent.
type Input struct {
	Records  <-chan model.WalkRecord
	Warnings <-chan model.WarningRecord
}

// Output receives the aggregator's finished rows, ready for the store
// adapter. Flushes happen at flush_threshold row count, or once at
// least batch_size rows are pending and flush_interval_ms has passed
// since the last flush.
type Output struct {
	Nodes    []model.Node
	Files    []model.File
	Warnings []model.Warning
}

// Flusher persists one batch. Implemented by the Store Adapter.
type Flusher interface {
	Flush(Output) error
}

type frame struct {
	parentPath string
	depth      int
	isRoot     bool
	logical    int64
	allocated  int64
	fileCount  int64
	dirCount   int64
}

// Aggregator consumes an Input until its channels close, emitting
// batches to a Flusher and progress events to a Bus.
type Aggregator struct {
	in      Input
	flusher Flusher
	bus     *events.Bus
	scanID  string
	tun     scanopts.Tunables
	logger  *zap.Logger

	roots  map[string]bool
	frames map[string]*frame

	pendingNodes    []model.Node
	pendingFiles    []model.File
	pendingWarnings []model.Warning

	totals        model.Totals
	lastPublished time.Time
	lastFlushAt   time.Time
}

// New constructs an Aggregator for one scan. roots is the set of clean,
// absolute root paths the Walkers are scanning; propagation stops the
// moment it reaches one of them.
func New(in Input, flusher Flusher, bus *events.Bus, scanID string, roots []string, tun scanopts.Tunables, logger *zap.Logger) *Aggregator {
	rootSet := make(map[string]bool, len(roots))
	for _, r := range roots {
		rootSet[filepath.Clean(r)] = true
	}
	return &Aggregator{
		in:      in,
		flusher: flusher,
		bus:     bus,
		scanID:  scanID,
		tun:     tun,
		logger:  logger,
		roots:   rootSet,
		frames:  make(map[string]*frame),
	}
}

// Run drains the Input to completion. It returns once both Records and
// Warnings are closed, flushing any remaining batch first.
func (a *Aggregator) Run(ctx context.Context) (model.Totals, error) {
	a.lastPublished = time.Time{}
	a.lastFlushAt = timeNow()

	recordsCh := a.in.Records
	warnCh := a.in.Warnings

	for recordsCh != nil || warnCh != nil {
		select {
		case rec, ok := <-recordsCh:
			if !ok {
				recordsCh = nil
				continue
			}
			switch rec.Kind {
			case model.WalkRecordFile:
				a.handleFile(rec.File)
			case model.WalkRecordDirClose:
				a.handleDirClose(rec.DirClose)
			}

		case w, ok := <-warnCh:
			if !ok {
				warnCh = nil
				continue
			}
			a.handleWarning(w)

		case <-ctx.Done():
			return a.totals, ctx.Err()
		}

		if a.shouldFlush() {
			if err := a.flush(); err != nil {
				return a.totals, err
			}
		}
		a.maybePublishProgress(false)
	}

	if err := a.flush(); err != nil {
		return a.totals, err
	}
	a.maybePublishProgress(true)
	return a.totals, nil
}

func (a *Aggregator) getOrCreate(path string) *frame {
	f, ok := a.frames[path]
	if !ok {
		f = &frame{parentPath: filepath.Dir(path), isRoot: a.roots[path]}
		a.frames[path] = f
	}
	return f
}

func (a *Aggregator) handleFile(rec model.FileRecord) {
	parent := rec.ParentPath
	a.pendingFiles = append(a.pendingFiles, model.File{
		ScanID:        a.scanID,
		Path:          rec.Path,
		ParentPath:    &parent,
		LogicalSize:   rec.LogicalSize,
		AllocatedSize: rec.AllocatedSize,
	})
	a.totals.LogicalSize += rec.LogicalSize
	a.totals.AllocatedSize += rec.AllocatedSize
	a.totals.FileCount++
	a.propagate(parent, rec.LogicalSize, rec.AllocatedSize, 1, 0)
}

func (a *Aggregator) handleDirClose(rec model.DirCloseRecord) {
	f := a.getOrCreate(rec.Path)
	f.depth = rec.Depth
	f.isRoot = rec.IsRoot

	var parentPath *string
	if !rec.IsRoot {
		p := rec.ParentPath
		parentPath = &p
	}

	a.pendingNodes = append(a.pendingNodes, model.Node{
		ScanID:        a.scanID,
		Path:          rec.Path,
		ParentPath:    parentPath,
		Depth:         f.depth,
		IsDir:         true,
		LogicalSize:   f.logical,
		AllocatedSize: f.allocated,
		FileCount:     f.fileCount,
		DirCount:      f.dirCount,
	})
	a.totals.DirCount++

	delete(a.frames, rec.Path)

	if !rec.IsRoot {
		a.propagate(rec.ParentPath, 0, 0, 0, 1)
	}
}

func (a *Aggregator) handleWarning(rec model.WarningRecord) {
	a.pendingWarnings = append(a.pendingWarnings, model.Warning{
		ScanID:    a.scanID,
		Path:      rec.Path,
		Code:      rec.Code,
		Message:   rec.Message,
		CreatedAt: timeNow(),
	})
	a.totals.WarningCount++

	a.bus.Publish(events.Event{
		Type:   events.KindWarning,
		ScanID: a.scanID,
		At:     timeNow(),
		Payload: events.WarningPayload{
			Path:    rec.Path,
			Code:    rec.Code,
			Message: rec.Message,
		},
	})
}

// propagate adds the given deltas to path and every ancestor up to and
// including the relevant scan root, creating frames lazily for
// directories not yet closed.
func (a *Aggregator) propagate(path string, addLogical, addAllocated, addFiles, addDirs int64) {
	for {
		f := a.getOrCreate(path)
		f.logical += addLogical
		f.allocated += addAllocated
		f.fileCount += addFiles
		f.dirCount += addDirs

		if f.isRoot || a.roots[path] {
			return
		}
		parent := filepath.Dir(path)
		if parent == path {
			return
		}
		path = parent
	}
}

func (a *Aggregator) shouldFlush() bool {
	rows := len(a.pendingNodes) + len(a.pendingFiles) + len(a.pendingWarnings)
	if rows >= a.tun.FlushThreshold {
		return true
	}
	if rows > 0 && rows >= a.tun.BatchSize && time.Since(a.lastFlush()) >= time.Duration(a.tun.FlushIntervalMs)*time.Millisecond {
		return true
	}
	return false
}

func (a *Aggregator) lastFlush() time.Time {
	if a.lastFlushAt.IsZero() {
		return time.Now()
	}
	return a.lastFlushAt
}

func (a *Aggregator) flush() error {
	if len(a.pendingNodes) == 0 && len(a.pendingFiles) == 0 && len(a.pendingWarnings) == 0 {
		a.lastFlushAt = timeNow()
		return nil
	}
	out := Output{Nodes: a.pendingNodes, Files: a.pendingFiles, Warnings: a.pendingWarnings}
	if err := a.flusher.Flush(out); err != nil {
		return err
	}
	a.pendingNodes = nil
	a.pendingFiles = nil
	a.pendingWarnings = nil
	a.lastFlushAt = timeNow()
	return nil
}

func (a *Aggregator) maybePublishProgress(force bool) {
	interval := time.Duration(a.tun.ProgressIntervalMs) * time.Millisecond
	if !force && time.Since(a.lastPublished) < interval {
		return
	}
	a.lastPublished = timeNow()
	a.bus.Publish(events.Event{
		Type:   events.KindProgress,
		ScanID: a.scanID,
		At:     a.lastPublished,
		Payload: events.ProgressPayload{
			Dirs:         a.totals.DirCount,
			Files:        a.totals.FileCount,
			BytesLogical: a.totals.LogicalSize,
			BytesAlloc:   a.totals.AllocatedSize,
			WarningCount: a.totals.WarningCount,
		},
	})
}

func timeNow() time.Time { return time.Now() }
