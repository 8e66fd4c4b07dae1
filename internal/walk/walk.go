// Package walk implements the directory walker: a per-root concurrent
// producer of file and directory-close records,
// bounded by a counting semaphore, that honors exclusion, hidden-file
// and symlink policy and guarantees post-order emission of each
// directory's close record relative to its children.
package walk

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/zerox80/speicherwald/internal/classify"
	"github.com/zerox80/speicherwald/internal/exclude"
	"github.com/zerox80/speicherwald/internal/model"
	"github.com/zerox80/speicherwald/internal/pathutil"
	"github.com/zerox80/speicherwald/internal/probe"
)

// entryCancelCheckInterval bounds how often a directory-processing loop
// re-checks the cancellation signal while iterating entries.
const entryCancelCheckInterval = 64

// Options configures a single root's walk.
type Options struct {
	FollowSymlinks bool
	IncludeHidden  bool
	MaxDepth       *int
	Concurrency    int
}

// Sink is where the walker sends its output records. Records carries
// both file discoveries and directory closes on one ordered channel so
// a single consumer preserves their relative arrival order; Warnings is
// independent since warning order never affects a rollup. Both are
// owned by the caller so a single aggregator can fan in multiple roots.
type Sink struct {
	Records  chan<- model.WalkRecord
	Warnings chan<- model.WarningRecord
}

// Walker walks a single root.
type Walker struct {
	root    string
	opts    Options
	matcher *exclude.Matcher
	probe   *probe.Probe
	sink    Sink
	logger  *zap.Logger

	rootDevice uint64
	haveDevice bool

	framesMu sync.Mutex
	frames   map[string]*dirFrame
}

type dirFrame struct {
	parentPath string
	depth      int
	isRoot     bool
	listed     bool
	pending    int
}

// New constructs a Walker for one root.
func New(root string, opts Options, matcher *exclude.Matcher, p *probe.Probe, sink Sink, logger *zap.Logger) *Walker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Walker{
		root:    pathutil.Normalize(root),
		opts:    opts,
		matcher: matcher,
		probe:   p,
		sink:    sink,
		logger:  logger,
		frames:  make(map[string]*dirFrame),
	}
}

// Walk runs the walk to completion or until ctx is canceled. It returns
// ctx.Err() on cancellation and nil otherwise; per-entry failures never
// surface here, they become warnings.
func (w *Walker) Walk(ctx context.Context) error {
	if dev, ok := deviceID(w.root); ok {
		w.rootDevice = dev
		w.haveDevice = true
	}

	w.framesMu.Lock()
	w.frames[w.root] = &dirFrame{parentPath: "", depth: 0, isRoot: true}
	w.framesMu.Unlock()

	sem := semaphore.NewWeighted(int64(w.opts.Concurrency))
	var wg sync.WaitGroup

	var dispatch func(path, parentPath string, depth int, isRoot bool, ancestors map[string]bool)
	dispatch = func(path, parentPath string, depth int, isRoot bool, ancestors map[string]bool) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processDir(ctx, sem, path, parentPath, depth, isRoot, ancestors, dispatch)
		}()
	}

	dispatch(w.root, "", 0, true, nil)
	wg.Wait()

	return ctx.Err()
}

type dispatchFunc func(path, parentPath string, depth int, isRoot bool, ancestors map[string]bool)

func (w *Walker) processDir(
	ctx context.Context,
	sem *semaphore.Weighted,
	path, parentPath string,
	depth int,
	isRoot bool,
	ancestors map[string]bool,
	dispatch dispatchFunc,
) {
	if ctx.Err() != nil {
		return
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer sem.Release(1)

	if ctx.Err() != nil {
		return
	}

	entries, err := readDirLong(path)
	if err != nil {
		w.warn(ctx, path, codeForOpenError(err), err.Error())
		w.finishListing(ctx, path, 0)
		return
	}

	childCount := 0
	for i, de := range entries {
		if i%entryCancelCheckInterval == 0 && ctx.Err() != nil {
			return
		}

		childPath := filepath.Join(path, de.Name())
		if w.matcher.Excluded(childPath) {
			continue
		}

		if !w.opts.IncludeHidden && classify.IsHidden(de.Name(), childPath) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			w.warn(ctx, childPath, model.CodeIOError, err.Error())
			continue
		}

		kind := classify.Classify(info.Mode())

		if kind == classify.KindDirectory && w.haveDevice {
			if dev, ok := deviceID(childPath); ok && dev != w.rootDevice {
				// Mount point: treated as a zero-size leaf, not an error.
				w.emitFile(ctx, childPath, path, 0, 0)
				continue
			}
		}

		switch kind {
		case classify.KindDirectory:
			if w.opts.MaxDepth != nil && depth+1 > *w.opts.MaxDepth {
				w.warn(ctx, childPath, model.CodeDepthLimit, "max depth exceeded")
				continue
			}
			childCount++
			w.pushChild(path, childPath, depth+1)
			dispatch(childPath, path, depth+1, false, ancestors)

		case classify.KindReparsePoint:
			if w.opts.FollowSymlinks {
				canon, err := filepath.EvalSymlinks(childPath)
				if err != nil {
					w.warn(ctx, childPath, model.CodeIOError, err.Error())
					continue
				}
				if ancestors[canon] {
					w.warn(ctx, childPath, model.CodeReparseSkipped, "cycle detected, not following")
					continue
				}
				if w.opts.MaxDepth != nil && depth+1 > *w.opts.MaxDepth {
					w.warn(ctx, childPath, model.CodeDepthLimit, "max depth exceeded")
					continue
				}
				childCount++
				w.pushChild(path, childPath, depth+1)
				dispatch(childPath, path, depth+1, false, extendAncestors(ancestors, canon))
				continue
			}

			w.emitFile(ctx, childPath, path, 0, 0)
			if classify.LooksLikeDirectory(childPath) {
				w.warn(ctx, childPath, model.CodeReparseSkipped, "reparse point not followed")
			}

		case classify.KindFile, classify.KindOther:
			logical, allocated, perr := w.probeSize(childPath, info)
			if perr != nil {
				w.warn(ctx, childPath, model.CodeSizeProbeFail, perr.Error())
				logical, allocated = 0, 0
			}
			w.emitFile(ctx, childPath, path, logical, allocated)
		}
	}

	w.finishListing(ctx, path, childCount)
}

func (w *Walker) probeSize(path string, info os.FileInfo) (int64, int64, error) {
	res, err := w.probe.Probe(path, info)
	if err != nil {
		return 0, 0, err
	}
	return res.LogicalSize, res.AllocatedSize, nil
}

// pushChild registers childPath's frame and records that parentPath has
// one more subdirectory in flight. Must run before the child is
// dispatched, since the child goroutine assumes its frame already
// exists.
func (w *Walker) pushChild(parentPath, childPath string, depth int) {
	w.framesMu.Lock()
	w.frames[childPath] = &dirFrame{parentPath: parentPath, depth: depth}
	if pf, ok := w.frames[parentPath]; ok {
		pf.pending++
	}
	w.framesMu.Unlock()
}

// finishListing marks path as fully enumerated; if it already has no
// outstanding children it closes immediately, otherwise closure is
// deferred to the last child's completion.
func (w *Walker) finishListing(ctx context.Context, path string, childCount int) {
	w.framesMu.Lock()
	f := w.frames[path]
	f.listed = true
	ready := f.pending == 0
	w.framesMu.Unlock()

	if ready {
		w.closeDir(ctx, path)
	}
}

// closeDir emits the DirCloseRecord for path and, if its parent is now
// also ready, recurses up the chain. Never climbs past the root.
func (w *Walker) closeDir(ctx context.Context, path string) {
	for {
		w.framesMu.Lock()
		f := w.frames[path]
		parentPath := f.parentPath
		depth := f.depth
		isRoot := f.isRoot
		delete(w.frames, path)
		w.framesMu.Unlock()

		rec := model.WalkRecord{
			Kind:     model.WalkRecordDirClose,
			DirClose: model.DirCloseRecord{Path: path, ParentPath: parentPath, Depth: depth, IsRoot: isRoot},
		}
		select {
		case w.sink.Records <- rec:
		case <-ctx.Done():
			return
		}

		if isRoot {
			return
		}

		w.framesMu.Lock()
		pf, ok := w.frames[parentPath]
		if !ok {
			w.framesMu.Unlock()
			return
		}
		pf.pending--
		ready := pf.listed && pf.pending == 0
		w.framesMu.Unlock()

		if !ready {
			return
		}
		path = parentPath
	}
}

func (w *Walker) emitFile(ctx context.Context, path, parent string, logical, allocated int64) {
	rec := model.WalkRecord{
		Kind: model.WalkRecordFile,
		File: model.FileRecord{Path: path, ParentPath: parent, LogicalSize: logical, AllocatedSize: allocated},
	}
	select {
	case w.sink.Records <- rec:
	case <-ctx.Done():
	}
}

func (w *Walker) warn(ctx context.Context, path, code, message string) {
	if w.logger != nil {
		w.logger.Debug("scan warning", zap.String("path", path), zap.String("code", code))
	}
	select {
	case w.sink.Warnings <- model.WarningRecord{Path: path, Code: code, Message: message}:
	case <-ctx.Done():
	}
}

func extendAncestors(ancestors map[string]bool, id string) map[string]bool {
	next := make(map[string]bool, len(ancestors)+1)
	for k := range ancestors {
		next[k] = true
	}
	next[id] = true
	return next
}

func codeForOpenError(err error) string {
	if os.IsNotExist(err) {
		return model.CodeNotFound
	}
	if os.IsPermission(err) {
		return model.CodeAccessDenied
	}
	return model.CodeIOError
}

func readDirLong(path string) ([]os.DirEntry, error) {
	return os.ReadDir(longPath(path))
}
