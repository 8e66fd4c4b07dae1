// Package job implements the job manager: scan lifecycle,
// concurrent-scan bookkeeping, cancellation and state transitions.
package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zerox80/speicherwald/internal/aggregate"
	"github.com/zerox80/speicherwald/internal/events"
	"github.com/zerox80/speicherwald/internal/exclude"
	"github.com/zerox80/speicherwald/internal/model"
	"github.com/zerox80/speicherwald/internal/pathutil"
	"github.com/zerox80/speicherwald/internal/probe"
	"github.com/zerox80/speicherwald/internal/scanopts"
	"github.com/zerox80/speicherwald/internal/store"
	"github.com/zerox80/speicherwald/internal/walk"
)

// storeFlusher adapts *store.Store to aggregate.Flusher, translating a
// flush batch into the three chunked inserts, all driven by a shared
// placeholder-clamped row-per-chunk figure.
type storeFlusher struct {
	st           *store.Store
	scanID       string
	rowsPerChunk func(columns int) int
}

func (f storeFlusher) Flush(out aggregate.Output) error {
	if err := f.st.InsertNodes(f.scanID, out.Nodes, f.rowsPerChunk(9)); err != nil {
		return err
	}
	if err := f.st.InsertFiles(f.scanID, out.Files, f.rowsPerChunk(5)); err != nil {
		return err
	}
	if err := f.st.InsertWarnings(f.scanID, out.Warnings, f.rowsPerChunk(5)); err != nil {
		return err
	}
	return nil
}

// run tracks one in-flight or finished scan.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the set of scans a process is running and serializes
// each scan's lifecycle transitions independently, so many scans can
// run concurrently without sharing state.
type Manager struct {
	st     *store.Store
	bus    *events.Bus
	tun    scanopts.Tunables
	logger *zap.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// New constructs a Manager backed by one Store and one Bus, shared
// across all scans it runs.
func New(st *store.Store, bus *events.Bus, tun scanopts.Tunables, logger *zap.Logger) *Manager {
	return &Manager{
		st:     st,
		bus:    bus,
		tun:    tun,
		logger: logger,
		runs:   make(map[string]*run),
	}
}

// Start validates opts, persists the initial running Scan row, and
// launches the walk/aggregate pipeline in the background. It returns
// the new scan's id immediately.
func (m *Manager) Start(ctx context.Context, opts scanopts.Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	startedAt := time.Now().UTC()

	if err := m.st.CreateScan(model.Scan{
		ID:        id,
		Status:    model.StatusRunning,
		RootPaths: opts.RootPaths,
		Options:   optsJSON,
		StartedAt: startedAt,
	}); err != nil {
		return "", fmt.Errorf("create scan: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, done: make(chan struct{})}
	m.mu.Lock()
	m.runs[id] = r
	m.mu.Unlock()

	m.bus.Publish(events.Event{
		Type:   events.KindStarted,
		ScanID: id,
		At:     startedAt,
		Payload: events.StartedPayload{
			Roots:     opts.RootPaths,
			StartedAt: startedAt,
		},
	})

	go m.run(runCtx, id, opts, r)

	return id, nil
}

func (m *Manager) run(ctx context.Context, id string, opts scanopts.Options, r *run) {
	defer close(r.done)

	status, totals, err := m.execute(ctx, id, opts)
	finishedAt := time.Now().UTC()

	if err != nil {
		m.logger.Error("scan failed", zap.String("scan_id", id), zap.Error(err))
		status = model.StatusFailed
	}

	if err := m.st.FinalizeScan(id, status, totals, finishedAt); err != nil {
		m.logger.Error("finalize scan failed", zap.String("scan_id", id), zap.Error(err))
	}

	m.mu.Lock()
	delete(m.runs, id)
	m.mu.Unlock()

	if status == model.StatusCanceled {
		m.bus.Publish(events.Event{Type: events.KindCanceled, ScanID: id, At: finishedAt, Payload: events.CanceledPayload{FinishedAt: finishedAt}})
		return
	}
	m.bus.Publish(events.Event{
		Type:   events.KindFinished,
		ScanID: id,
		At:     finishedAt,
		Payload: events.FinishedPayload{
			Status: string(status),
			Totals: events.Totals{
				LogicalSize:   totals.LogicalSize,
				AllocatedSize: totals.AllocatedSize,
				DirCount:      totals.DirCount,
				FileCount:     totals.FileCount,
				WarningCount:  totals.WarningCount,
			},
			FinishedAt: finishedAt,
		},
	})
}

func (m *Manager) execute(ctx context.Context, id string, opts scanopts.Options) (model.ScanStatus, model.Totals, error) {
	matcher, err := exclude.New(opts.Excludes)
	if err != nil {
		return model.StatusFailed, model.Totals{}, fmt.Errorf("build matcher: %w", err)
	}
	p, err := probe.New(opts.MeasureLogical, opts.MeasureAllocated)
	if err != nil {
		return model.StatusFailed, model.Totals{}, fmt.Errorf("build probe: %w", err)
	}

	concurrency := scanopts.EffectiveConcurrency(opts, m.tun)

	recordCh := make(chan model.WalkRecord, m.tun.BatchSize)
	warnCh := make(chan model.WarningRecord, m.tun.BatchSize)

	roots := make([]string, 0, len(opts.RootPaths))
	for _, r := range opts.RootPaths {
		roots = append(roots, pathutil.Normalize(r))
	}

	flusher := storeFlusher{st: m.st, scanID: id, rowsPerChunk: func(columns int) int {
		return scanopts.RowsPerChunk(m.tun, columns)
	}}
	agg := aggregate.New(
		aggregate.Input{Records: recordCh, Warnings: warnCh},
		flusher, m.bus, id, roots, m.tun, m.logger.Named("aggregate"),
	)

	var wg sync.WaitGroup
	for _, root := range roots {
		root := root
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := walk.New(root, walk.Options{
				FollowSymlinks: opts.FollowSymlinks,
				IncludeHidden:  opts.IncludeHidden,
				MaxDepth:       opts.MaxDepth,
				Concurrency:    concurrency,
			}, matcher, p, walk.Sink{Records: recordCh, Warnings: warnCh}, m.logger.Named("walk"))
			_ = w.Walk(ctx)
		}()
	}

	go func() {
		wg.Wait()
		close(recordCh)
		close(warnCh)
	}()

	totals, err := agg.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return model.StatusCanceled, totals, nil
		}
		return model.StatusFailed, totals, err
	}
	return model.StatusFinished, totals, nil
}

// Cancel signals a running scan to stop. It is a no-op if the scan is
// not currently running.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	r.cancel()
	return true
}

// Purge removes a scan's rows entirely. It refuses to purge a running
// scan.
func (m *Manager) Purge(id string) error {
	m.mu.Lock()
	_, running := m.runs[id]
	m.mu.Unlock()
	if running {
		return fmt.Errorf("scan %s is still running", id)
	}
	return m.st.PurgeScan(id)
}
