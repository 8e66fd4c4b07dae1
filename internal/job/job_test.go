package job

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zerox80/speicherwald/internal/events"
	"github.com/zerox80/speicherwald/internal/model"
	"github.com/zerox80/speicherwald/internal/scanopts"
	"github.com/zerox80/speicherwald/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *events.Bus) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "job.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := events.New()
	tun := scanopts.DefaultTunables()
	tun.FlushThreshold = 1
	tun.FlushIntervalMs = 10
	tun.ProgressIntervalMs = 10
	return New(st, bus, tun, zap.NewNop()), bus
}

func waitForTerminal(t *testing.T, ch <-chan events.Event, scanID string) events.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.ScanID != scanID {
				continue
			}
			if ev.Type == events.KindFinished || ev.Type == events.KindCanceled {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal event")
		}
	}
}

func TestManagerRunsScanToCompletion(t *testing.T) {
	dir := t.TempDir()
	writeSmallTree(t, dir)

	m, bus := newTestManager(t)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	opts := scanopts.DefaultOptions()
	opts.RootPaths = []string{dir}
	id, err := m.Start(context.Background(), opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	ev := waitForTerminal(t, ch, id)
	if ev.Type != events.KindFinished {
		t.Fatalf("got %v, want finished", ev.Type)
	}
	payload := ev.Payload.(events.FinishedPayload)
	if payload.Status != string(model.StatusFinished) {
		t.Fatalf("status = %s, want finished", payload.Status)
	}
	if payload.Totals.FileCount == 0 {
		t.Fatal("expected at least one file counted")
	}
}

func TestManagerCancel(t *testing.T) {
	dir := t.TempDir()
	writeSmallTree(t, dir)

	m, bus := newTestManager(t)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	opts := scanopts.DefaultOptions()
	opts.RootPaths = []string{dir}
	id, err := m.Start(context.Background(), opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// The scan may finish before cancellation is observed on a tree this
	// small; either a canceled or finished terminal event is acceptable,
	// the point is Cancel never panics or deadlocks.
	m.Cancel(id)
	waitForTerminal(t, ch, id)
}

func TestManagerRejectsInvalidOptions(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Start(context.Background(), scanopts.DefaultOptions())
	if err == nil {
		t.Fatal("expected an error for empty root paths")
	}
}

func writeSmallTree(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
}
