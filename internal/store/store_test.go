package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/zerox80/speicherwald/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetScan(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	scan := model.Scan{
		ID:        "scan-1",
		Status:    model.StatusRunning,
		RootPaths: []string{"/data/a", "/data/b"},
		Options:   []byte(`{"follow_symlinks":false}`),
		StartedAt: now,
	}
	if err := s.CreateScan(scan); err != nil {
		t.Fatalf("CreateScan: %v", err)
	}

	got, err := s.GetScan("scan-1")
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}
	if got.Status != model.StatusRunning {
		t.Errorf("Status = %v, want running", got.Status)
	}
	if len(got.RootPaths) != 2 || got.RootPaths[0] != "/data/a" {
		t.Errorf("RootPaths = %v", got.RootPaths)
	}
	if got.FinishedAt != nil {
		t.Error("FinishedAt should be nil before finalize")
	}
}

func TestFinalizeScan(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	if err := s.CreateScan(model.Scan{ID: "scan-2", Status: model.StatusRunning, RootPaths: []string{"/x"}, Options: []byte("{}"), StartedAt: now}); err != nil {
		t.Fatalf("CreateScan: %v", err)
	}

	totals := model.Totals{LogicalSize: 100, AllocatedSize: 200, DirCount: 3, FileCount: 7, WarningCount: 1}
	if err := s.FinalizeScan("scan-2", model.StatusFinished, totals, now.Add(time.Second)); err != nil {
		t.Fatalf("FinalizeScan: %v", err)
	}

	got, err := s.GetScan("scan-2")
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}
	if got.Status != model.StatusFinished {
		t.Errorf("Status = %v, want finished", got.Status)
	}
	if got.TotalAllocatedSize == nil || *got.TotalAllocatedSize != 200 {
		t.Errorf("TotalAllocatedSize = %v, want 200", got.TotalAllocatedSize)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set after finalize")
	}
}

func TestInsertNodesChunking(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	if err := s.CreateScan(model.Scan{ID: "scan-3", Status: model.StatusRunning, RootPaths: []string{"/x"}, Options: []byte("{}"), StartedAt: now}); err != nil {
		t.Fatalf("CreateScan: %v", err)
	}

	nodes := make([]model.Node, 0, 25)
	for i := 0; i < 25; i++ {
		nodes = append(nodes, model.Node{Path: "dir", IsDir: true, LogicalSize: int64(i)})
	}
	// rowsPerChunk smaller than len(nodes) forces multiple chunks within one transaction.
	if err := s.InsertNodes("scan-3", nodes, 7); err != nil {
		t.Fatalf("InsertNodes: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE scan_id = ?`, "scan-3").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 25 {
		t.Fatalf("count = %d, want 25", count)
	}
}

func TestListAndPurgeScans(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	for _, id := range []string{"a", "b"} {
		if err := s.CreateScan(model.Scan{ID: id, Status: model.StatusRunning, RootPaths: []string{"/x"}, Options: []byte("{}"), StartedAt: now}); err != nil {
			t.Fatalf("CreateScan(%s): %v", id, err)
		}
	}

	scans, err := s.ListScans()
	if err != nil {
		t.Fatalf("ListScans: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("len(scans) = %d, want 2", len(scans))
	}

	if err := s.PurgeScan("a"); err != nil {
		t.Fatalf("PurgeScan: %v", err)
	}
	scans, err = s.ListScans()
	if err != nil {
		t.Fatalf("ListScans after purge: %v", err)
	}
	if len(scans) != 1 || scans[0].ID != "b" {
		t.Fatalf("scans after purge = %+v", scans)
	}
}
