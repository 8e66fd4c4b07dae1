package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zerox80/speicherwald/internal/events"
	"github.com/zerox80/speicherwald/internal/job"
	"github.com/zerox80/speicherwald/internal/scanopts"
	"github.com/zerox80/speicherwald/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := events.New()
	tun := scanopts.DefaultTunables()
	manager := job.New(st, bus, tun, zap.NewNop())
	return New(manager, bus, st, zap.NewNop())
}

func TestCreateScanRejectsEmptyRoots(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/scans", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateAndListScan(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()

	body, _ := json.Marshal(map[string]any{"root_paths": []string{dir}})
	req := httptest.NewRequest(http.MethodPost, "/scans", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}

	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["id"] == "" {
		t.Fatal("expected a scan id")
	}

	// Give the background scan a moment to persist its running row.
	time.Sleep(50 * time.Millisecond)

	listReq := httptest.NewRequest(http.MethodGet, "/scans", nil)
	listRec := httptest.NewRecorder()
	s.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", listRec.Code)
	}
}

func TestCancelUnknownScanReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/scans/does-not-exist/cancel", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
