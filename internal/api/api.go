// Package api is the thin HTTP surface over the job manager and event
// bus. It is intentionally small: the scan engine treats HTTP, storage
// queries, and UI as external collaborators.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zerox80/speicherwald/internal/events"
	"github.com/zerox80/speicherwald/internal/job"
	"github.com/zerox80/speicherwald/internal/scanopts"
	"github.com/zerox80/speicherwald/internal/store"
)

// Server wires the Job Manager, Event Bus and Store behind an HTTP
// router.
type Server struct {
	manager *job.Manager
	bus     *events.Bus
	st      *store.Store
	logger  *zap.Logger
	router  *mux.Router
}

// New builds a Server and registers its routes.
func New(manager *job.Manager, bus *events.Bus, st *store.Store, logger *zap.Logger) *Server {
	s := &Server{manager: manager, bus: bus, st: st, logger: logger, router: mux.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.router.HandleFunc("/scans", s.handleCreateScan).Methods(http.MethodPost)
	s.router.HandleFunc("/scans", s.handleListScans).Methods(http.MethodGet)
	s.router.HandleFunc("/scans/{id}", s.handleGetScan).Methods(http.MethodGet)
	s.router.HandleFunc("/scans/{id}", s.handlePurgeScan).Methods(http.MethodDelete)
	s.router.HandleFunc("/scans/{id}/cancel", s.handleCancelScan).Methods(http.MethodPost)
	s.router.HandleFunc("/scans/{id}/events", s.handleScanEvents).Methods(http.MethodGet)
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	opts := scanopts.DefaultOptions()
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.manager.Start(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.st.ListScans()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	scan, err := s.st.GetScan(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handlePurgeScan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.manager.Purge(id); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.manager.Cancel(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("scan %s is not running", id))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleScanEvents streams the Event Bus as Server-Sent Events, filtered
// to the requested scan id, until the client disconnects or the scan
// reaches a terminal state.
func (s *Server) handleScanEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.ScanID != id {
				continue
			}
			if err := sendEvent(w, flusher, ev); err != nil {
				s.logger.Debug("sse client gone", zap.String("scan_id", id), zap.Error(err))
				return
			}
			if ev.Type == events.KindFinished || ev.Type == events.KindCanceled {
				return
			}
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, ev events.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	frame := struct {
		Type    events.Kind     `json:"type"`
		ScanID  string          `json:"scan_id"`
		At      time.Time       `json:"at"`
		Payload json.RawMessage `json:"payload"`
	}{Type: ev.Type, ScanID: ev.ScanID, At: ev.At, Payload: payload}

	body, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, body); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
