package httpserver

import (
	"net/http"
	"strconv"

	"github.com/moti-app/moti-proxy/internal/httpserver/protocol"
	"github.com/moti-app/moti-proxy/internal/ledger"
	"github.com/moti-app/moti-proxy/internal/metrics"
)

type opsEndpoint struct {
	server *Server
}

func newOpsEndpoint(server *Server) protocol.Endpoint {
	return &opsEndpoint{server: server}
}

func (e *opsEndpoint) Name() string { return "ops" }

func (e *opsEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodGet, Path: "/metrics", Handler: http.HandlerFunc(e.server.HandleMetrics)},
		{Method: http.MethodGet, Path: "/stats", Handler: http.HandlerFunc(e.server.HandleStats)},
		{Method: http.MethodGet, Path: "/stats/recent", Handler: http.HandlerFunc(e.server.HandleRecent)},
	}
}

// HandleMetrics renders the collector in Prometheus text format.
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	snap := s.metrics.GetSnapshot()
	if d, ok := s.ledger.(droppedCounter); ok {
		snap.LedgerDropped = d.Dropped()
	}
	_, _ = w.Write([]byte(metrics.FormatPrometheus(snap)))
}

// droppedCounter is implemented by ledgers that shed writes under load.
type droppedCounter interface {
	Dropped() int64
}

// HandleStats returns ledger totals.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, r, http.StatusNotFound, "ledger_disabled", "")
		return
	}
	summary, err := s.ledger.Summary(r.Context())
	if err != nil {
		s.logger.Errorw("ledger summary failed", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "ledger_error", "")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"replies":    summary.Replies,
		"repetitive": summary.Repetitive,
		"providers":  summary.Providers,
	})
}

// HandleRecent lists the newest ledger entries; ?limit= caps the count (max 200).
func (s *Server) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, r, http.StatusNotFound, "ledger_disabled", "")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, r, http.StatusBadRequest, "invalid_limit", "")
			return
		}
		limit = min(n, 200)
	}
	entries, err := s.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Errorw("ledger list failed", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "ledger_error", "")
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"ok": true, "entries": entries})
}
