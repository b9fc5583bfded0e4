package httpserver

import (
	"net/http"

	"github.com/moti-app/moti-proxy/internal/health"
	"github.com/moti-app/moti-proxy/internal/httpserver/protocol"
)

type healthEndpoint struct {
	server *Server
}

func newHealthEndpoint(server *Server) protocol.Endpoint {
	return &healthEndpoint{server: server}
}

func (e *healthEndpoint) Name() string { return "health" }

func (e *healthEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodGet, Path: "/", Handler: http.HandlerFunc(e.server.HandleRoot)},
		{Method: http.MethodGet, Path: "/health", Handler: http.HandlerFunc(e.server.HandleHealth)},
		{Method: http.MethodGet, Path: "/ready", Handler: http.HandlerFunc(e.server.HandleReady)},
	}
}

// HandleRoot answers liveness probes hitting the bare host.
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "MOTI Proxy is running",
	})
}

// HandleHealth reports the active provider and the registered backends.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"ok":      true,
		"service": ServiceName,
		"version": s.version,
	}
	if s.relay != nil {
		payload["provider"] = s.relay.Provider()
		payload["model"] = s.relay.Model()
		payload["history"] = s.relay.Guard().Len()
	}
	providers := []string{}
	if s.router != nil {
		providers = s.router.ListProviders()
	}
	payload["providers"] = providers
	s.respondJSON(w, http.StatusOK, payload)
}

// HandleReady probes the ledger and the active upstream. Only an unreachable
// ledger fails readiness; an unreachable upstream reports degraded.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{"ok": true, "status": health.StatusHealthy})
		return
	}
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, map[string]any{
		"ok":         report.Status != health.StatusUnhealthy,
		"status":     report.Status,
		"timestamp":  report.Timestamp,
		"components": report.Components,
	})
}
