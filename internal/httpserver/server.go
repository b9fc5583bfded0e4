package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/moti-app/moti-proxy/internal/adapter/router"
	"github.com/moti-app/moti-proxy/internal/health"
	"github.com/moti-app/moti-proxy/internal/httpserver/protocol"
	"github.com/moti-app/moti-proxy/internal/ledger"
	"github.com/moti-app/moti-proxy/internal/metrics"
	"github.com/moti-app/moti-proxy/internal/ratelimit"
	"github.com/moti-app/moti-proxy/internal/relay"
)

// ServiceName is reported by /health.
const ServiceName = "moti-proxy"

// unmatchedEndpoint labels metrics for requests that hit no registered route.
const unmatchedEndpoint = "unmatched"

// Options wires a Server. Relay is required; the rest are optional.
type Options struct {
	Relay          *relay.Service
	Router         *router.Router
	Ledger         ledger.Store
	Metrics        *metrics.Collector
	Logger         *zap.SugaredLogger
	Version        string
	MaxBodyBytes   int64
	AllowedOrigins []string
	Health         *health.Checker

	// RateLimiter throttles POST /chat per client; nil disables it.
	RateLimiter *ratelimit.Limiter
}

// Server exposes the relay over HTTP.
type Server struct {
	relay          *relay.Service
	router         *router.Router
	ledger         ledger.Store
	metrics        *metrics.Collector
	logger         *zap.SugaredLogger
	version        string
	maxBodyBytes   int64
	allowedOrigins []string
	limiter        *ratelimit.Limiter
	health         *health.Checker
}

// New constructs a Server.
func New(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		relay:          opts.Relay,
		router:         opts.Router,
		ledger:         opts.Ledger,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		version:        opts.Version,
		maxBodyBytes:   opts.MaxBodyBytes,
		allowedOrigins: opts.AllowedOrigins,
		limiter:        opts.RateLimiter,
		health:         opts.Health,
	}
}

// Router returns a configured chi router for embedding in HTTP servers.
func (s *Server) Router() http.Handler {
	r := s.newBaseRouter()
	s.registerEndpoints(r,
		newHealthEndpoint(s),
		newChatEndpoint(s),
		newPlanEndpoint(s),
		newOpsEndpoint(s),
	)
	return r
}

func (s *Server) newBaseRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(s.logger.Desugar()),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.NotFound(s.instrument(unmatchedEndpoint, http.HandlerFunc(s.handleNotFound)).ServeHTTP)
	r.MethodNotAllowed(s.instrument(unmatchedEndpoint, http.HandlerFunc(s.handleMethodNotAllowed)).ServeHTTP)
	return r
}

func (s *Server) registerEndpoints(r chi.Router, endpoints ...protocol.Endpoint) {
	for _, ep := range endpoints {
		if ep == nil {
			continue
		}
		s.logger.Debugw("registering endpoint", "endpoint", ep.Name())
		for _, route := range ep.Routes() {
			r.Method(route.Method, route.Path, s.instrument(route.Path, route.Handler))
		}
	}
}

// instrument records request counts, durations and in-flight gauges under a
// fixed endpoint label so client-chosen paths cannot grow the metric maps.
func (s *Server) instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.RecordRequestStart(endpoint)
		defer func() {
			s.metrics.RecordRequestEnd(endpoint)
			s.metrics.RecordRequest(endpoint, time.Since(start))
		}()
		next.ServeHTTP(w, r)
	})
}

// errorBody is the failure envelope shared by every endpoint.
type errorBody struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, http.StatusNotFound, "not_found", "")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "")
}

// endpointLabel returns the matched route pattern, or unmatchedEndpoint.
func endpointLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedEndpoint
	}
	if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
		return pattern
	}
	return unmatchedEndpoint
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	s.metrics.RecordError(endpointLabel(r), code)
	s.respondJSON(w, status, errorBody{OK: false, Error: code, Detail: detail})
}
