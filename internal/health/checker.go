// Package health runs readiness probes against the pieces the relay depends
// on: the reply ledger database and the active provider endpoint.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/moti-app/moti-proxy/internal/ledger"
)

// Status is the health of one component or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Component kinds. A failing database makes the process unhealthy; a failing
// upstream only degrades it, since the relay still answers with proxy_error.
const (
	KindDatabase = "database"
	KindHTTP     = "http"
)

// Probe checks one dependency.
type Probe struct {
	Name  string
	Kind  string
	Check func(ctx context.Context) error
}

// Component is the result of one probe.
type Component struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report aggregates a round of probes.
type Report struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components"`
}

// Config tunes a Checker.
type Config struct {
	Probes []Probe
	// Timeout bounds each probe (default 3s).
	Timeout time.Duration
	// MaxDatabaseLatency marks a slow but reachable database as degraded
	// (default 100ms).
	MaxDatabaseLatency time.Duration
}

// Checker runs probes concurrently.
type Checker struct {
	probes     []Probe
	timeout    time.Duration
	maxDBDelay time.Duration
}

// New returns a Checker.
func New(cfg Config) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxDatabaseLatency <= 0 {
		cfg.MaxDatabaseLatency = 100 * time.Millisecond
	}
	return &Checker{
		probes:     cfg.Probes,
		timeout:    cfg.Timeout,
		maxDBDelay: cfg.MaxDatabaseLatency,
	}
}

// Check runs every probe and returns the overall status.
func (c *Checker) Check(ctx context.Context) Report {
	components := make([]Component, len(c.probes))
	var wg sync.WaitGroup
	for i, p := range c.probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			components[i] = c.run(ctx, p)
		}(i, p)
	}
	wg.Wait()

	return Report{
		Status:     overall(components),
		Timestamp:  time.Now().UTC(),
		Components: components,
	}
}

func (c *Checker) run(ctx context.Context, p Probe) Component {
	comp := Component{Name: p.Name, Kind: p.Kind, CheckedAt: time.Now().UTC()}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	err := p.Check(probeCtx)
	latency := time.Since(start)
	comp.LatencyMS = latency.Milliseconds()

	switch {
	case err != nil && p.Kind == KindDatabase:
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		comp.Message = "database unreachable"
	case err != nil:
		comp.Status = StatusDegraded
		comp.Error = err.Error()
		comp.Message = "endpoint unreachable"
	case p.Kind == KindDatabase && latency > c.maxDBDelay:
		comp.Status = StatusDegraded
		comp.Message = fmt.Sprintf("high latency: %v", latency)
	default:
		comp.Status = StatusHealthy
	}
	return comp
}

func overall(components []Component) Status {
	status := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// LedgerProbe pings the ledger database. Stores without a connection always
// pass.
func LedgerProbe(store ledger.Store) Probe {
	return Probe{
		Name: "ledger",
		Kind: KindDatabase,
		Check: func(ctx context.Context) error {
			if p, ok := store.(ledger.Pinger); ok {
				return p.Ping(ctx)
			}
			return nil
		},
	}
}

// HTTPProbe issues a GET against url. Any HTTP response counts as reachable;
// only transport failures fail the probe.
func HTTPProbe(name, url string, client *http.Client) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return Probe{
		Name: name,
		Kind: KindHTTP,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			return resp.Body.Close()
		},
	}
}
