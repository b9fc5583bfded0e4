// Package testutil holds fake upstreams shared by adapter and server tests.
package testutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

// IPv4Server is an upstream stand-in bound to 127.0.0.1. httptest.NewServer
// may pick ::1, which some sandboxes refuse.
type IPv4Server struct {
	URL string

	server    *http.Server
	transport *http.Transport
	client    *http.Client
	closeOnce sync.Once
}

// NewIPv4Server starts handler on an ephemeral loopback port. The server is
// shut down when the test ends; calling Close earlier is allowed.
func NewIPv4Server(t testing.TB, handler http.Handler) *IPv4Server {
	t.Helper()
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp4 loopback unavailable: %v", err)
	}
	transport := &http.Transport{}
	s := &IPv4Server{
		URL:       "http://" + l.Addr().String(),
		server:    &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		transport: transport,
		client:    &http.Client{Transport: transport},
	}
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("ipv4 server: %v", err)
		}
	}()
	t.Cleanup(s.Close)
	return s
}

// Client returns a client whose idle connections are released on Close.
func (s *IPv4Server) Client() *http.Client {
	return s.client
}

// Close shuts the server down. Safe to call more than once.
func (s *IPv4Server) Close() {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
		s.transport.CloseIdleConnections()
	})
}
