package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/moti-app/moti-proxy/internal/adapter"
)

var (
	// ErrUnsupportedProvider is returned for provider names nobody registered.
	ErrUnsupportedProvider = errors.New("router: unsupported provider")
	// ErrMissingCredential marks a provider that is known but lacks its API key.
	ErrMissingCredential = errors.New("router: missing provider credential")
)

// Router selects the chat adapter for a provider name.
type Router struct {
	mu          sync.RWMutex
	adapters    map[string]adapter.ChatAdapter
	unavailable map[string]error
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		adapters:    make(map[string]adapter.ChatAdapter),
		unavailable: make(map[string]error),
	}
}

// RegisterAdapter registers an adapter under a provider name.
func (r *Router) RegisterAdapter(name string, a adapter.ChatAdapter) error {
	name = normalize(name)
	if name == "" {
		return errors.New("router: adapter name cannot be empty")
	}
	if a == nil {
		return errors.New("router: adapter cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[name] = a
	delete(r.unavailable, name)
	return nil
}

// RegisterUnavailable records a provider that is recognised but cannot serve
// requests, e.g. because its API key is not configured. Lookup returns reason.
func (r *Router) RegisterUnavailable(name string, reason error) error {
	name = normalize(name)
	if name == "" {
		return errors.New("router: adapter name cannot be empty")
	}
	if reason == nil {
		reason = fmt.Errorf("router: provider %q unavailable", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("router: provider %q already registered", name)
	}
	r.unavailable[name] = reason
	return nil
}

// Lookup returns the adapter registered for name.
func (r *Router) Lookup(name string) (adapter.ChatAdapter, error) {
	name = normalize(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.adapters[name]; ok {
		return a, nil
	}
	if reason, ok := r.unavailable[name]; ok {
		return nil, reason
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
}

// ListProviders returns the names of usable providers, sorted.
func (r *Router) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CredentialError reports a provider that cannot run without an API key.
type CredentialError struct {
	Provider string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("router: missing credential for provider %q", e.Provider)
}

func (e *CredentialError) Unwrap() error { return ErrMissingCredential }

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
