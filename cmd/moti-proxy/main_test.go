package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moti-app/moti-proxy/internal/adapter/router"
	"github.com/moti-app/moti-proxy/internal/config"
	"github.com/moti-app/moti-proxy/internal/ledger"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestSimilarCommand(t *testing.T) {
	out, err := runCommand(t, "similar", "Merhaba", "merhaba")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = runCommand(t, "similar", "Merhaba", "Selam")
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	_, err = runCommand(t, "similar", "only-one")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "v")
}

func TestOpenLedgerDisabled(t *testing.T) {
	store, err := openLedger("  ", zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestOpenLedgerSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := openLedger(path, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotNil(t, store)

	require.NoError(t, store.Record(context.Background(), ledger.Entry{ID: "e1", Provider: "ollama"}))
	require.NoError(t, store.Close())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Provider = "loopback"
	cfg.LedgerPath = filepath.Join(t.TempDir(), "ledger.db")
	return cfg
}

func TestBuildAppServesChat(t *testing.T) {
	a, err := buildApp(testConfig(t), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"selam"}`))
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"reply":"[loopback] selam"`)
}

func TestBuildRouterWithoutKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAIAPIKey = ""
	r, err := buildRouter(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = r.Lookup("openai")
	assert.ErrorIs(t, err, router.ErrMissingCredential)
	assert.Equal(t, []string{"loopback", "ollama"}, r.ListProviders())
}

func TestBuildRouterWithKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAIAPIKey = "sk-test"
	r, err := buildRouter(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, []string{"loopback", "ollama", "openai"}, r.ListProviders())
}

func TestBuildAppBadPersona(t *testing.T) {
	cfg := testConfig(t)
	cfg.PersonaFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := buildApp(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestReadinessProbes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider = "ollama"
	probes := readinessProbes(cfg, nil)
	require.Len(t, probes, 1)
	assert.Equal(t, "ollama", probes[0].Name)

	cfg.Provider = "loopback"
	assert.Empty(t, readinessProbes(cfg, nil))
}
