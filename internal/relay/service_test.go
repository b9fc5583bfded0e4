package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moti-app/moti-proxy/internal/adapter/router"
	"github.com/moti-app/moti-proxy/internal/guard"
	"github.com/moti-app/moti-proxy/internal/ledger"
	"github.com/moti-app/moti-proxy/internal/metrics"
	"github.com/moti-app/moti-proxy/internal/openai"
	"github.com/moti-app/moti-proxy/internal/persona"
)

// scriptedAdapter returns queued replies in order, or err when set.
type scriptedAdapter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []openai.ChatCompletionRequest
}

func (a *scriptedAdapter) CreateCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return openai.ChatCompletionResponse{}, a.err
	}
	reply := a.replies[0]
	if len(a.replies) > 1 {
		a.replies = a.replies[1:]
	}
	return openai.NewCompletionResponse(req.Model, openai.ChatMessage{Role: "assistant", Content: reply}, openai.UsageBreakdown{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}), nil
}

type recordingLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

func (l *recordingLedger) Record(ctx context.Context, e ledger.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}
func (l *recordingLedger) Summary(context.Context) (ledger.Summary, error) {
	return ledger.Summary{}, nil
}
func (l *recordingLedger) ListRecent(context.Context, int) ([]ledger.Entry, error) {
	return nil, nil
}
func (l *recordingLedger) Close() error { return nil }

func newService(t *testing.T, a *scriptedAdapter, opts ...func(*Config)) *Service {
	t.Helper()
	r := router.New()
	require.NoError(t, r.RegisterAdapter("ollama", a))
	cfg := Config{
		Router:      r,
		Guard:       guard.New(),
		Provider:    "ollama",
		Model:       "llama3.1:8b",
		Temperature: 0.2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func relayErr(t *testing.T, err error) *Error {
	t.Helper()
	var re *Error
	require.True(t, errors.As(err, &re), "expected *Error, got %T %v", err, err)
	return re
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Guard: guard.New(), Provider: "ollama"})
	assert.Error(t, err)
	_, err = New(Config{Router: router.New(), Provider: "ollama"})
	assert.Error(t, err)
	_, err = New(Config{Router: router.New(), Guard: guard.New(), Provider: " "})
	assert.Error(t, err)
}

func TestReplySuccess(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"  Merhaba! Bugün neye odaklanalım?  "}}
	s := newService(t, a)

	res, err := s.Reply(context.Background(), Request{Message: "  Selam Moti  "})
	require.NoError(t, err)
	assert.Equal(t, "Merhaba! Bugün neye odaklanalım?", res.Reply)
	assert.False(t, res.Repetitive)
	assert.NotNil(t, res.Patches)
	assert.Empty(t, res.Patches)
	assert.Equal(t, []string{"Merhaba! Bugün neye odaklanalım?"}, s.Guard().History())

	require.Len(t, a.requests, 1)
	req := a.requests[0]
	assert.Equal(t, "llama3.1:8b", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.2, *req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, persona.DefaultSystem, req.Messages[0].Content)
	assert.Equal(t, "Selam Moti", req.Messages[1].Content)
}

func TestReplyMemoryIsSerializedIntoPrompt(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"tamam"}}
	s := newService(t, a)

	_, err := s.Reply(context.Background(), Request{
		Message: "Planımı hatırla",
		Memory:  json.RawMessage(`{ "name": "Ayşe",  "stats": {"thanks": 2} }`),
	})
	require.NoError(t, err)
	system := a.requests[0].Messages[0].Content
	assert.True(t, strings.HasSuffix(system, `Hafıza: {"name":"Ayşe","stats":{"thanks":2}}`), system)

	_, err = s.Reply(context.Background(), Request{Message: "x", Memory: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Equal(t, persona.DefaultSystem, a.requests[1].Messages[0].Content)
}

func TestReplyRepetitionAnnotatesAndRecordsOnce(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"Tamam", "tamam"}}
	s := newService(t, a)

	first, err := s.Reply(context.Background(), Request{Message: "a"})
	require.NoError(t, err)
	assert.Equal(t, "Tamam", first.Reply)

	second, err := s.Reply(context.Background(), Request{Message: "b"})
	require.NoError(t, err)
	assert.True(t, second.Repetitive)
	assert.Equal(t, "tamam"+guard.DefaultNotice, second.Reply)

	assert.Equal(t, []string{"tamam" + guard.DefaultNotice, "Tamam"}, s.Guard().History())
}

func TestReplyEmptyMessage(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"x"}}
	s := newService(t, a)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := s.Reply(context.Background(), Request{Message: msg})
		re := relayErr(t, err)
		assert.Equal(t, CodeEmptyMessage, re.Code)
		assert.Equal(t, http.StatusBadRequest, re.Status)
	}
	assert.Empty(t, a.requests, "provider must not be called for blank messages")
	assert.Zero(t, s.Guard().Len())
}

func TestReplyProviderFailureLeavesHistoryUntouched(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"ilk cevap"}}
	collector := metrics.NewCollector()
	s := newService(t, a, func(c *Config) { c.Metrics = collector })

	_, err := s.Reply(context.Background(), Request{Message: "a"})
	require.NoError(t, err)

	a.err = errors.New("connection refused")
	_, err = s.Reply(context.Background(), Request{Message: "b"})
	re := relayErr(t, err)
	assert.Equal(t, CodeProxyError, re.Code)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, []string{"ilk cevap"}, s.Guard().History())

	snap := collector.GetSnapshot()
	assert.Equal(t, int64(2), snap.ProviderRequests["ollama"])
	assert.Equal(t, int64(1), snap.ProviderErrors["ollama"])
	assert.Equal(t, int64(1), snap.Replies["ollama"])
}

func TestReplyUnsupportedProvider(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"x"}}
	s := newService(t, a, func(c *Config) { c.Provider = "gemini" })

	_, err := s.Reply(context.Background(), Request{Message: "selam"})
	re := relayErr(t, err)
	assert.Equal(t, CodeUnsupportedProvider, re.Code)
	assert.Equal(t, http.StatusBadRequest, re.Status)
}

func TestReplyMissingKey(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"x"}}
	s := newService(t, a, func(c *Config) {
		c.Provider = "openai"
		require.NoError(t, c.Router.RegisterUnavailable("openai", &router.CredentialError{Provider: "openai"}))
	})

	_, err := s.Reply(context.Background(), Request{Message: "selam"})
	re := relayErr(t, err)
	assert.Equal(t, "missing_openai_key", re.Code)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
}

func TestReplyPatchesUseRawMessage(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"Rica ederim!"}}
	s := newService(t, a)

	res, err := s.Reply(context.Background(), Request{Message: "Çok teşekkürler Moti"})
	require.NoError(t, err)
	assert.Equal(t, []persona.Patch{{Op: "inc", Path: "/stats/thanks", By: 1}}, res.Patches)
}

func TestReplyWritesLedgerEntry(t *testing.T) {
	a := &scriptedAdapter{replies: []string{"Merhaba"}}
	l := &recordingLedger{}
	s := newService(t, a, func(c *Config) { c.Ledger = l })

	_, err := s.Reply(context.Background(), Request{Message: "Selam", RequestID: "req-1"})
	require.NoError(t, err)
	require.Len(t, l.entries, 1)
	e := l.entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "ollama", e.Provider)
	assert.Equal(t, 5, e.MessageChars)
	assert.Equal(t, 7, e.ReplyChars)
	assert.Equal(t, int64(3), e.PromptTokens)

	assert.Equal(t, "req-1", a.requests[0].Metadata["request_id"])
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		message string
	}{
		{"valid", `{"message":"selam","memory":{"a":1}}`, nil, "selam"},
		{"blank passes decode", `{"message":"  "}`, nil, "  "},
		{"missing", `{"memory":{}}`, ErrMessageRequired, ""},
		{"not a string", `{"message":42}`, ErrMessageRequired, ""},
		{"null", `{"message":null}`, ErrMessageRequired, ""},
		{"not json", `message=selam`, ErrMessageRequired, ""},
		{"empty body", ``, ErrMessageRequired, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest(strings.NewReader(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.message, req.Message)
		})
	}
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))
	assert.Equal(t, CodeMessageRequired, AsError(ErrMessageRequired).Code)
	assert.Equal(t, CodeProxyError, AsError(errors.New("boom")).Code)

	wrapped := AsError(&Error{Code: "custom", Status: 418})
	assert.Equal(t, "custom", wrapped.Code)
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("", "", "selam")
	require.Len(t, msgs, 1)
	assert.Equal(t, openai.RoleUser, msgs[0].Role)

	msgs = BuildMessages("", `{"a":1}`, "selam")
	require.Len(t, msgs, 2)
	assert.Equal(t, `Hafıza: {"a":1}`, msgs[0].Content)
}
