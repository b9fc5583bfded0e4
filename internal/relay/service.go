// Package relay turns a chat message into a guarded model reply.
package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moti-app/moti-proxy/internal/adapter/router"
	"github.com/moti-app/moti-proxy/internal/guard"
	"github.com/moti-app/moti-proxy/internal/ledger"
	"github.com/moti-app/moti-proxy/internal/metrics"
	"github.com/moti-app/moti-proxy/internal/openai"
	"github.com/moti-app/moti-proxy/internal/persona"
)

// Config wires a Service. Router, Guard and Provider are required.
type Config struct {
	Router      *router.Router
	Guard       *guard.Guard
	Persona     *persona.Persona
	Provider    string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Metrics     *metrics.Collector
	Ledger      ledger.Store
	Logger      *zap.SugaredLogger
}

// Service relays chat messages to the configured provider.
type Service struct {
	router      *router.Router
	guard       *guard.Guard
	persona     *persona.Persona
	provider    string
	model       string
	temperature float64
	timeout     time.Duration
	metrics     *metrics.Collector
	ledger      ledger.Store
	logger      *zap.SugaredLogger
}

// Result is a successful reply.
type Result struct {
	Reply      string
	Patches    []persona.Patch
	Repetitive bool
	Provider   string
	Model      string
	Usage      openai.UsageBreakdown
	Latency    time.Duration
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Router == nil {
		return nil, errors.New("relay: router required")
	}
	if cfg.Guard == nil {
		return nil, errors.New("relay: guard required")
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		return nil, errors.New("relay: provider required")
	}
	if cfg.Persona == nil {
		cfg.Persona = persona.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Service{
		router:      cfg.Router,
		guard:       cfg.Guard,
		persona:     cfg.Persona,
		provider:    provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		metrics:     cfg.Metrics,
		ledger:      cfg.Ledger,
		logger:      cfg.Logger,
	}, nil
}

// Provider returns the configured provider name.
func (s *Service) Provider() string { return s.provider }

// Model returns the configured model name.
func (s *Service) Model() string { return s.model }

// Guard exposes the repetition guard.
func (s *Service) Guard() *guard.Guard { return s.guard }

// Reply validates req, calls the provider and passes the text through the
// repetition guard. History is only touched when the provider call succeeds.
// Errors are *Error values.
func (s *Service) Reply(ctx context.Context, req Request) (Result, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Result{}, AsError(ErrEmptyMessage)
	}

	chat, err := s.router.Lookup(s.provider)
	if err != nil {
		return Result{}, AsError(err)
	}

	memory, err := compactMemory(req.Memory)
	if err != nil {
		return Result{}, &Error{Code: CodeInvalidMemory, Status: http.StatusBadRequest, Detail: "memory is not valid JSON", Err: err}
	}

	temperature := s.temperature
	completionReq := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    BuildMessages(s.persona.System, memory, message),
		Temperature: &temperature,
	}
	if req.RequestID != "" {
		completionReq.Metadata = map[string]string{"request_id": req.RequestID}
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := chat.CreateCompletion(callCtx, completionReq)
	latency := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordProviderCall(s.provider, latency, err)
	}
	if err != nil {
		s.logger.Errorw("provider call failed",
			"provider", s.provider, "model", s.model, "request_id", req.RequestID,
			"latency", latency, "error", err)
		return Result{}, &Error{Code: CodeProxyError, Status: http.StatusInternalServerError, Err: err}
	}

	reply, repetitive := s.guard.Apply(resp.Text())
	result := Result{
		Reply:      reply,
		Patches:    s.persona.Patches(req.Message),
		Repetitive: repetitive,
		Provider:   s.provider,
		Model:      s.model,
		Usage:      resp.Usage,
		Latency:    latency,
	}

	if s.metrics != nil {
		s.metrics.RecordTokenUsage(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))
		s.metrics.RecordReply(s.provider, repetitive, s.guard.Len())
	}
	s.recordLedger(ctx, req, message, result)

	s.logger.Infow("reply relayed",
		"provider", s.provider, "model", s.model, "request_id", req.RequestID,
		"repetitive", repetitive, "latency", latency)
	return result, nil
}

func (s *Service) recordLedger(ctx context.Context, req Request, message string, result Result) {
	if s.ledger == nil {
		return
	}
	entry := ledger.Entry{
		ID:               uuid.NewString(),
		RequestID:        req.RequestID,
		Provider:         result.Provider,
		Model:            result.Model,
		MessageChars:     utf8.RuneCountInString(message),
		ReplyChars:       utf8.RuneCountInString(result.Reply),
		PromptTokens:     int64(result.Usage.PromptTokens),
		CompletionTokens: int64(result.Usage.CompletionTokens),
		Repetitive:       result.Repetitive,
		LatencyMS:        result.Latency.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.logger.Warnw("ledger record failed", "entry", entry.ID, "error", err)
	}
}
