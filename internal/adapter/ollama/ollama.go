package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/moti-app/moti-proxy/internal/adapter"
	"github.com/moti-app/moti-proxy/internal/openai"
)

// Ensure OllamaAdapter implements ChatAdapter.
var _ adapter.ChatAdapter = (*OllamaAdapter)(nil)

// DefaultEndpoint is the address a stock Ollama install listens on.
const DefaultEndpoint = "http://127.0.0.1:11434"

// OllamaAdapter sends single-shot generation requests to a local Ollama server.
type OllamaAdapter struct {
	endpoint   string
	httpClient *http.Client
}

// Config holds configuration for the Ollama adapter.
type Config struct {
	Endpoint       string // optional, defaults to DefaultEndpoint
	RequestTimeout time.Duration
	HTTPClient     *http.Client // optional, overrides RequestTimeout
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// New creates an OllamaAdapter instance.
func New(cfg Config) *OllamaAdapter {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.RequestTimeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &OllamaAdapter{endpoint: endpoint, httpClient: client}
}

// Endpoint returns the normalised base URL.
func (a *OllamaAdapter) Endpoint() string { return a.endpoint }

// CreateCompletion flattens the chat into one prompt and calls /api/generate.
func (a *OllamaAdapter) CreateCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("ollama: no messages provided")
	}

	body, err := json.Marshal(generateRequest{
		Model:   req.Model,
		Prompt:  BuildPrompt(req),
		Stream:  false,
		Options: generateOptions{Temperature: req.Temperature},
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("ollama: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("ollama: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return openai.ChatCompletionResponse{}, fmt.Errorf("ollama: http %d: %s", resp.StatusCode, errResp.Error)
		}
		return openai.ChatCompletionResponse{}, fmt.Errorf("ollama: http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var generated generateResponse
	if err := json.Unmarshal(respBody, &generated); err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("ollama: unmarshal response: %w", err)
	}
	if generated.Error != "" {
		return openai.ChatCompletionResponse{}, fmt.Errorf("ollama: %s", generated.Error)
	}

	usage := openai.UsageBreakdown{
		PromptTokens:     generated.PromptEvalCount,
		CompletionTokens: generated.EvalCount,
	}
	if usage.CompletionTokens == 0 {
		usage.CompletionTokens = utf8.RuneCountInString(generated.Response) / 4
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	model := generated.Model
	if model == "" {
		model = req.Model
	}
	out := openai.NewCompletionResponse(model, openai.ChatMessage{
		Role:    openai.RoleAssistant,
		Content: strings.TrimSpace(generated.Response),
	}, usage)
	if generated.DoneReason != "" {
		out.Choices[0].FinishReason = generated.DoneReason
	}
	return out, nil
}

// BuildPrompt renders the conversation as a single completion prompt:
// the system text, a blank line, then "Kullanıcı: <msg>" turns ending with "Moti:".
func BuildPrompt(req openai.ChatCompletionRequest) string {
	var b strings.Builder
	if system := req.SystemPrompt(); system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		switch strings.ToLower(m.Role) {
		case openai.RoleSystem:
			continue
		case openai.RoleAssistant:
			b.WriteString("Moti: ")
		default:
			b.WriteString("Kullanıcı: ")
		}
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	b.WriteString("Moti:")
	return b.String()
}
