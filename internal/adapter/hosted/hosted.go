package hosted

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/moti-app/moti-proxy/internal/adapter"
	"github.com/moti-app/moti-proxy/internal/adapter/router"
	"github.com/moti-app/moti-proxy/internal/openai"
)

// Ensure HostedAdapter implements ChatAdapter.
var _ adapter.ChatAdapter = (*HostedAdapter)(nil)

// ProviderName is the name the hosted backend is registered under.
const ProviderName = "openai"

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// HostedAdapter calls an OpenAI-compatible chat completions API with a bearer token.
type HostedAdapter struct {
	client  sdk.Client
	baseURL string
}

// Config holds configuration for the hosted adapter.
type Config struct {
	APIKey         string
	BaseURL        string // optional, defaults to DefaultBaseURL
	RequestTimeout time.Duration
	HTTPClient     *http.Client // optional, overrides RequestTimeout
}

// New creates a HostedAdapter. A blank API key yields a *router.CredentialError.
func New(cfg Config) (*HostedAdapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, &router.CredentialError{Provider: ProviderName}
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	client := sdk.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &HostedAdapter{client: client, baseURL: baseURL}, nil
}

// BaseURL returns the normalised API root.
func (a *HostedAdapter) BaseURL() string { return a.baseURL }

// CreateCompletion sends the conversation to /chat/completions.
func (a *HostedAdapter) CreateCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("hosted: no messages provided")
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(req.Model),
		Messages: toParams(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return openai.ChatCompletionResponse{}, fmt.Errorf("hosted: http %d: %w", apiErr.StatusCode, err)
		}
		return openai.ChatCompletionResponse{}, fmt.Errorf("hosted: send request: %w", err)
	}
	if len(completion.Choices) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("hosted: response has no choices")
	}

	choice := completion.Choices[0]
	out := openai.NewCompletionResponse(completion.Model, openai.ChatMessage{
		Role:    openai.RoleAssistant,
		Content: strings.TrimSpace(choice.Message.Content),
	}, openai.UsageBreakdown{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
	})
	if completion.ID != "" {
		out.ID = completion.ID
	}
	if reason := string(choice.FinishReason); reason != "" {
		out.Choices[0].FinishReason = reason
	}
	return out, nil
}

func toParams(messages []openai.ChatMessage) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case openai.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case openai.RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}
