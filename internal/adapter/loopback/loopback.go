package loopback

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/moti-app/moti-proxy/internal/adapter"
	"github.com/moti-app/moti-proxy/internal/openai"
)

// Ensure LoopbackAdapter implements ChatAdapter.
var _ adapter.ChatAdapter = (*LoopbackAdapter)(nil)

// LoopbackAdapter echoes the last user message back to the caller. It lets the
// relay run end to end without any model backend.
type LoopbackAdapter struct{}

// New creates a LoopbackAdapter instance.
func New() *LoopbackAdapter {
	return &LoopbackAdapter{}
}

// CreateCompletion fabricates a deterministic completion.
func (a *LoopbackAdapter) CreateCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	message, ok := req.LastUserMessage()
	if !ok {
		return openai.ChatCompletionResponse{}, errors.New("loopback: no messages provided")
	}

	reply := openai.ChatMessage{
		Role:    openai.RoleAssistant,
		Content: "[loopback] " + strings.TrimSpace(message.Content),
	}

	promptChars := 0
	for _, m := range req.Messages {
		promptChars += utf8.RuneCountInString(m.Content)
	}
	usage := openai.UsageBreakdown{
		PromptTokens:     promptChars / 4,
		CompletionTokens: utf8.RuneCountInString(reply.Content) / 4,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return openai.NewCompletionResponse(req.Model, reply, usage), nil
}
