package adapter

import (
	"context"

	"github.com/moti-app/moti-proxy/internal/openai"
)

// ChatAdapter converts provider-neutral chat requests into provider specific calls.
type ChatAdapter interface {
	CreateCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}
