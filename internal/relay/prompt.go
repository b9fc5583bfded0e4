package relay

import (
	"strings"

	"github.com/moti-app/moti-proxy/internal/openai"
)

// memoryLabel prefixes the serialized client memory inside the system prompt.
const memoryLabel = "Hafıza: "

// BuildMessages assembles the conversation sent to the provider: the persona
// system text, followed by the client memory when present, then the user turn.
func BuildMessages(system, memory, message string) []openai.ChatMessage {
	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(system))
	if memory != "" {
		if sys.Len() > 0 {
			sys.WriteString("\n\n")
		}
		sys.WriteString(memoryLabel)
		sys.WriteString(memory)
	}

	messages := make([]openai.ChatMessage, 0, 2)
	if sys.Len() > 0 {
		messages = append(messages, openai.ChatMessage{Role: openai.RoleSystem, Content: sys.String()})
	}
	return append(messages, openai.ChatMessage{Role: openai.RoleUser, Content: message})
}
