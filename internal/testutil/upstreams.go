package testutil

import (
	"encoding/json"
	"net/http"
	"sync"
)

// ChatCompletionJSON renders a minimal OpenAI chat completion body.
func ChatCompletionJSON(model, content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

// GenerateJSON renders a non-streaming Ollama /api/generate body.
func GenerateJSON(model, response string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"model":             model,
		"response":          response,
		"done":              true,
		"done_reason":       "stop",
		"prompt_eval_count": 10,
		"eval_count":        5,
	})
	return string(body)
}

// FakeOllama answers /api/generate with canned replies, one per call. The last
// reply repeats once the list is exhausted. Prompts received are kept in order.
type FakeOllama struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	status  int
}

// NewFakeOllama returns a handler replying with the given texts.
func NewFakeOllama(replies ...string) *FakeOllama {
	return &FakeOllama{replies: replies, status: http.StatusOK}
}

// FailWith makes every subsequent call answer with status and an error body.
func (f *FakeOllama) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// Prompts returns a copy of the prompts seen so far.
func (f *FakeOllama) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *FakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/generate" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	status := f.status
	reply := ""
	if len(f.replies) > 0 {
		reply = f.replies[0]
		if len(f.replies) > 1 {
			f.replies = f.replies[1:]
		}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"fake ollama failure"}`))
		return
	}
	_, _ = w.Write([]byte(GenerateJSON(req.Model, reply)))
}
