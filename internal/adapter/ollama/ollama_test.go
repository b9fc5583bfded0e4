package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/moti-app/moti-proxy/internal/openai"
	"github.com/moti-app/moti-proxy/internal/testutil"
)

func chatRequest(msg string) openai.ChatCompletionRequest {
	temp := 0.2
	return openai.ChatCompletionRequest{
		Model:       "llama3.1:8b",
		Temperature: &temp,
		Messages: []openai.ChatMessage{
			{Role: "system", Content: "Sen Moti'sin."},
			{Role: "user", Content: msg},
		},
	}
}

func TestNewDefaults(t *testing.T) {
	a := New(Config{Endpoint: " http://localhost:11434/ "})
	if a.Endpoint() != "http://localhost:11434" {
		t.Fatalf("unexpected endpoint %q", a.Endpoint())
	}
	if New(Config{}).Endpoint() != DefaultEndpoint {
		t.Fatalf("expected default endpoint")
	}
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt(chatRequest("Merhaba"))
	want := "Sen Moti'sin.\n\nKullanıcı: Merhaba\nMoti:"
	if got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}

	noSystem := BuildPrompt(openai.ChatCompletionRequest{Messages: []openai.ChatMessage{{Role: "user", Content: "selam"}}})
	if noSystem != "Kullanıcı: selam\nMoti:" {
		t.Fatalf("unexpected prompt without system %q", noSystem)
	}
}

func TestCreateCompletion(t *testing.T) {
	var captured map[string]interface{}
	srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","response":"  Merhaba, nasılsın?  ","done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":5}`))
	}))
	defer srv.Close()

	a := New(Config{Endpoint: srv.URL, HTTPClient: srv.Client()})
	resp, err := a.CreateCompletion(context.Background(), chatRequest("Merhaba"))
	if err != nil {
		t.Fatalf("CreateCompletion: %v", err)
	}
	if resp.Text() != "Merhaba, nasılsın?" {
		t.Fatalf("unexpected reply %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 17 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}

	if captured["stream"] != false {
		t.Fatalf("stream must be false, got %v", captured["stream"])
	}
	if captured["model"] != "llama3.1:8b" {
		t.Fatalf("unexpected model %v", captured["model"])
	}
	if !strings.HasSuffix(captured["prompt"].(string), "Kullanıcı: Merhaba\nMoti:") {
		t.Fatalf("unexpected prompt %q", captured["prompt"])
	}
	opts := captured["options"].(map[string]interface{})
	if opts["temperature"] != 0.2 {
		t.Fatalf("unexpected temperature %v", opts["temperature"])
	}
}

func TestCreateCompletionErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"error field", http.StatusNotFound, `{"error":"model 'x' not found"}`, "ollama: http 404: model 'x' not found"},
		{"plain body", http.StatusBadGateway, `upstream down`, "ollama: http 502: upstream down"},
		{"malformed body", http.StatusOK, `not json`, "ollama: unmarshal response"},
		{"error in 200", http.StatusOK, `{"error":"out of memory"}`, "ollama: out of memory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a := New(Config{Endpoint: srv.URL, HTTPClient: srv.Client()})
			_, err := a.CreateCompletion(context.Background(), chatRequest("x"))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateCompletionNoMessages(t *testing.T) {
	a := New(Config{})
	if _, err := a.CreateCompletion(context.Background(), openai.ChatCompletionRequest{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCreateCompletionUnreachable(t *testing.T) {
	a := New(Config{Endpoint: "http://127.0.0.1:1"})
	if _, err := a.CreateCompletion(context.Background(), chatRequest("x")); err == nil {
		t.Fatalf("expected network error")
	}
}
