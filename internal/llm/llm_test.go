package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func newTestServer(t *testing.T, reply string, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, m := range req.Messages {
			bodies = append(bodies, m.Role+":"+m.Content)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		resp := map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   "test",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestClientComplete(t *testing.T) {
	srv, bodies := newTestServer(t, "  Paris \n", http.StatusOK)
	c := New(srv.URL, "key", "test-model")

	got, err := c.Complete(context.Background(), "Capital of France?")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Paris" {
		t.Errorf("Complete() = %q, want %q", got, "Paris")
	}
	if len(*bodies) != 2 {
		t.Fatalf("expected system and user messages, got %v", *bodies)
	}
	if !strings.HasPrefix((*bodies)[0], "system:") || (*bodies)[1] != "user:Capital of France?" {
		t.Errorf("unexpected messages: %v", *bodies)
	}
}

func TestClientCompleteAPIError(t *testing.T) {
	srv, _ := newTestServer(t, "", http.StatusTooManyRequests)
	c := New(srv.URL, "key", "test-model")

	if _, err := c.Complete(context.Background(), "q"); err == nil {
		t.Fatal("expected error on quota failure")
	}
}

func TestUnconfigured(t *testing.T) {
	_, err := Unconfigured{}.Complete(context.Background(), "q")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}

	err = Unconfigured{Reason: "missing gemini key"}.Ping(context.Background())
	if !errors.Is(err, ErrNotConfigured) || !strings.Contains(err.Error(), "missing gemini key") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFirstText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""},
		{"text part", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("42")}}},
		}}, "42"},
		{"skips empty candidate", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("POSSIBLE")}}},
		}}, "POSSIBLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstText(tt.resp); got != tt.want {
				t.Errorf("firstText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), "  ", "gemini-2.0-flash"); err == nil {
		t.Error("expected error for empty key")
	}
}
