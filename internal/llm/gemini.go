package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini is a Completer backed by the Google Generative AI API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini client. The caller must Close it.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini API key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: cl, model: strings.TrimSpace(modelName)}, nil
}

// Complete sends a single prompt and returns the first text part of the reply.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	txt := firstText(resp)
	slog.Debug("gemini response", "model", g.model, "raw", txt)
	return strings.TrimSpace(txt), nil
}

// Ping checks that the configured model exists and the key is accepted.
func (g *Gemini) Ping(ctx context.Context) error {
	if _, err := g.client.GenerativeModel(g.model).Info(ctx); err != nil {
		return fmt.Errorf("gemini model info: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
