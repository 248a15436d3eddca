package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// geminiClient is a client for the Google Gemini API.
type geminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// GeminiClient pairs text generation with resource cleanup.
type GeminiClient interface {
	TextGenerator
	Closer
}

// NewGeminiClient creates a new Gemini API client. The model name accepts
// the "models/" prefix some listings carry.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	name := normalizeModelName(modelName)
	if name == "" {
		name = defaultGeminiModel
	}
	model := client.GenerativeModel(name)
	// Plans are long and must stay deterministic-ish.
	model.SetTemperature(0.4)
	model.SetMaxOutputTokens(2200)

	return &geminiClient{client: client, model: model, name: name}, nil
}

// GenerateContent sends a prompt to the Gemini model and returns the
// generated text with token usage.
func (c *geminiClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ContentResponse{}, fmt.Errorf("no content generated")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return ContentResponse{}, fmt.Errorf("generated content is not text")
	}

	out := ContentResponse{Content: b.String(), Usage: TokenUsage{Model: c.name}}
	if resp.UsageMetadata != nil {
		out.Usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.Usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// Close closes the underlying Gemini client.
func (c *geminiClient) Close() error {
	return c.client.Close()
}

func normalizeModelName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "models/")
	return name
}
