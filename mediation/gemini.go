package mediation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Completer is the opaque text-completion collaborator. It receives a prompt and
// the declared output fields and returns the raw JSON object it produced.
type Completer interface {
	Complete(ctx context.Context, prompt string, output []OutputField) (string, error)
}

// contentGenerator is the slice of *genai.Models the completer needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

const DefaultGeminiModel = "gemini-2.5-flash"

var errEmptyCompletion = errors.New("mediation: empty completion")

// GeminiCompleter asks Gemini for a JSON object constrained by a response schema.
type GeminiCompleter struct {
	models      contentGenerator
	model       string
	temperature float32
}

// NewGeminiCompleter creates a Gemini API backed completer.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("mediation: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("mediation: create genai client: %w", err)
	}
	return newGeminiCompleter(client.Models, model), nil
}

func newGeminiCompleter(models contentGenerator, model string) *GeminiCompleter {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiCompleter{models: models, model: model, temperature: 0.2}
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string, output []OutputField) (string, error) {
	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(output),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("mediation: gemini generate: %w", err)
	}
	if resp == nil {
		return "", errEmptyCompletion
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func responseSchema(output []OutputField) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(output)),
	}
	for _, f := range output {
		schema.Properties[f.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: f.Description,
		}
		schema.Required = append(schema.Required, f.Name)
		schema.PropertyOrdering = append(schema.PropertyOrdering, f.Name)
	}
	return schema
}
