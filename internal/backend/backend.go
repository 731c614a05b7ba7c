package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/reviewqa/internal/config"
)

// Backend is the uniform text-to-text contract all three LLM providers
// implement. Generate sends one rendered prompt and returns the model's raw
// text response. Transport failures and non-200 statuses come back as errors
// and are never retried at this layer; the caller decides what a missing
// response means.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// New constructs the backend selected by cfg.Backend.Kind.
func New(cfg config.Config) (Backend, error) {
	return NewKind(cfg.Backend.Kind, cfg)
}

// NewKind constructs a backend by explicit kind, ignoring cfg.Backend.Kind.
// Used when a request overrides the configured default.
func NewKind(kind string, cfg config.Config) (Backend, error) {
	timeout := cfg.RequestTimeout()
	switch kind {
	case "ollama":
		return NewOllama(cfg.Backend.OllamaBaseURL, cfg.Backend.OllamaModel, timeout), nil
	case "cohere":
		if cfg.Backend.CohereAPIKey == "" {
			return nil, fmt.Errorf("cohere backend requires REVIEWQA_COHERE_API_KEY")
		}
		return NewCohere(cfg.Backend.CohereAPIKey, cfg.Backend.CohereModel, timeout), nil
	case "gemini":
		if cfg.Backend.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini backend requires REVIEWQA_GEMINI_API_KEY")
		}
		return NewGemini(cfg.Backend.GeminiAPIKey, cfg.Backend.GeminiModel, timeout), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}

// ValidKinds lists the accepted backend kinds, for CLI/API validation messages.
func ValidKinds() []string {
	return []string{"ollama", "cohere", "gemini"}
}

const defaultTimeout = 2 * time.Minute
