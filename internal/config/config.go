package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for reviewqa.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Storage StorageConfig
	Search  SearchConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

// BackendConfig selects the answer-generating LLM backend and its credentials.
// Kind is one of "ollama", "cohere", "gemini".
type BackendConfig struct {
	Kind string

	OllamaBaseURL string
	OllamaModel   string
	EmbedModel    string

	CohereAPIKey string
	CohereModel  string

	GeminiAPIKey string
	GeminiModel  string

	// RequestTimeout bounds every outbound LLM call. The value is stored as a
	// duration string ("120s") so it can come from the environment.
	RequestTimeout string
}

type StorageConfig struct {
	DataDir string
}

type SearchConfig struct {
	TopK   int
	NProbe int
	NList  int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4200,
			MCPPort: 4201,
		},
		Backend: BackendConfig{
			Kind:           "ollama",
			OllamaBaseURL:  "http://localhost:11434",
			OllamaModel:    "llama3.2",
			EmbedModel:     "nomic-embed-text",
			CohereModel:    "command-r-plus-08-2024",
			GeminiModel:    "gemini-1.5-flash",
			RequestTimeout: "120s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			TopK:   5,
			NProbe: 10,
			NList:  100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "reviewqa")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reviewqa"
	}
	return filepath.Join(home, ".local", "share", "reviewqa")
}

// Load reads configuration from an optional .env file in the working directory
// and REVIEWQA_* environment variables. Environment variables win over .env,
// which wins over defaults. API keys are only ever read from the environment.
func Load() (Config, error) {
	// Missing .env is fine; env vars and defaults still apply.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Backend.Kind {
	case "ollama":
		// Local backend, no credentials required.
	case "cohere":
		if cfg.Backend.CohereAPIKey == "" {
			return fmt.Errorf("backend %q selected but REVIEWQA_COHERE_API_KEY is not set", cfg.Backend.Kind)
		}
	case "gemini":
		if cfg.Backend.GeminiAPIKey == "" {
			return fmt.Errorf("backend %q selected but REVIEWQA_GEMINI_API_KEY is not set", cfg.Backend.Kind)
		}
	default:
		return fmt.Errorf("unknown backend kind %q (expected ollama, cohere, or gemini)", cfg.Backend.Kind)
	}

	if _, err := time.ParseDuration(cfg.Backend.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request timeout %q: %w", cfg.Backend.RequestTimeout, err)
	}
	if cfg.Search.TopK <= 0 {
		return fmt.Errorf("search top_k must be positive, got %d", cfg.Search.TopK)
	}
	if cfg.Search.NProbe <= 0 {
		return fmt.Errorf("search nprobe must be positive, got %d", cfg.Search.NProbe)
	}
	return nil
}

// RequestTimeout returns the parsed per-call timeout. Load guarantees the
// stored string parses, so the zero duration is only possible on a hand-built
// Config; fall back to two minutes in that case.
func (c Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.RequestTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}
