package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "REVIEWQA_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "REVIEWQA_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "backend.kind", typ: kString, env: "REVIEWQA_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Backend.Kind = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Kind },
	},
	{
		key: "backend.ollama_base_url", typ: kString, env: "REVIEWQA_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Backend.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.OllamaBaseURL },
	},
	{
		key: "backend.ollama_model", typ: kString, env: "REVIEWQA_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Backend.OllamaModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.OllamaModel },
	},
	{
		key: "backend.embed_model", typ: kString, env: "REVIEWQA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Backend.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.EmbedModel },
	},
	{
		key: "backend.cohere_api_key", typ: kString, env: "REVIEWQA_COHERE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Backend.CohereAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.CohereAPIKey },
	},
	{
		key: "backend.cohere_model", typ: kString, env: "REVIEWQA_COHERE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Backend.CohereModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.CohereModel },
	},
	{
		key: "backend.gemini_api_key", typ: kString, env: "REVIEWQA_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Backend.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.GeminiAPIKey },
	},
	{
		key: "backend.gemini_model", typ: kString, env: "REVIEWQA_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Backend.GeminiModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.GeminiModel },
	},
	{
		key: "backend.request_timeout", typ: kString, env: "REVIEWQA_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Backend.RequestTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.RequestTimeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "REVIEWQA_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "search.top_k", typ: kInt, env: "REVIEWQA_SEARCH_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Search.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.TopK },
	},
	{
		key: "search.nprobe", typ: kInt, env: "REVIEWQA_SEARCH_NPROBE",
		apply:   func(cfg *Config, v any) { cfg.Search.NProbe = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.NProbe },
	},
	{
		key: "search.nlist", typ: kInt, env: "REVIEWQA_SEARCH_NLIST",
		apply:   func(cfg *Config, v any) { cfg.Search.NList = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.NList },
	},
	{
		key: "log.level", typ: kString, env: "REVIEWQA_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs from the current config.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}
