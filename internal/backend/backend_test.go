package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kalambet/reviewqa/internal/config"
)

func TestCohereGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"message":{"content":[{"type":"text","text":"the answer"}]}}`))
	}))
	defer srv.Close()

	c := NewCohereWithBaseURL("test-key", "command-r-plus-08-2024", srv.URL, 5*time.Second)
	got, err := c.Generate(context.Background(), "question")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "the answer" {
		t.Errorf("Generate() = %q, want %q", got, "the answer")
	}
}

func TestCohereGenerate_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewCohereWithBaseURL("test-key", "command-r-plus-08-2024", srv.URL, 5*time.Second)
	if _, err := c.Generate(context.Background(), "q"); err == nil {
		t.Fatal("Generate() = nil error, want failure on 429")
	}
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key query param = %q", r.URL.Query().Get("key"))
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"gemini says"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGeminiWithBaseURL("test-key", "gemini-1.5-flash", srv.URL, 5*time.Second)
	got, err := g.Generate(context.Background(), "question")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "gemini says" {
		t.Errorf("Generate() = %q, want %q", got, "gemini says")
	}
}

func TestGeminiGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g := NewGeminiWithBaseURL("test-key", "gemini-1.5-flash", srv.URL, 5*time.Second)
	if _, err := g.Generate(context.Background(), "q"); err == nil {
		t.Fatal("Generate() = nil error, want failure on empty candidates")
	}
}

func TestNewKind(t *testing.T) {
	cfg := config.Config{}
	cfg.Backend.OllamaBaseURL = "http://localhost:11434"
	cfg.Backend.OllamaModel = "llama3.2"
	cfg.Backend.RequestTimeout = "30s"

	b, err := NewKind("ollama", cfg)
	if err != nil {
		t.Fatalf("NewKind(ollama) error = %v", err)
	}
	if b.Name() != "ollama" {
		t.Errorf("Name() = %q, want ollama", b.Name())
	}

	if _, err := NewKind("cohere", cfg); err == nil {
		t.Error("NewKind(cohere) without key = nil error, want failure")
	}

	if _, err := NewKind("unknown", cfg); err == nil {
		t.Error("NewKind(unknown) = nil error, want failure")
	}
}
