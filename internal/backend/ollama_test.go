package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaGenerate_StreamReassembly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"response":"SELECT ","done":false}` + "\n"))
		w.Write([]byte(`{"response":"COUNT(*) ","done":false}` + "\n"))
		w.Write([]byte(`{"response":"FROM user_review;","done":true}` + "\n"))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	got, err := o.Generate(context.Background(), "how many reviews")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	want := "SELECT COUNT(*) FROM user_review;"
	if got != want {
		t.Errorf("Generate() = %q, want %q", got, want)
	}
}

func TestOllamaGenerate_SkipsUndecodableLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"hello","done":false}` + "\n"))
		w.Write([]byte("not json at all\n"))
		w.Write([]byte(`{"response":" world","done":true}` + "\n"))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	got, err := o.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "hello world" {
		t.Errorf("Generate() = %q, want %q", got, "hello world")
	}
}

func TestOllamaGenerate_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	if _, err := o.Generate(context.Background(), "q"); err == nil {
		t.Fatal("Generate() = nil error, want failure on 500")
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	vec, err := o.Embed(context.Background(), "nomic-embed-text", "some review")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("Embed() returned %d dims, want 3", len(vec))
	}
}

func TestOllamaEmbed_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	if _, err := o.Embed(context.Background(), "nomic-embed-text", "text"); err == nil {
		t.Fatal("Embed() = nil error, want failure on empty embeddings")
	}
}
