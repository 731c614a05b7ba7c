package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/reviewqa/internal/answer"
	"github.com/kalambet/reviewqa/internal/api"
	"github.com/kalambet/reviewqa/internal/backend"
	"github.com/kalambet/reviewqa/internal/config"
	"github.com/kalambet/reviewqa/internal/pipeline"
	"github.com/kalambet/reviewqa/internal/retrieval"
	"github.com/kalambet/reviewqa/internal/sqlgen"
	"github.com/kalambet/reviewqa/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reviewqa server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// indexFileName is the on-disk name of the similarity index inside the data dir.
const indexFileName = "reviews.index"

func indexPath(dataDir string) string {
	return filepath.Join(dataDir, indexFileName)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// loadIndex reads the saved similarity index, or returns an empty one when no
// index has been built yet. Serving without an index still answers aggregate
// questions; similarity paths report no matches until `reviewqa index` runs.
func loadIndex(dataDir string) *retrieval.Index {
	path := indexPath(dataDir)
	ix, err := retrieval.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("similarity index not found; run `reviewqa ingest` and `reviewqa index` first", "path", path)
		} else {
			slog.Warn("could not load similarity index", "path", path, "error", err)
		}
		return retrieval.NewIndex()
	}
	slog.Info("similarity index loaded", "path", path, "vectors", ix.Len())
	return ix
}

// buildRouters wires one full question pipeline per usable backend. The
// configured default must construct; others are optional and skipped when
// their credentials are absent.
func buildRouters(cfg config.Config, st *store.Store, searcher *retrieval.Searcher) (map[string]api.QuestionRouter, error) {
	routers := make(map[string]api.QuestionRouter)
	for _, kind := range backend.ValidKinds() {
		b, err := backend.NewKind(kind, cfg)
		if err != nil {
			if kind == cfg.Backend.Kind {
				return nil, fmt.Errorf("configuring default backend: %w", err)
			}
			slog.Debug("backend not configured, skipping", "kind", kind, "error", err)
			continue
		}
		controller := sqlgen.NewController(sqlgen.NewAgent(b), st)
		composer := answer.NewComposer(b)
		routers[kind] = pipeline.NewPipeline(b, controller, searcher, composer, st, cfg.Search.TopK, cfg.Search.NProbe)
	}
	return routers, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "reviewqa version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing store: %v\n", err)
		}
	}()

	// Embeddings always go through Ollama, whichever backend answers.
	ollama := backend.NewOllama(cfg.Backend.OllamaBaseURL, cfg.Backend.OllamaModel, cfg.RequestTimeout())
	if !ollama.IsRunning(ctx) {
		printWarning("Ollama is not reachable at %s; similarity search will fail until it is running", cfg.Backend.OllamaBaseURL)
	}
	embedder := retrieval.NewEmbedder(ollama, cfg.Backend.EmbedModel)

	ix := loadIndex(cfg.Storage.DataDir)
	meta := retrieval.NewMetadataStore(st.DB())
	searcher := retrieval.NewSearcher(embedder, ix, meta)

	routers, err := buildRouters(cfg, st, searcher)
	if err != nil {
		return err
	}
	slog.Info("backends configured", "default", cfg.Backend.Kind, "count", len(routers))

	// A routed question chains several LLM calls (classify, generate, at
	// most one relax or repair, compose); bound the whole chain, not just
	// each call.
	askTimeout := cfg.RequestTimeout() * 3

	handler := api.NewHandler(api.Deps{
		Routers:        routers,
		DefaultBackend: cfg.Backend.Kind,
		Interactions:   st,
		AskTimeout:     askTimeout,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on its own port, streamable HTTP transport.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Routers:        routers,
		DefaultBackend: cfg.Backend.Kind,
		Searcher:       searcher,
		Interactions:   st,
		NProbe:         cfg.Search.NProbe,
		AskTimeout:     askTimeout,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	go func() {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := mcpHTTP.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "reviewqa listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP server shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}
