package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/reviewqa/internal/api"
	"github.com/kalambet/reviewqa/internal/backend"
	"github.com/kalambet/reviewqa/internal/config"
	"github.com/kalambet/reviewqa/internal/ingest"
	"github.com/kalambet/reviewqa/internal/retrieval"
	"github.com/kalambet/reviewqa/internal/store"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the review corpus",
	Long: `Ask a question about the review corpus.

Examples:
  reviewqa ask "how many negative reviews were left in 2014?"
  reviewqa ask --backend cohere "what do users think of shuffle mode?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		backendName, _ := cmd.Flags().GetString("backend")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := api.AskRequest{Question: question, Backend: backendName}
		resp, err := client.post(cmd.Context(), "/v1/ask", req)
		if err != nil {
			return err
		}

		var result api.AskResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, result.Answer)
		printStatus("Intent", "%s", result.Intent)
		printStatus("Backend", "%s", result.Backend)
		if result.Query != "" {
			printStatus("Query", "%s", result.Query)
		}
		return nil
	},
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a review CSV into the local database",
	Long: `Load a review CSV into the local database.

Runs offline against the data directory; stop the server first. Reviews are
cleaned (emoji stripped, short texts dropped) and labeled with sentiment.

Example:
  reviewqa ingest --csv ./spotify_reviews.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		csvPath, _ := cmd.Flags().GetString("csv")
		if csvPath == "" {
			return fmt.Errorf("--csv is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		st, err := store.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		printStep("Loading reviews from %s", csvPath)
		n, err := ingest.LoadCSV(csvPath, st)
		if err != nil {
			return err
		}

		printSuccess("Ingested %d reviews", n)
		printStep("Run `reviewqa index` to build the similarity index")
		return nil
	},
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed stored reviews and build the similarity index",
	Long: `Embed stored reviews and build the similarity index.

Requires a running Ollama instance with the embedding model pulled. Runs
offline against the data directory; stop the server first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		ollama := backend.NewOllama(cfg.Backend.OllamaBaseURL, cfg.Backend.OllamaModel, cfg.RequestTimeout())
		if !ollama.IsRunning(cmd.Context()) {
			return fmt.Errorf("Ollama is not reachable at %s", cfg.Backend.OllamaBaseURL)
		}

		st, err := store.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		embedder := retrieval.NewEmbedder(ollama, cfg.Backend.EmbedModel)
		path := indexPath(cfg.Storage.DataDir)

		printStep("Embedding reviews with %s and building the index", cfg.Backend.EmbedModel)
		start := time.Now()
		n, err := ingest.BuildIndex(cmd.Context(), st, embedder, path, cfg.Search.NList)
		if err != nil {
			return err
		}

		printSuccess("Indexed %d reviews in %s (%s)", n, time.Since(start).Round(time.Second), path)
		return nil
	},
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "List recently answered questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/interactions?limit=%d", limit))
		if err != nil {
			return err
		}

		var interactions []store.Interaction
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Fprintln(os.Stdout, "no interactions yet")
			return nil
		}
		for _, i := range interactions {
			marker := colorize(colorGreen, "✓")
			if i.Status != "answered" {
				marker = colorize(colorRed, "✗")
			}
			fmt.Fprintf(os.Stdout, "%s %s  [%s/%s]  %s\n",
				marker, i.CreatedAt.Local().Format("2006-01-02 15:04"), i.Intent, i.Backend, i.Question)
		}
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reviewqa system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		if healthCheck(cfg.Server.Port) {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "stopped")
		}

		ollama := backend.NewOllama(cfg.Backend.OllamaBaseURL, cfg.Backend.OllamaModel, cfg.RequestTimeout())
		if ollama.IsRunning(cmd.Context()) {
			printStatus("Ollama", "running at %s", cfg.Backend.OllamaBaseURL)
		} else {
			printStatus("Ollama", "not running")
		}

		printStatus("Backend", "%s", cfg.Backend.Kind)
		printStatus("Embed model", "%s", cfg.Backend.EmbedModel)

		if st, err := store.Open(cfg.Storage.DataDir); err == nil {
			if n, err := st.CountReviews(); err == nil {
				printStatus("Reviews", "%d", n)
			}
			st.Close()
		}
		if _, err := os.Stat(indexPath(cfg.Storage.DataDir)); err == nil {
			printStatus("Index", "built")
		} else {
			printStatus("Index", "not built")
		}

		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration (secrets hidden)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, kv := range config.ShowAll(cfg) {
			fmt.Fprintf(os.Stdout, "%-24s %-32s %s\n", kv.Key, kv.EnvVar, kv.Value)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("backend", "", "LLM backend to use (ollama, cohere, gemini)")
	ingestCmd.Flags().String("csv", "", "path to the review CSV file")
	interactionsCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	configCmd.AddCommand(configShowCmd)
}
