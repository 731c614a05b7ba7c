package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/reviewqa/internal/retrieval"
)

// ReviewSearcher abstracts similarity search for the MCP layer.
type ReviewSearcher interface {
	Search(ctx context.Context, question string, topK, nProbe int) ([]retrieval.Passage, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Routers        map[string]QuestionRouter
	DefaultBackend string
	Searcher       ReviewSearcher
	Interactions   InteractionReader
	NProbe         int

	// AskTimeout bounds one ask_reviews call end to end. Zero means no
	// deadline.
	AskTimeout time.Duration
}

// NewMCPServer creates an MCP server exposing the review Q&A system as tools:
// ask_reviews runs the full routed pipeline, search_reviews does raw
// similarity search without answer composition.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"reviewqa",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("reviewqa — natural-language Q&A over a corpus of app-store user reviews."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_reviews",
			mcp.WithDescription("Answer a natural-language question about the review corpus (counts, filtered digests, or general impressions)."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("backend", mcp.Description("LLM backend to use (defaults to the configured one)")),
		),
		mcpAskReviews(deps),
	)

	s.AddTool(
		mcp.NewTool("search_reviews",
			mcp.WithDescription("Semantically search review texts and return the closest matches with scores."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchReviews(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"reviewqa://interactions/recent",
			"Recent Interactions",
			mcp.WithResourceDescription("Last 10 answered questions as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAskReviews(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		name := req.GetString("backend", deps.DefaultBackend)
		router, ok := deps.Routers[name]
		if !ok {
			return mcpError(fmt.Sprintf("backend %q is not configured", name)), nil
		}

		if deps.AskTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.AskTimeout)
			defer cancel()
		}

		ans, err := router.Route(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("could not answer: %v", err)), nil
		}
		return mcpText(ans.Text), nil
	}
}

func mcpSearchReviews(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		passages, err := deps.Searcher.Search(ctx, query, limit, deps.NProbe)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(passages) == 0 {
			return mcpText("[]"), nil
		}

		type passageResult struct {
			ReviewID int64   `json:"review_id"`
			Text     string  `json:"text"`
			Rating   int     `json:"rating"`
			Score    float32 `json:"score"`
		}
		results := make([]passageResult, len(passages))
		for i, p := range passages {
			results[i] = passageResult{ReviewID: p.ReviewID, Text: p.Text, Rating: p.Rating, Score: p.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.Interactions.GetRecentInteractions(10)
		if err != nil {
			return nil, fmt.Errorf("loading interactions: %w", err)
		}

		b, err := json.Marshal(interactions)
		if err != nil {
			return nil, fmt.Errorf("marshaling interactions: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
