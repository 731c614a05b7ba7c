package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const cohereBaseURL = "https://api.cohere.com/v2"

// Cohere calls the Cohere v2 chat API with a single user message per request.
type Cohere struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewCohere creates a Cohere backend with the given API key and model.
func NewCohere(apiKey, model string, timeout time.Duration) *Cohere {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Cohere{
		apiKey:  apiKey,
		model:   model,
		baseURL: cohereBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewCohereWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewCohereWithBaseURL(apiKey, model, baseURL string, timeout time.Duration) *Cohere {
	c := NewCohere(apiKey, model, timeout)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Cohere) Name() string { return "cohere" }

type cohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cohereChatRequest struct {
	Model    string          `json:"model"`
	Messages []cohereMessage `json:"messages"`
}

type cohereChatResponse struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

func (c *Cohere) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(cohereChatRequest{
		Model:    c.model,
		Messages: []cohereMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result cohereChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}

	if len(result.Message.Content) == 0 {
		return "", fmt.Errorf("chat: empty message content")
	}
	return result.Message.Content[0].Text, nil
}
