package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoAnswer is returned when the backend produces no usable text.
var ErrNoAnswer = errors.New("no answer from backend")

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Composer turns retrieved context into a natural-language answer with a
// single backend call. It never retries and never truncates the context;
// callers bound context size before composing.
type Composer struct {
	backend Generator
}

// NewComposer creates a Composer over the given backend.
func NewComposer(backend Generator) *Composer {
	return &Composer{backend: backend}
}

const rowsPromptTemplate = `From this query:
%s

We got result:
%s

Answer this question based on the result above to make a comprehensive but not verbose answer:
Question: %s`

// ComposeFromRows answers the question from an executed query and its result
// set. The prompt shows the model both the query and the rendered rows, so
// the answer can name what was measured.
func (c *Composer) ComposeFromRows(ctx context.Context, question, query string, columns []string, rows [][]string) (string, error) {
	prompt := fmt.Sprintf(rowsPromptTemplate, query, RenderRows(columns, rows), question)
	return c.generate(ctx, prompt)
}

const passagesPromptTemplate = `Using the following context:
%s
Answer the question:
Question: %s`

// ComposeFromPassages answers the question from retrieved review texts.
func (c *Composer) ComposeFromPassages(ctx context.Context, question string, texts []string) (string, error) {
	var sb strings.Builder
	for _, t := range texts {
		sb.WriteString("Text: ")
		sb.WriteString(t)
		sb.WriteString("\n\n")
	}
	prompt := fmt.Sprintf(passagesPromptTemplate, sb.String(), question)
	return c.generate(ctx, prompt)
}

func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.backend.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("composing answer: %w", err)
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", ErrNoAnswer
	}
	return resp, nil
}
