package sqlgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/reviewqa/internal/store"
)

// Fail reasons surfaced by the controller. Callers render these as
// "could not answer" / "no matching data"; the raw reasons never reach the
// end user directly.
var (
	// ErrNoQuery means no parsable query could be extracted from the
	// model's output.
	ErrNoQuery = errors.New("no query extracted")

	// ErrNoResults means the query and its single relaxed variant both
	// matched nothing.
	ErrNoResults = errors.New("no results after relaxation")

	// ErrNoResponse means the backend was unreachable or returned nothing.
	ErrNoResponse = errors.New("no response from backend")
)

// ExecError reports an unrecoverable query failure: the original query
// errored and the single repair attempt errored too (or produced nothing
// parsable). Diagnostic carries the engine's last message.
type ExecError struct {
	Query      string
	Diagnostic string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("unrecoverable query error: %s", e.Diagnostic)
}

// Executor runs a query against the review store.
type Executor interface {
	Exec(ctx context.Context, query string) store.Outcome
}

// QueryAgent generates, relaxes, and repairs queries via an LLM backend.
type QueryAgent interface {
	Generate(ctx context.Context, question string, kind QueryKind) (string, error)
	Relax(ctx context.Context, question, previousQuery string) (string, error)
	RepairError(ctx context.Context, question, query, errMsg string) (string, error)
}

// Retrieved is the successful result of the retrieve-repair loop: the query
// that won, and the rows it produced.
type Retrieved struct {
	Query   string
	Columns []string
	Rows    [][]string
}

// Controller drives the classify-generate-execute-repair loop for SQL
// retrieval. The retry policy is fixed: at most one relax attempt for an
// empty result and one repair attempt for an execution error, per question.
// Each attempt is a paid network call, so the bound is deliberate; the two
// failure shapes are never conflated because their repair prompts differ.
type Controller struct {
	agent QueryAgent
	exec  Executor
}

// NewController creates a Controller over the given agent and executor.
func NewController(agent QueryAgent, exec Executor) *Controller {
	return &Controller{agent: agent, exec: exec}
}

// Retrieve generates a query for the question, executes it, and repairs it
// at most once per failure branch. On success the winning query and its rows
// come back; empty rows after a successful repair are a valid result and the
// caller decides how to present them.
func (c *Controller) Retrieve(ctx context.Context, question string, kind QueryKind) (Retrieved, error) {
	raw, err := c.agent.Generate(ctx, question, kind)
	if err != nil || raw == "" {
		return Retrieved{}, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	query, ok := extractValid(raw, kind)
	if !ok {
		return Retrieved{}, ErrNoQuery
	}
	slog.Debug("query extracted", "kind", kind, "query", query)

	out := c.exec.Exec(ctx, query)
	switch {
	case out.Failed():
		return c.repairOnce(ctx, question, kind, query, out.ErrMsg)
	case out.Empty():
		return c.relaxOnce(ctx, question, kind, query)
	}

	return Retrieved{Query: query, Columns: out.Columns, Rows: out.Rows}, nil
}

// extractValid pulls a query out of raw model output and, on the filter
// path, checks it kept the fixed SELECT shape before it can reach execution.
func extractValid(raw string, kind QueryKind) (string, bool) {
	query, ok := ExtractQuery(raw)
	if !ok {
		return "", false
	}
	if kind == KindFilter {
		if err := ValidateFilterQuery(query); err != nil {
			slog.Warn("rejecting filter query", "query", query, "error", err)
			return "", false
		}
	}
	return query, true
}

// relaxOnce handles the EmptyRetry branch: one relax attempt, then fail.
func (c *Controller) relaxOnce(ctx context.Context, question string, kind QueryKind, prevQuery string) (Retrieved, error) {
	slog.Debug("empty result, relaxing query", "query", prevQuery)

	raw, err := c.agent.Relax(ctx, question, prevQuery)
	if err != nil || raw == "" {
		return Retrieved{}, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	relaxed, ok := extractValid(raw, kind)
	if !ok {
		return Retrieved{}, ErrNoResults
	}

	out := c.exec.Exec(ctx, relaxed)
	switch {
	case out.Failed():
		return Retrieved{}, &ExecError{Query: relaxed, Diagnostic: out.ErrMsg}
	case out.Empty():
		return Retrieved{}, ErrNoResults
	}

	return Retrieved{Query: relaxed, Columns: out.Columns, Rows: out.Rows}, nil
}

// repairOnce handles the ErrorRetry branch: one repair attempt carrying the
// engine's diagnostic verbatim, then fail surfacing the last error message.
func (c *Controller) repairOnce(ctx context.Context, question string, kind QueryKind, prevQuery, diagnostic string) (Retrieved, error) {
	slog.Debug("execution error, repairing query", "query", prevQuery, "error", diagnostic)

	raw, err := c.agent.RepairError(ctx, question, prevQuery, diagnostic)
	if err != nil || raw == "" {
		return Retrieved{}, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	repaired, ok := extractValid(raw, kind)
	if !ok {
		return Retrieved{}, &ExecError{Query: prevQuery, Diagnostic: diagnostic}
	}

	out := c.exec.Exec(ctx, repaired)
	if out.Failed() {
		return Retrieved{}, &ExecError{Query: repaired, Diagnostic: out.ErrMsg}
	}

	return Retrieved{Query: repaired, Columns: out.Columns, Rows: out.Rows}, nil
}
