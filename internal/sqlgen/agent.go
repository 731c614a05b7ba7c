package sqlgen

import (
	"context"
	"fmt"

	"github.com/kalambet/reviewqa/internal/backend"
)

// Agent turns questions into raw model output containing (hopefully) a SQL
// query. Each method renders one deterministic prompt and makes exactly one
// backend call. No retries here: transport failures propagate to the
// controller, which treats them as "no response".
type Agent struct {
	backend backend.Backend
}

// NewAgent creates an Agent bound to one backend for its lifetime.
func NewAgent(b backend.Backend) *Agent {
	return &Agent{backend: b}
}

// Generate asks for a query answering the question, using the prompt variant
// selected by kind.
func (a *Agent) Generate(ctx context.Context, question string, kind QueryKind) (string, error) {
	var prompt string
	switch kind {
	case KindAggregate:
		prompt = AggregatePrompt(question)
	case KindFilter:
		prompt = FilterPrompt(question)
	default:
		return "", fmt.Errorf("unknown query kind %q", kind)
	}
	return a.backend.Generate(ctx, prompt)
}

// Relax asks for a less restrictive version of a query that matched nothing.
func (a *Agent) Relax(ctx context.Context, question, previousQuery string) (string, error) {
	return a.backend.Generate(ctx, RelaxPrompt(question, previousQuery))
}

// RepairError asks for a corrected version of a query the engine rejected,
// passing the diagnostic text through verbatim.
func (a *Agent) RepairError(ctx context.Context, question, query, errMsg string) (string, error) {
	return a.backend.Generate(ctx, RepairPrompt(question, query, errMsg))
}
