package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/reviewqa/internal/answer"
	"github.com/kalambet/reviewqa/internal/backend"
	"github.com/kalambet/reviewqa/internal/retrieval"
	"github.com/kalambet/reviewqa/internal/sqlgen"
	"github.com/kalambet/reviewqa/internal/store"
)

// noMatchText is the answer given when retrieval succeeded but matched
// nothing. This is a valid outcome, not a failure.
const noMatchText = "No matching reviews were found for this question."

// Answer is the result of routing one question end to end.
type Answer struct {
	ID      string
	Intent  Intent
	Backend string
	Query   string // winning SQL query, when a SQL path ran
	Text    string
}

// Pipeline classifies incoming questions and routes each to one of three
// retrieval strategies: SQL aggregation, SQL filter plus similarity re-rank,
// or direct similarity search. Every question is logged to the interaction
// table regardless of outcome.
type Pipeline struct {
	backend    backend.Backend
	controller *sqlgen.Controller
	searcher   *retrieval.Searcher
	composer   *answer.Composer
	store      *store.Store
	topK       int
	nProbe     int
}

// NewPipeline wires a Pipeline from its components. topK and nProbe fall back
// to 5 and 10 when non-positive.
func NewPipeline(
	b backend.Backend,
	controller *sqlgen.Controller,
	searcher *retrieval.Searcher,
	composer *answer.Composer,
	st *store.Store,
	topK, nProbe int,
) *Pipeline {
	if topK <= 0 {
		topK = 5
	}
	if nProbe <= 0 {
		nProbe = 10
	}
	return &Pipeline{
		backend:    b,
		controller: controller,
		searcher:   searcher,
		composer:   composer,
		store:      st,
		topK:       topK,
		nProbe:     nProbe,
	}
}

// Classify asks the backend to pick a retrieval strategy for the question.
// An unreachable backend or an unparsable response both degrade to direct
// similarity search; classification never fails a question on its own.
func (p *Pipeline) Classify(ctx context.Context, question string) Intent {
	resp, err := p.backend.Generate(ctx, RouterPrompt(question))
	if err != nil {
		slog.Warn("classification failed, defaulting to direct", "error", err)
		return IntentDirect
	}
	intent := ParseIntent(resp)
	slog.Debug("question classified", "intent", intent)
	return intent
}

// Route answers the question via the strategy Classify picked and records the
// interaction. The returned error is one of the sqlgen fail reasons (or a
// composer/search error); the answer text is never partially filled.
func (p *Pipeline) Route(ctx context.Context, question string) (Answer, error) {
	intent := p.Classify(ctx, question)
	ans := Answer{ID: uuid.NewString(), Intent: intent, Backend: p.backend.Name()}

	var err error
	switch intent {
	case IntentAggregate:
		err = p.answerAggregate(ctx, question, &ans)
	case IntentFilter:
		err = p.answerFilter(ctx, question, &ans)
	default:
		err = p.answerDirect(ctx, question, &ans)
	}

	status := "answered"
	if err != nil {
		status = "failed"
	}
	if saveErr := p.store.SaveInteraction(store.Interaction{
		ID:        ans.ID,
		CreatedAt: time.Now(),
		Question:  question,
		Intent:    string(intent),
		Backend:   ans.Backend,
		Answer:    ans.Text,
		Status:    status,
	}); saveErr != nil {
		slog.Error("could not log interaction", "id", ans.ID, "error", saveErr)
	}

	if err != nil {
		return Answer{}, err
	}
	return ans, nil
}

func (p *Pipeline) answerAggregate(ctx context.Context, question string, ans *Answer) error {
	ret, err := p.controller.Retrieve(ctx, question, sqlgen.KindAggregate)
	if err != nil {
		return err
	}
	ans.Query = ret.Query
	if len(ret.Rows) == 0 {
		ans.Text = noMatchText
		return nil
	}

	text, err := p.composer.ComposeFromRows(ctx, question, ret.Query, ret.Columns, ret.Rows)
	if err != nil {
		return err
	}
	ans.Text = text
	return nil
}

func (p *Pipeline) answerFilter(ctx context.Context, question string, ans *Answer) error {
	ret, err := p.controller.Retrieve(ctx, question, sqlgen.KindFilter)
	if err != nil {
		return err
	}
	ans.Query = ret.Query

	var ids []int64
	for _, row := range ret.Rows {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			slog.Warn("skipping non-numeric id from filter query", "value", row[0])
			continue
		}
		ids = append(ids, id)
	}

	passages, err := p.searcher.SearchWithin(ctx, question, ids, p.topK)
	if err != nil {
		return err
	}
	return p.composeFromPassages(ctx, question, passages, ans)
}

func (p *Pipeline) answerDirect(ctx context.Context, question string, ans *Answer) error {
	passages, err := p.searcher.Search(ctx, question, p.topK, p.nProbe)
	if err != nil {
		return err
	}
	return p.composeFromPassages(ctx, question, passages, ans)
}

func (p *Pipeline) composeFromPassages(ctx context.Context, question string, passages []retrieval.Passage, ans *Answer) error {
	if len(passages) == 0 {
		ans.Text = noMatchText
		return nil
	}

	texts := make([]string, len(passages))
	for i, pass := range passages {
		texts[i] = pass.Text
	}
	text, err := p.composer.ComposeFromPassages(ctx, question, texts)
	if err != nil {
		return err
	}
	ans.Text = text
	return nil
}
