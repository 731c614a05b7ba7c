package sqlgen

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kalambet/reviewqa/internal/store"
)

// mockAgent implements QueryAgent with scripted responses and call counters.
type mockAgent struct {
	generateResp string
	generateErr  error
	relaxResp    string
	relaxErr     error
	repairResp   string
	repairErr    error

	generateCalls int
	relaxCalls    int
	repairCalls   int
	lastDiag      string
}

func (m *mockAgent) Generate(ctx context.Context, question string, kind QueryKind) (string, error) {
	m.generateCalls++
	return m.generateResp, m.generateErr
}

func (m *mockAgent) Relax(ctx context.Context, question, previousQuery string) (string, error) {
	m.relaxCalls++
	return m.relaxResp, m.relaxErr
}

func (m *mockAgent) RepairError(ctx context.Context, question, query, errMsg string) (string, error) {
	m.repairCalls++
	m.lastDiag = errMsg
	return m.repairResp, m.repairErr
}

// mockExec maps query text to a scripted Outcome.
type mockExec struct {
	outcomes map[string]store.Outcome
	calls    int
}

func (m *mockExec) Exec(ctx context.Context, query string) store.Outcome {
	m.calls++
	if out, ok := m.outcomes[query]; ok {
		return out
	}
	return store.Outcome{ErrMsg: fmt.Sprintf("unscripted query: %s", query)}
}

func fenced(q string) string {
	return "```sql\n" + q + "\n```"
}

func rowsOutcome(vals ...string) store.Outcome {
	out := store.Outcome{Columns: []string{"n"}}
	for _, v := range vals {
		out.Rows = append(out.Rows, []string{v})
	}
	return out
}

func TestController_SuccessFirstTry(t *testing.T) {
	agent := &mockAgent{generateResp: fenced("SELECT COUNT(*) FROM user_review;")}
	exec := &mockExec{outcomes: map[string]store.Outcome{
		"SELECT COUNT(*) FROM user_review;": rowsOutcome("42"),
	}}
	c := NewController(agent, exec)

	got, err := c.Retrieve(context.Background(), "how many reviews", KindAggregate)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.Rows[0][0] != "42" {
		t.Errorf("rows = %v, want [[42]]", got.Rows)
	}
	if agent.relaxCalls != 0 || agent.repairCalls != 0 {
		t.Errorf("relax=%d repair=%d, want 0/0 on clean success", agent.relaxCalls, agent.repairCalls)
	}
}

func TestController_EmptyThenRelaxSucceeds(t *testing.T) {
	agent := &mockAgent{
		generateResp: fenced("SELECT id FROM user_review WHERE year=1999;"),
		relaxResp:    fenced("SELECT id FROM user_review;"),
	}
	exec := &mockExec{outcomes: map[string]store.Outcome{
		"SELECT id FROM user_review WHERE year=1999;": {Columns: []string{"id"}},
		"SELECT id FROM user_review;":                 rowsOutcome("1", "2"),
	}}
	c := NewController(agent, exec)

	got, err := c.Retrieve(context.Background(), "reviews from 1999", KindFilter)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(got.Rows))
	}
	if got.Query != "SELECT id FROM user_review;" {
		t.Errorf("winning query = %q", got.Query)
	}
	if agent.relaxCalls != 1 {
		t.Errorf("relaxCalls = %d, want exactly 1", agent.relaxCalls)
	}
}

func TestController_EmptyAfterRelaxationFails(t *testing.T) {
	agent := &mockAgent{
		generateResp: fenced("SELECT id FROM user_review WHERE year=1999;"),
		relaxResp:    fenced("SELECT id FROM user_review WHERE year>1990;"),
	}
	exec := &mockExec{outcomes: map[string]store.Outcome{
		"SELECT id FROM user_review WHERE year=1999;": {Columns: []string{"id"}},
		"SELECT id FROM user_review WHERE year>1990;": {Columns: []string{"id"}},
	}}
	c := NewController(agent, exec)

	_, err := c.Retrieve(context.Background(), "reviews from 1999", KindFilter)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("Retrieve() error = %v, want ErrNoResults", err)
	}
	if agent.relaxCalls != 1 {
		t.Errorf("relaxCalls = %d, want exactly 1 (never loop)", agent.relaxCalls)
	}
	if agent.repairCalls != 0 {
		t.Errorf("repairCalls = %d, want 0 on the empty branch", agent.repairCalls)
	}
}

func TestController_ErrorThenRepairSucceeds(t *testing.T) {
	badQuery := "SELECT revew_rating FROM user_review;"
	agent := &mockAgent{
		generateResp: fenced(badQuery),
		repairResp:   fenced("SELECT review_rating FROM user_review;"),
	}
	exec := &mockExec{outcomes: map[string]store.Outcome{
		badQuery: {ErrMsg: "no such column: revew_rating"},
		"SELECT review_rating FROM user_review;": rowsOutcome("5"),
	}}
	c := NewController(agent, exec)

	got, err := c.Retrieve(context.Background(), "ratings", KindAggregate)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.Rows[0][0] != "5" {
		t.Errorf("rows = %v", got.Rows)
	}
	if agent.repairCalls != 1 {
		t.Errorf("repairCalls = %d, want exactly 1", agent.repairCalls)
	}
	if agent.lastDiag != "no such column: revew_rating" {
		t.Errorf("repair received diagnostic %q, want verbatim engine text", agent.lastDiag)
	}
	if agent.relaxCalls != 0 {
		t.Errorf("relaxCalls = %d, want 0 on the error branch", agent.relaxCalls)
	}
}

func TestController_ErrorAfterRepairFails(t *testing.T) {
	agent := &mockAgent{
		generateResp: fenced("SELECT bogus FROM user_review;"),
		repairResp:   fenced("SELECT still_bogus FROM user_review;"),
	}
	exec := &mockExec{outcomes: map[string]store.Outcome{
		"SELECT bogus FROM user_review;":       {ErrMsg: "no such column: bogus"},
		"SELECT still_bogus FROM user_review;": {ErrMsg: "no such column: still_bogus"},
	}}
	c := NewController(agent, exec)

	_, err := c.Retrieve(context.Background(), "q", KindAggregate)
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("Retrieve() error = %v, want *ExecError", err)
	}
	if execErr.Diagnostic != "no such column: still_bogus" {
		t.Errorf("Diagnostic = %q, want the last engine message", execErr.Diagnostic)
	}
	if agent.repairCalls != 1 {
		t.Errorf("repairCalls = %d, want exactly 1 (never loop)", agent.repairCalls)
	}
}

func TestController_NoQueryExtracted(t *testing.T) {
	agent := &mockAgent{generateResp: "I am unable to help with that."}
	exec := &mockExec{}
	c := NewController(agent, exec)

	_, err := c.Retrieve(context.Background(), "q", KindAggregate)
	if !errors.Is(err, ErrNoQuery) {
		t.Fatalf("Retrieve() error = %v, want ErrNoQuery", err)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times, want 0 when extraction fails", exec.calls)
	}
}

// A filter-path query that breaks the fixed SELECT shape must never execute.
func TestController_FilterContractViolation(t *testing.T) {
	agent := &mockAgent{generateResp: fenced("SELECT id, review_text FROM user_review WHERE year=2014;")}
	exec := &mockExec{}
	c := NewController(agent, exec)

	_, err := c.Retrieve(context.Background(), "negative reviews in 2014", KindFilter)
	if !errors.Is(err, ErrNoQuery) {
		t.Fatalf("Retrieve() error = %v, want ErrNoQuery", err)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times, want 0 for a rejected filter query", exec.calls)
	}
}

func TestController_TransportFailure(t *testing.T) {
	agent := &mockAgent{generateErr: errors.New("connection refused")}
	c := NewController(agent, &mockExec{})

	_, err := c.Retrieve(context.Background(), "q", KindAggregate)
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Retrieve() error = %v, want ErrNoResponse", err)
	}
}

func TestController_RelaxedUnextractable(t *testing.T) {
	agent := &mockAgent{
		generateResp: fenced("SELECT id FROM user_review WHERE year=1999;"),
		relaxResp:    "sorry, no better idea",
	}
	exec := &mockExec{outcomes: map[string]store.Outcome{
		"SELECT id FROM user_review WHERE year=1999;": {Columns: []string{"id"}},
	}}
	c := NewController(agent, exec)

	_, err := c.Retrieve(context.Background(), "q", KindFilter)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("Retrieve() error = %v, want ErrNoResults", err)
	}
}
