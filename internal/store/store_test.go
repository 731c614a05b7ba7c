package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedReviews(t *testing.T, s *Store) {
	t.Helper()
	reviews := []Review{
		{ID: 1, ReviewID: uuid.NewString(), Text: "Use it every single day for music and podcasts on my commute", Rating: 5, Sentiment: "positive", Year: 2014, Month: 5, Day: 27},
		{ID: 2, ReviewID: uuid.NewString(), Text: "The shuffle keeps playing the same ten songs over and over again", Rating: 2, Sentiment: "negative", Year: 2014, Month: 8, Day: 3},
		{ID: 3, ReviewID: uuid.NewString(), Text: "It works but the ads are far too frequent for my taste lately", Rating: 3, Sentiment: "neutral", Year: 2015, Month: 1, Day: 12},
	}
	if err := s.InsertReviews(reviews); err != nil {
		t.Fatalf("InsertReviews() error = %v", err)
	}
}

func TestSentimentForRating(t *testing.T) {
	cases := []struct {
		rating int
		want   string
	}{
		{1, "negative"},
		{2, "negative"},
		{3, "neutral"},
		{4, "positive"},
		{5, "positive"},
		{0, "unknown"},
		{7, "unknown"},
	}
	for _, tc := range cases {
		if got := SentimentForRating(tc.rating); got != tc.want {
			t.Errorf("SentimentForRating(%d) = %q, want %q", tc.rating, got, tc.want)
		}
	}
}

func TestExec_Rows(t *testing.T) {
	s := openTestStore(t)
	seedReviews(t, s)

	out := s.Exec(context.Background(), "SELECT COUNT(*) FROM user_review WHERE sentiment='negative' AND year=2014")
	if out.Failed() {
		t.Fatalf("Exec() failed: %s", out.ErrMsg)
	}
	if len(out.Rows) != 1 || out.Rows[0][0] != "1" {
		t.Errorf("Exec() rows = %v, want [[1]]", out.Rows)
	}
}

func TestExec_EmptyIsNotError(t *testing.T) {
	s := openTestStore(t)
	seedReviews(t, s)

	out := s.Exec(context.Background(), "SELECT id FROM user_review WHERE year=1999")
	if out.Failed() {
		t.Fatalf("Exec() failed: %s", out.ErrMsg)
	}
	if !out.Empty() {
		t.Errorf("Exec() = %v, want empty outcome", out.Rows)
	}
}

func TestExec_SyntaxErrorCarriesDiagnostic(t *testing.T) {
	s := openTestStore(t)

	out := s.Exec(context.Background(), "SELECT FROM WHERE nonsense")
	if !out.Failed() {
		t.Fatal("Exec() succeeded, want execution error")
	}
	if out.ErrMsg == "" {
		t.Error("Exec() error outcome has empty diagnostic text")
	}
}

func TestExec_UnknownColumn(t *testing.T) {
	s := openTestStore(t)
	seedReviews(t, s)

	out := s.Exec(context.Background(), "SELECT review_likes FROM user_review")
	if !out.Failed() {
		t.Fatal("Exec() succeeded on unknown column, want execution error")
	}
}

func TestExec_RejectsWrites(t *testing.T) {
	s := openTestStore(t)
	seedReviews(t, s)

	// A WITH prefix sneaks a write past any leading-keyword check; the
	// query_only connection must still reject it.
	cases := []string{
		"WITH doomed AS (SELECT 1) DELETE FROM user_review",
		"DELETE FROM user_review",
		"UPDATE user_review SET review_rating=1",
		"INSERT INTO user_review (id, review_text) VALUES (99, 'fake')",
		"DROP TABLE user_review",
	}
	for _, q := range cases {
		out := s.Exec(context.Background(), q)
		if !out.Failed() {
			t.Errorf("Exec(%q) succeeded, want rejection", q)
		}
	}

	if n, err := s.CountReviews(); err != nil || n != 3 {
		t.Fatalf("CountReviews() = %d, %v; want 3 untouched rows", n, err)
	}
}

func TestExec_WritesStillWorkAfterwards(t *testing.T) {
	s := openTestStore(t)
	seedReviews(t, s)

	s.Exec(context.Background(), "WITH doomed AS (SELECT 1) DELETE FROM user_review")

	// query_only must not leak onto the shared connection.
	extra := []Review{{ID: 4, ReviewID: uuid.NewString(), Text: "Great for discovering new artists every week without any effort", Rating: 5, Sentiment: "positive", Year: 2015, Month: 6, Day: 1}}
	if err := s.InsertReviews(extra); err != nil {
		t.Fatalf("InsertReviews() after Exec error = %v", err)
	}
	if n, _ := s.CountReviews(); n != 4 {
		t.Errorf("CountReviews() = %d, want 4", n)
	}
}

func TestInteractionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	i := Interaction{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Question:  "How many negative reviews in 2014?",
		Intent:    "aggregate",
		Backend:   "ollama",
		Answer:    "There was one negative review in 2014.",
	}
	if err := s.SaveInteraction(i); err != nil {
		t.Fatalf("SaveInteraction() error = %v", err)
	}

	got, err := s.GetInteraction(i.ID)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}
	if got.Question != i.Question || got.Intent != "aggregate" || got.Status != "answered" {
		t.Errorf("GetInteraction() = %+v", got)
	}

	recent, err := s.GetRecentInteractions(10)
	if err != nil {
		t.Fatalf("GetRecentInteractions() error = %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("GetRecentInteractions() returned %d, want 1", len(recent))
	}

	if _, err := s.GetInteraction("missing"); err != ErrNotFound {
		t.Errorf("GetInteraction(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}
