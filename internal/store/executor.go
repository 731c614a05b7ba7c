package store

import (
	"context"
	"database/sql"
)

// Outcome is the structured result of executing a generated query. Exactly
// one of three shapes holds: rows came back, zero rows came back, or the
// engine rejected the query. The two failure shapes are distinct because
// their repair strategies differ: an empty result is relaxed, an execution
// error is repaired with the diagnostic text.
type Outcome struct {
	Columns []string
	Rows    [][]string

	// ErrMsg carries the engine's diagnostic verbatim; it feeds the repair
	// prompt downstream. Empty when execution succeeded.
	ErrMsg string
}

// Failed reports whether the engine rejected the query.
func (o Outcome) Failed() bool { return o.ErrMsg != "" }

// Empty reports whether the query succeeded but matched nothing.
func (o Outcome) Empty() bool { return o.ErrMsg == "" && len(o.Rows) == 0 }

// Exec runs a generated query against the review store and returns a
// structured Outcome. It never returns a Go error for query failures: every
// engine-level problem is folded into Outcome.ErrMsg so the caller can feed
// it back to the model.
//
// Generated SQL is untrusted: a WITH-prefixed statement can smuggle a write
// past any keyword check (`WITH x AS (SELECT 1) DELETE FROM user_review`).
// The query therefore runs on a connection pinned into query_only mode, so
// the engine itself rejects every write.
func (s *Store) Exec(ctx context.Context, query string) Outcome {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return Outcome{ErrMsg: err.Error()}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only=1"); err != nil {
		return Outcome{ErrMsg: err.Error()}
	}
	// Reset even when ctx is already done, or the pooled connection would
	// stay read-only for ingestion and the interaction log.
	defer conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only=0")

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return Outcome{ErrMsg: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Outcome{ErrMsg: err.Error()}
	}

	out := Outcome{Columns: cols}
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Outcome{ErrMsg: err.Error()}
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
			}
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Outcome{ErrMsg: err.Error()}
	}

	return out
}
