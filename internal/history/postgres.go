package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parlando-ai/parlando/internal/assess"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

const ddlSessionScores = `
CREATE TABLE IF NOT EXISTS session_scores (
    id                  BIGSERIAL    PRIMARY KEY,
    session_id          TEXT         NOT NULL,
    user_id             TEXT         NOT NULL DEFAULT '',
    timestamp           TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration_seconds    DOUBLE PRECISION NOT NULL DEFAULT 0,
    vocabulary          DOUBLE PRECISION NOT NULL,
    grammar             DOUBLE PRECISION NOT NULL,
    fluency             DOUBLE PRECISION NOT NULL,
    comprehension       DOUBLE PRECISION NOT NULL,
    coherence           DOUBLE PRECISION NOT NULL,
    pronunciation_proxy DOUBLE PRECISION NOT NULL,
    overall             DOUBLE PRECISION NOT NULL,
    toeic_estimate      INTEGER      NOT NULL DEFAULT 0,
    ielts_estimate      DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_session_scores_user_id
    ON session_scores (user_id);

CREATE INDEX IF NOT EXISTS idx_session_scores_timestamp
    ON session_scores (timestamp);
`

// PostgresStore persists records in a session_scores table behind a shared
// [pgxpool.Pool]. All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at dsn, verifies the
// connection, and ensures the session_scores table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlSessionScores); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. It satisfies the readiness probe's
// pinger interface.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Append implements [Store].
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO session_scores
		    (session_id, user_id, timestamp, duration_seconds,
		     vocabulary, grammar, fluency, comprehension, coherence, pronunciation_proxy,
		     overall, toeic_estimate, ielts_estimate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, q,
		rec.SessionID,
		rec.UserID,
		rec.Timestamp,
		rec.DurationSeconds,
		rec.Components.Vocabulary,
		rec.Components.Grammar,
		rec.Components.Fluency,
		rec.Components.Comprehension,
		rec.Components.Coherence,
		rec.Components.PronunciationProxy,
		rec.Overall,
		rec.TOEICEstimate,
		rec.IELTSEstimate,
	)
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, userID string, limit int) ([]Record, error) {
	q := `
		SELECT session_id, user_id, timestamp, duration_seconds,
		       vocabulary, grammar, fluency, comprehension, coherence, pronunciation_proxy,
		       overall, toeic_estimate, ielts_estimate
		FROM   session_scores`
	args := []any{}
	if userID != "" {
		args = append(args, userID)
		q += "\n\t\tWHERE  user_id = $1"
	}
	q += "\n\t\tORDER  BY timestamp DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\n\t\tLIMIT  $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec Record
			c   assess.ComponentScores
		)
		if err := row.Scan(
			&rec.SessionID,
			&rec.UserID,
			&rec.Timestamp,
			&rec.DurationSeconds,
			&c.Vocabulary,
			&c.Grammar,
			&c.Fluency,
			&c.Comprehension,
			&c.Coherence,
			&c.PronunciationProxy,
			&rec.Overall,
			&rec.TOEICEstimate,
			&rec.IELTSEstimate,
		); err != nil {
			return Record{}, err
		}
		rec.Components = c
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: scan rows: %w", err)
	}

	// Newest-first query with LIMIT keeps the most recent records; callers
	// get them oldest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
