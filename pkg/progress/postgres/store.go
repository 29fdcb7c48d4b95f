// Package postgres provides a PostgreSQL-backed progress.Store on a pgx
// connection pool. Intended for shared deployments where several performers
// practice against the same database.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirelo-dev/cantora/pkg/fsrs"
	"github.com/mirelo-dev/cantora/pkg/progress"
)

// Compile-time interface check.
var _ progress.Store = (*Store)(nil)

const ddlLineProgress = `
CREATE TABLE IF NOT EXISTS line_progress (
    performer       TEXT             NOT NULL,
    song_id         TEXT             NOT NULL,
    segment_id      TEXT             NOT NULL,
    line_index      INTEGER          NOT NULL,
    stability       DOUBLE PRECISION NOT NULL,
    difficulty      DOUBLE PRECISION NOT NULL,
    elapsed_days    INTEGER          NOT NULL DEFAULT 0,
    scheduled_days  INTEGER          NOT NULL DEFAULT 0,
    reps            INTEGER          NOT NULL DEFAULT 0,
    lapses          INTEGER          NOT NULL DEFAULT 0,
    state           SMALLINT         NOT NULL,
    last_review     TIMESTAMPTZ      NOT NULL,
    last_score      INTEGER          NOT NULL DEFAULT 0,
    last_transcript TEXT             NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ      NOT NULL DEFAULT now(),
    PRIMARY KEY (performer, song_id, segment_id, line_index)
);

CREATE INDEX IF NOT EXISTS idx_line_progress_due
    ON line_progress (performer, (last_review + scheduled_days * interval '1 day'));
`

// Store is a PostgreSQL-backed progress store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn
// and ensures the line_progress table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres progress: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres progress: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, ddlLineProgress); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres progress: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Get implements progress.Store.
func (s *Store) Get(ctx context.Context, key progress.Key) (*progress.Entry, error) {
	const q = `
		SELECT stability, difficulty, elapsed_days, scheduled_days, reps, lapses,
		       state, last_review, last_score, last_transcript, updated_at
		FROM   line_progress
		WHERE  performer = $1 AND song_id = $2 AND segment_id = $3 AND line_index = $4`

	row := s.pool.QueryRow(ctx, q, key.Performer, key.SongID, key.SegmentID, key.LineIndex)

	e := progress.Entry{Key: key}
	var state int16
	err := row.Scan(
		&e.State.Stability,
		&e.State.Difficulty,
		&e.State.ElapsedDays,
		&e.State.ScheduledDays,
		&e.State.Reps,
		&e.State.Lapses,
		&state,
		&e.State.LastReview,
		&e.LastScore,
		&e.LastTranscript,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres progress: get: %w", err)
	}
	e.State.State = fsrs.State(state)
	return &e, nil
}

// Put implements progress.Store. It upserts on the (performer, song,
// segment, line) primary key.
func (s *Store) Put(ctx context.Context, entry progress.Entry) error {
	const q = `
		INSERT INTO line_progress
		    (performer, song_id, segment_id, line_index,
		     stability, difficulty, elapsed_days, scheduled_days, reps, lapses,
		     state, last_review, last_score, last_transcript, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (performer, song_id, segment_id, line_index) DO UPDATE SET
		    stability       = EXCLUDED.stability,
		    difficulty      = EXCLUDED.difficulty,
		    elapsed_days    = EXCLUDED.elapsed_days,
		    scheduled_days  = EXCLUDED.scheduled_days,
		    reps            = EXCLUDED.reps,
		    lapses          = EXCLUDED.lapses,
		    state           = EXCLUDED.state,
		    last_review     = EXCLUDED.last_review,
		    last_score      = EXCLUDED.last_score,
		    last_transcript = EXCLUDED.last_transcript,
		    updated_at      = EXCLUDED.updated_at`

	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, q,
		entry.Key.Performer,
		entry.Key.SongID,
		entry.Key.SegmentID,
		entry.Key.LineIndex,
		entry.State.Stability,
		entry.State.Difficulty,
		entry.State.ElapsedDays,
		entry.State.ScheduledDays,
		entry.State.Reps,
		entry.State.Lapses,
		int16(entry.State.State),
		entry.State.LastReview,
		entry.LastScore,
		entry.LastTranscript,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres progress: put: %w", err)
	}
	return nil
}

// Due implements progress.Store.
func (s *Store) Due(ctx context.Context, performer string, now time.Time) ([]progress.Entry, error) {
	const q = `
		SELECT song_id, segment_id, line_index,
		       stability, difficulty, elapsed_days, scheduled_days, reps, lapses,
		       state, last_review, last_score, last_transcript, updated_at
		FROM   line_progress
		WHERE  performer = $1
		  AND  last_review + scheduled_days * interval '1 day' <= $2
		ORDER  BY last_review + scheduled_days * interval '1 day'`

	rows, err := s.pool.Query(ctx, q, performer, now)
	if err != nil {
		return nil, fmt.Errorf("postgres progress: due: %w", err)
	}
	defer rows.Close()

	var due []progress.Entry
	for rows.Next() {
		e := progress.Entry{Key: progress.Key{Performer: performer}}
		var state int16
		if err := rows.Scan(
			&e.Key.SongID,
			&e.Key.SegmentID,
			&e.Key.LineIndex,
			&e.State.Stability,
			&e.State.Difficulty,
			&e.State.ElapsedDays,
			&e.State.ScheduledDays,
			&e.State.Reps,
			&e.State.Lapses,
			&state,
			&e.State.LastReview,
			&e.LastScore,
			&e.LastTranscript,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres progress: due scan: %w", err)
		}
		e.State.State = fsrs.State(state)
		due = append(due, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres progress: due rows: %w", err)
	}
	return due, nil
}

// Close implements progress.Store. It releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
