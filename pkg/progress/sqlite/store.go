// Package sqlite provides a single-file progress.Store backed by
// modernc.org/sqlite (pure Go, no CGO). Intended for local practice where a
// database server is overkill.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mirelo-dev/cantora/pkg/fsrs"
	"github.com/mirelo-dev/cantora/pkg/progress"
)

// Compile-time interface check.
var _ progress.Store = (*Store)(nil)

const ddlLineProgress = `
CREATE TABLE IF NOT EXISTS line_progress (
    performer       TEXT    NOT NULL,
    song_id         TEXT    NOT NULL,
    segment_id      TEXT    NOT NULL,
    line_index      INTEGER NOT NULL,
    stability       REAL    NOT NULL,
    difficulty      REAL    NOT NULL,
    elapsed_days    INTEGER NOT NULL DEFAULT 0,
    scheduled_days  INTEGER NOT NULL DEFAULT 0,
    reps            INTEGER NOT NULL DEFAULT 0,
    lapses          INTEGER NOT NULL DEFAULT 0,
    state           INTEGER NOT NULL,
    last_review     INTEGER NOT NULL, -- unix seconds
    last_score      INTEGER NOT NULL DEFAULT 0,
    last_transcript TEXT    NOT NULL DEFAULT '',
    updated_at      INTEGER NOT NULL, -- unix seconds
    PRIMARY KEY (performer, song_id, segment_id, line_index)
);

CREATE INDEX IF NOT EXISTS idx_line_progress_performer
    ON line_progress (performer);
`

// Store is a SQLite-backed progress store. database/sql serialises access,
// so it is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the SQLite database at path and
// ensures the line_progress table exists. Parent directories are created.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite progress: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite progress: open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite progress: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, ddlLineProgress); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite progress: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Get implements progress.Store.
func (s *Store) Get(ctx context.Context, key progress.Key) (*progress.Entry, error) {
	const q = `
		SELECT stability, difficulty, elapsed_days, scheduled_days, reps, lapses,
		       state, last_review, last_score, last_transcript, updated_at
		FROM   line_progress
		WHERE  performer = ? AND song_id = ? AND segment_id = ? AND line_index = ?`

	row := s.db.QueryRowContext(ctx, q, key.Performer, key.SongID, key.SegmentID, key.LineIndex)

	e := progress.Entry{Key: key}
	var state int
	var lastReview, updatedAt int64
	err := row.Scan(
		&e.State.Stability,
		&e.State.Difficulty,
		&e.State.ElapsedDays,
		&e.State.ScheduledDays,
		&e.State.Reps,
		&e.State.Lapses,
		&state,
		&lastReview,
		&e.LastScore,
		&e.LastTranscript,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite progress: get: %w", err)
	}
	e.State.State = fsrs.State(state)
	e.State.LastReview = time.Unix(lastReview, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (performer, song_id, segment_id, line_index) DO UPDATE SET
		    stability       = excluded.stability,
		    difficulty      = excluded.difficulty,
		    elapsed_days    = excluded.elapsed_days,
		    scheduled_days  = excluded.scheduled_days,
		    reps            = excluded.reps,
		    lapses          = excluded.lapses,
		    state           = excluded.state,
		    last_review     = excluded.last_review,
		    last_score      = excluded.last_score,
		    last_transcript = excluded.last_transcript,
		    updated_at      = excluded.updated_at`

	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, q,
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
		int(entry.State.State),
		entry.State.LastReview.Unix(),
		entry.LastScore,
		entry.LastTranscript,
		updatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite progress: put: %w", err)
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
		WHERE  performer = ?
		  AND  last_review + scheduled_days * 86400 <= ?
		ORDER  BY last_review + scheduled_days * 86400`

	rows, err := s.db.QueryContext(ctx, q, performer, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite progress: due: %w", err)
	}
	defer rows.Close()

	var due []progress.Entry
	for rows.Next() {
		e := progress.Entry{Key: progress.Key{Performer: performer}}
		var state int
		var lastReview, updatedAt int64
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
			&lastReview,
			&e.LastScore,
			&e.LastTranscript,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite progress: due scan: %w", err)
		}
		e.State.State = fsrs.State(state)
		e.State.LastReview = time.Unix(lastReview, 0).UTC()
		e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		due = append(due, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite progress: due rows: %w", err)
	}
	return due, nil
}

// Close implements progress.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
