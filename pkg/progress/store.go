// Package progress defines the persistence contract for per-line practice
// state: which lines a performer has attempted, their FSRS memory state, and
// when each line comes due again.
//
// Three implementations exist: [MemStore] (in-process, for tests and
// throwaway runs), the postgres sub-package (pgx connection pool, shared
// deployments), and the sqlite sub-package (single-file local use). All of
// them satisfy [Store].
package progress

import (
	"context"
	"time"

	"github.com/mirelo-dev/cantora/pkg/fsrs"
)

// Key identifies one line's progress record. All four fields participate in
// identity; the same line index under a different segment is a different
// record.
type Key struct {
	Performer string
	SongID    string
	SegmentID string
	LineIndex int
}

// Entry is one line's stored practice state.
type Entry struct {
	Key Key

	// State is the FSRS memory state after the most recent grading.
	State fsrs.MemoryState

	// LastScore is the similarity score (0–100) of the most recent attempt.
	LastScore int

	// LastTranscript is what the STT backend heard on the most recent
	// attempt. Kept for review UIs; never read by the scheduler.
	LastTranscript string

	// UpdatedAt is when this record was last written.
	UpdatedAt time.Time
}

// Due reports whether the entry's next review is at or before now.
func (e Entry) Due(now time.Time) bool {
	return !e.State.Due().After(now)
}

// Store persists per-line practice state.
//
// Implementations must be safe for concurrent use. Writes are last-wins per
// key; the session layer serialises writes per performer, so stores do not
// need cross-key transactional guarantees.
type Store interface {
	// Get returns the entry for key, or (nil, nil) when the line has never
	// been graded. Errors are reserved for storage failures.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put inserts or replaces the entry for entry.Key.
	Put(ctx context.Context, entry Entry) error

	// Due returns every entry for performer whose next review time is at or
	// before now, ordered by due time ascending.
	Due(ctx context.Context, performer string, now time.Time) ([]Entry, error)

	// Close releases any underlying resources. The store is unusable
	// afterwards.
	Close() error
}
