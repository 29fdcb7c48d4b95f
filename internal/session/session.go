// Package session runs a practice session: for each lyric line it records a
// take, transcribes it, scores the transcript against the expected text,
// converts the score into a review rating, advances the line's
// spaced-repetition state, and persists the result.
//
// Each line is independent. A failure at any pipeline stage marks that line
// failed and moves on to the next one; the stored state of a failed line is
// left untouched. Cancellation is honoured at line boundaries — the line in
// flight finishes, unreached lines are omitted from the summary entirely.
package session

import (
	"time"

	"github.com/mirelo-dev/cantora/internal/lyrics"
	"github.com/mirelo-dev/cantora/pkg/fsrs"
)

// Key identifies the song segment a session practices. Combined with each
// line's index it forms the progress-store key.
type Key struct {
	Performer string
	SongID    string
	SegmentID string
}

// Stage names the pipeline stage at which a line failed.
type Stage string

const (
	StageRecord     Stage = "record"
	StageTranscribe Stage = "transcribe"
	StageSchedule   Stage = "schedule"
	StagePersist    Stage = "persist"
)

// LineResult is the outcome of one practiced line.
type LineResult struct {
	// Line is the lyric line that was attempted.
	Line lyrics.Line

	// Graded is true when the full pipeline succeeded and State holds the
	// line's new memory state.
	Graded bool

	// Transcript is what the STT backend heard. Empty for silence or when
	// the failure happened before transcription.
	Transcript string

	// Score is the similarity score (0–100). Only meaningful when Graded.
	Score int

	// Rating is the review grade derived from Score. Only meaningful when
	// Graded.
	Rating fsrs.Rating

	// State is the updated memory state. Only meaningful when Graded.
	State fsrs.MemoryState

	// FailedStage and Err describe the failure when Graded is false.
	FailedStage Stage
	Err         error
}

// Summary aggregates a finished (or cancelled) session.
type Summary struct {
	Key Key

	// Results holds one entry per attempted line, in line order. Lines the
	// session never reached do not appear.
	Results []LineResult

	// Graded counts lines that made it through the full pipeline.
	Graded int

	// AverageScore is the mean similarity score over graded lines only.
	// Zero when nothing was graded.
	AverageScore float64

	StartedAt  time.Time
	FinishedAt time.Time
}

// Attempted returns the number of lines the session reached.
func (s Summary) Attempted() int { return len(s.Results) }

// finish computes the aggregate fields from Results.
func (s *Summary) finish(now time.Time) {
	var sum int
	for _, r := range s.Results {
		if r.Graded {
			s.Graded++
			sum += r.Score
		}
	}
	if s.Graded > 0 {
		s.AverageScore = float64(sum) / float64(s.Graded)
	}
	s.FinishedAt = now
}
