// Package fsrs implements the FSRS-4.5 spaced-repetition scheduler used to
// plan per-line review intervals.
//
// The scheduler is a pure function over a [MemoryState] and a [Rating]: given
// the previous state of a lyric line (or nil for a first review) and the
// rating derived from the latest attempt, [Scheduler.Schedule] returns the
// updated state including the next review interval. All computation is
// deterministic double-precision arithmetic; only the final interval and the
// integer counters are rounded, so stability and difficulty keep their full
// fractional precision across reviews.
package fsrs

import (
	"fmt"
	"math"
	"time"
)

// Rating is one of the four ordinal review grades driving FSRS transitions.
type Rating int

const (
	// Again means the attempt failed — the line was not recalled.
	Again Rating = 1

	// Hard means the attempt barely succeeded.
	Hard Rating = 2

	// Good means the attempt succeeded normally.
	Good Rating = 3

	// Easy means the attempt succeeded effortlessly.
	Easy Rating = 4
)

// IsValid reports whether r is one of the four defined ratings.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// String returns the human-readable name of the rating.
func (r Rating) String() string {
	switch r {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	default:
		return fmt.Sprintf("rating(%d)", int(r))
	}
}

// State is the learning phase of a line in the FSRS automaton.
//
// The automaton is New → Learning → Review, with Review → Relearning on an
// Again rating and Relearning → Review on any success. New is only ever the
// phase of a line that has never been graded; persisted states always carry
// Learning, Review, or Relearning.
type State int

const (
	New State = iota
	Learning
	Review
	Relearning
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case New:
		return "new"
	case Learning:
		return "learning"
	case Review:
		return "review"
	case Relearning:
		return "relearning"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MemoryState is the FSRS memory state of one (performer, song, segment,
// line) tuple. It is created on the first grading of a line and replaced on
// every subsequent grading.
type MemoryState struct {
	// Stability is the modeled number of days until recall probability
	// decays to the reference threshold. Always > 0 after a review.
	Stability float64

	// Difficulty is the intrinsic item difficulty, clamped to [1, 10].
	Difficulty float64

	// ElapsedDays is the whole number of days between the two most recent
	// reviews. Zero for a first review.
	ElapsedDays int

	// ScheduledDays is the interval until the next review, in whole days.
	ScheduledDays int

	// Reps counts every grading of this line, successful or not.
	Reps int

	// Lapses counts Again ratings received in a non-New state.
	Lapses int

	// State is the current learning phase.
	State State

	// LastReview is when the line was most recently graded. Zero only for
	// a state that has never been through the scheduler.
	LastReview time.Time
}

// Due returns the next scheduled review time.
func (m MemoryState) Due() time.Time {
	return m.LastReview.AddDate(0, 0, m.ScheduledDays)
}

// validate reports whether the persisted fields are usable as scheduler
// input. Corrupt values are never silently repaired.
func (m MemoryState) validate() error {
	switch {
	case !isFinite(m.Stability) || m.Stability <= 0:
		return fmt.Errorf("%w: stability %v", ErrCorruptState, m.Stability)
	case !isFinite(m.Difficulty) || m.Difficulty < 1 || m.Difficulty > 10:
		return fmt.Errorf("%w: difficulty %v", ErrCorruptState, m.Difficulty)
	case m.ScheduledDays < 0:
		return fmt.Errorf("%w: scheduled days %d", ErrCorruptState, m.ScheduledDays)
	case m.Reps < 0 || m.Lapses < 0:
		return fmt.Errorf("%w: reps %d, lapses %d", ErrCorruptState, m.Reps, m.Lapses)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
