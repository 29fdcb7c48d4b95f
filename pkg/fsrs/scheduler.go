package fsrs

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidRating is returned when a rating outside the four-value enum is
// passed to the scheduler. This is a programming error and is never retried.
var ErrInvalidRating = errors.New("fsrs: invalid rating")

// ErrCorruptState is returned when a previously persisted state carries
// negative or non-finite fields. The scheduler never repairs such state; the
// caller decides whether to reset the line to New.
var ErrCorruptState = errors.New("fsrs: corrupt memory state")

// Scheduler computes updated memory states from review ratings using the
// FSRS-4.5 formulas. It is stateless apart from its parameters and safe for
// concurrent use.
type Scheduler struct {
	params Params
}

// NewScheduler creates a Scheduler with the given parameters. Returns an
// error if the parameters fail validation.
func NewScheduler(params Params) (*Scheduler, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("fsrs: invalid params: %w", err)
	}
	return &Scheduler{params: params}, nil
}

// Params returns the scheduler's parameter set.
func (s *Scheduler) Params() Params { return s.params }

// Schedule computes the memory state following one review.
//
// prev is nil for the first-ever review of a line. reviewedAt is the grading
// time; when prev exists, the elapsed time since prev.LastReview feeds the
// forgetting curve (negative elapsed time is clamped to zero).
//
// Errors: [ErrInvalidRating] for a rating outside Again..Easy,
// [ErrCorruptState] when prev carries unusable fields.
func (s *Scheduler) Schedule(prev *MemoryState, rating Rating, reviewedAt time.Time) (MemoryState, error) {
	if !rating.IsValid() {
		return MemoryState{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}

	if prev == nil {
		return s.initial(rating, reviewedAt), nil
	}
	if err := prev.validate(); err != nil {
		return MemoryState{}, err
	}

	elapsed := wholeDays(prev.LastReview, reviewedAt)
	retr := retrievability(float64(elapsed), prev.Stability)

	next := *prev
	next.Difficulty = s.nextDifficulty(prev.Difficulty, rating)
	next.ElapsedDays = elapsed
	next.Reps = prev.Reps + 1
	next.LastReview = reviewedAt

	if rating == Again {
		next.Stability = s.forgetStability(prev.Difficulty, prev.Stability, retr)
		if prev.State != New {
			next.Lapses = prev.Lapses + 1
		}
		next.State = lapseState(prev.State)
	} else {
		next.Stability = s.recallStability(prev.Difficulty, prev.Stability, retr, rating)
		next.State = advanceState(prev.State)
	}

	next.ScheduledDays = s.nextInterval(next.Stability)
	return next, nil
}

// initial builds the state produced by a first review, seeding stability and
// difficulty from the rating-specific base formulas.
func (s *Scheduler) initial(rating Rating, reviewedAt time.Time) MemoryState {
	state := Learning
	if rating == Easy {
		// Single-step graduation.
		state = Review
	}

	stability := clampStability(s.params.Weights[rating-1])
	m := MemoryState{
		Stability:  stability,
		Difficulty: s.initDifficulty(rating),
		Reps:       1,
		State:      state,
		LastReview: reviewedAt,
	}
	m.ScheduledDays = s.nextInterval(m.Stability)
	return m
}

// retrievability is the FSRS-4.5 power-law forgetting curve
// R(t, S) = (1 + t/(9S))^-1.
func retrievability(elapsedDays, stability float64) float64 {
	return 1 / (1 + elapsedDays/(9*stability))
}

// initDifficulty computes D0(G) = w4 - (G-3)*w5, clamped to [1, 10].
func (s *Scheduler) initDifficulty(rating Rating) float64 {
	w := s.params.Weights
	return clampDifficulty(w[4] - float64(rating-3)*w[5])
}

// nextDifficulty applies the rating-dependent delta and reverts toward the
// Easy baseline difficulty:
//
//	D' = D - w6*(G-3)
//	D'' = w7*D0(Easy) + (1-w7)*D'
func (s *Scheduler) nextDifficulty(difficulty float64, rating Rating) float64 {
	w := s.params.Weights
	dPrime := difficulty - w[6]*float64(rating-3)
	d0Easy := w[4] - float64(Easy-3)*w[5]
	return clampDifficulty(w[7]*d0Easy + (1-w[7])*dPrime)
}

// recallStability is the multiplicative stability growth applied on a
// successful rating:
//
//	S' = S * (1 + e^w8 * (11-D) * S^-w9 * (e^((1-R)*w10) - 1) * hard * easy)
//
// where hard = w15 when the rating is Hard and easy = w16 when Easy.
func (s *Scheduler) recallStability(d, stability, retr float64, rating Rating) float64 {
	w := s.params.Weights
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = w[15]
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = w[16]
	}
	growth := math.Exp(w[8]) *
		(11 - d) *
		math.Pow(stability, -w[9]) *
		(math.Exp((1-retr)*w[10]) - 1) *
		hardPenalty * easyBonus
	return clampStability(stability * (1 + growth))
}

// forgetStability is the post-lapse stability:
//
//	S'f = w11 * D^-w12 * ((S+1)^w13 - 1) * e^((1-R)*w14)
//
// capped at the previous stability — forgetting never increases it.
func (s *Scheduler) forgetStability(d, stability, retr float64) float64 {
	w := s.params.Weights
	sf := w[11] *
		math.Pow(d, -w[12]) *
		(math.Pow(stability+1, w[13]) - 1) *
		math.Exp((1-retr)*w[14])
	return clampStability(math.Min(sf, stability))
}

// nextInterval converts stability into the scheduled interval targeting the
// desired retention: I = 9*S*(1/r - 1), rounded, at least 1, capped at the
// maximum interval. At the default retention of 0.9 the interval equals the
// stability.
func (s *Scheduler) nextInterval(stability float64) int {
	ivl := 9 * stability * (1/s.params.DesiredRetention - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > s.params.MaximumInterval {
		days = s.params.MaximumInterval
	}
	return days
}

// advanceState moves one step along New → Learning → Review on a successful
// rating; Relearning also returns to Review.
func advanceState(prev State) State {
	switch prev {
	case New:
		return Learning
	case Learning, Relearning, Review:
		return Review
	default:
		return Review
	}
}

// lapseState handles an Again rating: Review drops to Relearning, the
// pre-Review phases stay where they are.
func lapseState(prev State) State {
	switch prev {
	case Review:
		return Relearning
	case New:
		return Learning
	default:
		return prev
	}
}

// wholeDays returns the non-negative whole number of days between from and
// to. A zero from (no recorded last review) counts as zero elapsed days.
func wholeDays(from, to time.Time) int {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
