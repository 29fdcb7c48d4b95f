package fsrs_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mirelo-dev/cantora/pkg/fsrs"
)

func newScheduler(t *testing.T) *fsrs.Scheduler {
	t.Helper()
	s, err := fsrs.NewScheduler(fsrs.DefaultParams())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestSchedule_FirstReviewGood(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	state, err := s.Schedule(nil, fsrs.Good, now)
	if err != nil {
		t.Fatalf("Schedule(nil, Good): %v", err)
	}
	if state.Reps != 1 {
		t.Errorf("Reps = %d, want 1", state.Reps)
	}
	if state.State != fsrs.Learning {
		t.Errorf("State = %v, want learning", state.State)
	}
	if state.Stability <= 0 {
		t.Errorf("Stability = %v, want > 0", state.Stability)
	}
	if state.Difficulty < 1 || state.Difficulty > 10 {
		t.Errorf("Difficulty = %v, want within [1, 10]", state.Difficulty)
	}
	if state.ScheduledDays < 1 {
		t.Errorf("ScheduledDays = %d, want >= 1", state.ScheduledDays)
	}
	if !state.LastReview.Equal(now) {
		t.Errorf("LastReview = %v, want %v", state.LastReview, now)
	}
}

func TestSchedule_FirstReviewEasyGraduates(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	state, err := s.Schedule(nil, fsrs.Easy, time.Now())
	if err != nil {
		t.Fatalf("Schedule(nil, Easy): %v", err)
	}
	if state.State != fsrs.Review {
		t.Errorf("State = %v, want review (single-step graduation)", state.State)
	}
}

func TestSchedule_InitialStabilityOrdering(t *testing.T) {
	t.Parallel()

	// Higher ratings seed higher initial stability with the default weights.
	s := newScheduler(t)
	now := time.Now()
	var prev float64
	for _, r := range []fsrs.Rating{fsrs.Again, fsrs.Hard, fsrs.Good, fsrs.Easy} {
		state, err := s.Schedule(nil, r, now)
		if err != nil {
			t.Fatalf("Schedule(nil, %v): %v", r, err)
		}
		if state.Stability <= prev {
			t.Errorf("stability for %v = %v, want > %v", r, state.Stability, prev)
		}
		prev = state.Stability
	}
}

func TestSchedule_RepsCountSuccessiveReviews(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	reviewedAt := time.Date(2026, 1, 10, 19, 0, 0, 0, time.UTC)

	state, err := s.Schedule(nil, fsrs.Good, reviewedAt)
	if err != nil {
		t.Fatalf("first Schedule: %v", err)
	}

	const n = 5
	for i := 1; i < n; i++ {
		reviewedAt = reviewedAt.AddDate(0, 0, state.ScheduledDays)
		state, err = s.Schedule(&state, fsrs.Good, reviewedAt)
		if err != nil {
			t.Fatalf("Schedule #%d: %v", i+1, err)
		}
	}
	if state.Reps != n {
		t.Errorf("Reps after %d reviews = %d, want %d", n, state.Reps, n)
	}
	if state.Lapses != 0 {
		t.Errorf("Lapses = %d, want 0 for all-Good history", state.Lapses)
	}
	if state.State != fsrs.Review {
		t.Errorf("State = %v, want review", state.State)
	}
}

func TestSchedule_StabilityGrowsOnSuccess(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	reviewedAt := time.Date(2026, 1, 10, 19, 0, 0, 0, time.UTC)
	state, err := s.Schedule(nil, fsrs.Good, reviewedAt)
	if err != nil {
		t.Fatalf("first Schedule: %v", err)
	}

	for i := 0; i < 4; i++ {
		prevStability := state.Stability
		reviewedAt = reviewedAt.AddDate(0, 0, state.ScheduledDays)
		state, err = s.Schedule(&state, fsrs.Good, reviewedAt)
		if err != nil {
			t.Fatalf("Schedule #%d: %v", i+2, err)
		}
		if state.Stability <= prevStability {
			t.Errorf("review %d: stability %v did not grow from %v", i+2, state.Stability, prevStability)
		}
	}
}

func TestSchedule_AgainFromReviewLapses(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	reviewedAt := time.Date(2026, 1, 10, 19, 0, 0, 0, time.UTC)

	// Graduate to Review first.
	state, err := s.Schedule(nil, fsrs.Easy, reviewedAt)
	if err != nil {
		t.Fatalf("first Schedule: %v", err)
	}
	if state.State != fsrs.Review {
		t.Fatalf("setup: State = %v, want review", state.State)
	}

	prevStability := state.Stability
	reviewedAt = reviewedAt.AddDate(0, 0, state.ScheduledDays)
	lapsed, err := s.Schedule(&state, fsrs.Again, reviewedAt)
	if err != nil {
		t.Fatalf("Schedule(Again): %v", err)
	}
	if lapsed.State != fsrs.Relearning {
		t.Errorf("State after Again from review = %v, want relearning", lapsed.State)
	}
	if lapsed.Lapses != 1 {
		t.Errorf("Lapses = %d, want 1", lapsed.Lapses)
	}
	if lapsed.Stability > prevStability {
		t.Errorf("post-lapse stability %v exceeds previous %v", lapsed.Stability, prevStability)
	}
	if lapsed.Stability <= 0 {
		t.Errorf("post-lapse stability = %v, want > 0", lapsed.Stability)
	}

	// A success from Relearning returns to Review without another lapse.
	reviewedAt = reviewedAt.AddDate(0, 0, lapsed.ScheduledDays)
	recovered, err := s.Schedule(&lapsed, fsrs.Good, reviewedAt)
	if err != nil {
		t.Fatalf("Schedule(Good after lapse): %v", err)
	}
	if recovered.State != fsrs.Review {
		t.Errorf("State after recovery = %v, want review", recovered.State)
	}
	if recovered.Lapses != 1 {
		t.Errorf("Lapses after recovery = %d, want unchanged 1", recovered.Lapses)
	}
}

func TestSchedule_SameDayReviewClampsElapsed(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	first := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	state, err := s.Schedule(nil, fsrs.Good, first)
	if err != nil {
		t.Fatalf("first Schedule: %v", err)
	}

	// Re-grading an hour later, and even with a clock that ran backwards,
	// must clamp elapsed days to zero rather than feed a negative value
	// into the forgetting curve.
	for _, reviewedAt := range []time.Time{first.Add(time.Hour), first.Add(-time.Hour)} {
		next, err := s.Schedule(&state, fsrs.Good, reviewedAt)
		if err != nil {
			t.Fatalf("Schedule at %v: %v", reviewedAt, err)
		}
		if next.ElapsedDays != 0 {
			t.Errorf("ElapsedDays = %d, want 0", next.ElapsedDays)
		}
	}
}

func TestSchedule_DifficultyStaysBounded(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	reviewedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	state, err := s.Schedule(nil, fsrs.Again, reviewedAt)
	if err != nil {
		t.Fatalf("first Schedule: %v", err)
	}

	// A long run of Again ratings pushes difficulty up; it must saturate
	// at 10 rather than escape the bound.
	for i := 0; i < 30; i++ {
		reviewedAt = reviewedAt.AddDate(0, 0, 1)
		state, err = s.Schedule(&state, fsrs.Again, reviewedAt)
		if err != nil {
			t.Fatalf("Schedule #%d: %v", i+2, err)
		}
		if state.Difficulty < 1 || state.Difficulty > 10 {
			t.Fatalf("review %d: Difficulty = %v, out of [1, 10]", i+2, state.Difficulty)
		}
	}
	// And a long run of Easy pulls it back down, still bounded.
	for i := 0; i < 30; i++ {
		reviewedAt = reviewedAt.AddDate(0, 0, state.ScheduledDays)
		state, err = s.Schedule(&state, fsrs.Easy, reviewedAt)
		if err != nil {
			t.Fatalf("easy Schedule #%d: %v", i+1, err)
		}
		if state.Difficulty < 1 || state.Difficulty > 10 {
			t.Fatalf("easy review %d: Difficulty = %v, out of [1, 10]", i+1, state.Difficulty)
		}
	}
}

func TestSchedule_InvalidRating(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	if _, err := s.Schedule(nil, fsrs.Rating(0), time.Now()); !errors.Is(err, fsrs.ErrInvalidRating) {
		t.Errorf("Schedule(rating 0) error = %v, want ErrInvalidRating", err)
	}
	if _, err := s.Schedule(nil, fsrs.Rating(5), time.Now()); !errors.Is(err, fsrs.ErrInvalidRating) {
		t.Errorf("Schedule(rating 5) error = %v, want ErrInvalidRating", err)
	}
}

func TestSchedule_CorruptState(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	now := time.Now()

	corrupt := []fsrs.MemoryState{
		{Stability: -1, Difficulty: 5, State: fsrs.Review, LastReview: now},
		{Stability: math.NaN(), Difficulty: 5, State: fsrs.Review, LastReview: now},
		{Stability: 2, Difficulty: 0.5, State: fsrs.Review, LastReview: now},
		{Stability: 2, Difficulty: math.Inf(1), State: fsrs.Review, LastReview: now},
		{Stability: 2, Difficulty: 5, Reps: -1, State: fsrs.Review, LastReview: now},
	}
	for i, prev := range corrupt {
		if _, err := s.Schedule(&prev, fsrs.Good, now); !errors.Is(err, fsrs.ErrCorruptState) {
			t.Errorf("case %d: error = %v, want ErrCorruptState", i, err)
		}
	}
}

func TestSchedule_IntervalTargetsRetention(t *testing.T) {
	t.Parallel()

	// At the default desired retention of 0.9 the interval formula
	// reduces to the stability itself.
	s := newScheduler(t)
	state, err := s.Schedule(nil, fsrs.Easy, time.Now())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	want := int(math.Round(state.Stability))
	if want < 1 {
		want = 1
	}
	if state.ScheduledDays != want {
		t.Errorf("ScheduledDays = %d, want round(stability) = %d", state.ScheduledDays, want)
	}
}

func TestNewScheduler_RejectsBadParams(t *testing.T) {
	t.Parallel()

	p := fsrs.DefaultParams()
	p.DesiredRetention = 1.5
	if _, err := fsrs.NewScheduler(p); err == nil {
		t.Error("NewScheduler with retention 1.5: want error, got nil")
	}

	p = fsrs.DefaultParams()
	p.Weights[0] = -0.1
	if _, err := fsrs.NewScheduler(p); err == nil {
		t.Error("NewScheduler with negative stability seed: want error, got nil")
	}
}
