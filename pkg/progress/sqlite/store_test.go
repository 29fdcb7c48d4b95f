package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mirelo-dev/cantora/pkg/fsrs"
	"github.com/mirelo-dev/cantora/pkg/progress"
	"github.com/mirelo-dev/cantora/pkg/progress/sqlite"
)

func openStore(t *testing.T) progress.Store {
	t.Helper()
	s, err := sqlite.NewStore(context.Background(), filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetAbsent(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	got, err := s.Get(context.Background(), progress.Key{Performer: "alex", SongID: "x", SegmentID: "y"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get absent key = %+v, want nil", got)
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()
	reviewed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	want := progress.Entry{
		Key: progress.Key{Performer: "alex", SongID: "moon", SegmentID: "verse-1", LineIndex: 2},
		State: fsrs.MemoryState{
			Stability:     4.25,
			Difficulty:    5.5,
			ElapsedDays:   1,
			ScheduledDays: 4,
			Reps:          3,
			Lapses:        1,
			State:         fsrs.Review,
			LastReview:    reviewed,
		},
		LastScore:      82,
		LastTranscript: "fly me to the moon",
		UpdatedAt:      reviewed,
	}
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, want.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil after Put")
	}
	if got.State != want.State {
		t.Errorf("State = %+v, want %+v", got.State, want.State)
	}
	if got.LastScore != 82 || got.LastTranscript != "fly me to the moon" {
		t.Errorf("attempt fields = %d/%q", got.LastScore, got.LastTranscript)
	}
}

func TestStore_PutReplaces(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()
	reviewed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	e := progress.Entry{
		Key: progress.Key{Performer: "alex", SongID: "moon", SegmentID: "verse-1", LineIndex: 0},
		State: fsrs.MemoryState{
			Stability: 1.2, Difficulty: 6, ScheduledDays: 1, Reps: 1,
			State: fsrs.Learning, LastReview: reviewed,
		},
		LastScore: 61,
	}
	if err := s.Put(ctx, e); err != nil {
		t.Fatalf("Put: %v", err)
	}

	e.State.Reps = 2
	e.State.State = fsrs.Review
	e.LastScore = 91
	if err := s.Put(ctx, e); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	got, err := s.Get(ctx, e.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State.Reps != 2 || got.State.State != fsrs.Review || got.LastScore != 91 {
		t.Errorf("replace not applied: %+v", got)
	}
}

func TestStore_Due(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	put := func(performer string, line int, lastReview time.Time, days int) {
		t.Helper()
		err := s.Put(ctx, progress.Entry{
			Key: progress.Key{Performer: performer, SongID: "moon", SegmentID: "verse-1", LineIndex: line},
			State: fsrs.MemoryState{
				Stability: 2, Difficulty: 5, ScheduledDays: days, Reps: 1,
				State: fsrs.Review, LastReview: lastReview,
			},
		})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	put("alex", 0, now.AddDate(0, 0, -2), 1) // due yesterday
	put("alex", 1, now.AddDate(0, 0, -5), 1) // due four days ago
	put("alex", 2, now, 3)                   // future
	put("sam", 0, now.AddDate(0, 0, -5), 1)  // other performer

	due, err := s.Due(ctx, "alex", now)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("len(due) = %d, want 2", len(due))
	}
	if due[0].Key.LineIndex != 1 || due[1].Key.LineIndex != 0 {
		t.Errorf("due order = [%d %d], want earliest first", due[0].Key.LineIndex, due[1].Key.LineIndex)
	}
}
