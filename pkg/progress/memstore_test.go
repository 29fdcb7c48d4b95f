package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/mirelo-dev/cantora/pkg/fsrs"
	"github.com/mirelo-dev/cantora/pkg/progress"
)

func entryAt(performer string, lineIndex int, lastReview time.Time, scheduledDays int) progress.Entry {
	return progress.Entry{
		Key: progress.Key{
			Performer: performer,
			SongID:    "fly-me-to-the-moon",
			SegmentID: "verse-1",
			LineIndex: lineIndex,
		},
		State: fsrs.MemoryState{
			Stability:     3.5,
			Difficulty:    5.0,
			ScheduledDays: scheduledDays,
			Reps:          1,
			State:         fsrs.Review,
			LastReview:    lastReview,
		},
		LastScore: 82,
		UpdatedAt: lastReview,
	}
}

func TestMemStore_GetAbsent(t *testing.T) {
	t.Parallel()

	s := progress.NewMemStore()
	got, err := s.Get(context.Background(), progress.Key{Performer: "alex", LineIndex: 3})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get absent key = %+v, want nil", got)
	}
}

func TestMemStore_PutGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := progress.NewMemStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	want := entryAt("alex", 0, now, 4)
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
	if *got != want {
		t.Errorf("Get = %+v, want %+v", *got, want)
	}

	// Put replaces.
	want.LastScore = 95
	want.State.Reps = 2
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, err = s.Get(ctx, want.Key)
	if err != nil {
		t.Fatalf("Get after replace: %v", err)
	}
	if got.LastScore != 95 || got.State.Reps != 2 {
		t.Errorf("replace not applied: %+v", got)
	}
}

func TestMemStore_Due(t *testing.T) {
	t.Parallel()

	s := progress.NewMemStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Due yesterday, due in three days, and another performer's overdue line.
	overdue := entryAt("alex", 0, now.AddDate(0, 0, -3), 2)
	future := entryAt("alex", 1, now, 3)
	other := entryAt("sam", 0, now.AddDate(0, 0, -5), 1)
	for _, e := range []progress.Entry{future, overdue, other} {
		if err := s.Put(ctx, e); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	due, err := s.Due(ctx, "alex", now)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("len(due) = %d, want 1", len(due))
	}
	if due[0].Key != overdue.Key {
		t.Errorf("due[0].Key = %+v, want overdue line", due[0].Key)
	}
}

func TestMemStore_DueOrdering(t *testing.T) {
	t.Parallel()

	s := progress.NewMemStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	later := entryAt("alex", 0, now.AddDate(0, 0, -2), 1)   // due yesterday
	earlier := entryAt("alex", 1, now.AddDate(0, 0, -5), 1) // due four days ago
	for _, e := range []progress.Entry{later, earlier} {
		if err := s.Put(ctx, e); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

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
