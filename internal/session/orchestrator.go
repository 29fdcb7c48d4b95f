package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mirelo-dev/cantora/internal/lyrics"
	"github.com/mirelo-dev/cantora/internal/observe"
	"github.com/mirelo-dev/cantora/internal/score"
	"github.com/mirelo-dev/cantora/pkg/audio"
	"github.com/mirelo-dev/cantora/pkg/fsrs"
	"github.com/mirelo-dev/cantora/pkg/progress"
	"github.com/mirelo-dev/cantora/pkg/provider/stt"
)

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithLanguage sets the BCP-47 language tag passed to the STT backend.
func WithLanguage(lang string) Option {
	return func(o *Orchestrator) { o.language = lang }
}

// WithMetrics replaces the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces the time source. Tests use this to pin review times.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// Orchestrator wires the per-line pipeline together. It holds no session
// state of its own; one Orchestrator can run any number of sessions, though
// callers must not run two sessions for the same performer concurrently
// (the app layer enforces this).
type Orchestrator struct {
	recorder    audio.Recorder
	transcriber stt.Transcriber
	scorer      *score.Scorer
	thresholds  score.Thresholds
	scheduler   *fsrs.Scheduler
	store       progress.Store

	language string
	metrics  *observe.Metrics
	clock    func() time.Time
}

// New creates an Orchestrator. All five collaborators are required.
func New(
	recorder audio.Recorder,
	transcriber stt.Transcriber,
	scorer *score.Scorer,
	thresholds score.Thresholds,
	scheduler *fsrs.Scheduler,
	store progress.Store,
	opts ...Option,
) (*Orchestrator, error) {
	if recorder == nil || transcriber == nil || scorer == nil || scheduler == nil || store == nil {
		return nil, errors.New("session: all collaborators are required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	o := &Orchestrator{
		recorder:    recorder,
		transcriber: transcriber,
		scorer:      scorer,
		thresholds:  thresholds,
		scheduler:   scheduler,
		store:       store,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o, nil
}

// Run practices lines in order under key and returns the session summary.
//
// Run never returns an error for per-line failures — those are recorded in
// the summary and the session moves on. The returned error is non-nil only
// when the session could not run at all (no lines). Cancellation mid-session
// is not an error either: the summary simply stops at the last line reached.
func (o *Orchestrator) Run(ctx context.Context, key Key, lines []lyrics.Line) (Summary, error) {
	if len(lines) == 0 {
		return Summary{}, errors.New("session: no lines to practice")
	}

	log := slog.With(
		"performer", key.Performer,
		"song", key.SongID,
		"segment", key.SegmentID,
	)

	summary := Summary{Key: key, StartedAt: o.clock()}
	o.metrics.ActiveSessions.Add(ctx, 1)
	defer o.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	log.Info("session started", "lines", len(lines))

	for _, line := range lines {
		// Cancellation is a session-level decision, checked only between
		// lines. A line that began its pipeline runs to completion.
		if ctx.Err() != nil {
			log.Info("session cancelled", "attempted", len(summary.Results), "total", len(lines))
			break
		}

		result := o.runLine(ctx, key, line, log)
		summary.Results = append(summary.Results, result)
	}

	summary.finish(o.clock())
	log.Info("session finished",
		"attempted", summary.Attempted(),
		"graded", summary.Graded,
		"average_score", summary.AverageScore,
	)
	return summary, nil
}

// runLine executes the full pipeline for one line. Failures are captured in
// the result, never propagated; the stored state is only touched when every
// stage up to and including scheduling succeeded.
func (o *Orchestrator) runLine(ctx context.Context, key Key, line lyrics.Line, log *slog.Logger) LineResult {
	result := LineResult{Line: line}
	lineStart := o.clock()

	// The line in flight finishes even if the session context is cancelled
	// mid-pipeline; persistence of a graded attempt must not be lost.
	lineCtx := context.WithoutCancel(ctx)

	// Record.
	hint := line.End - line.Start
	recStart := time.Now()
	clip, err := o.recorder.Record(ctx, line.Index, hint)
	o.metrics.RecordDuration.Record(lineCtx, time.Since(recStart).Seconds())
	if err != nil {
		return o.fail(lineCtx, result, StageRecord, err, log)
	}

	// Transcribe.
	trStart := time.Now()
	transcript, err := o.transcriber.Transcribe(ctx, clip, o.language)
	o.metrics.TranscribeDuration.Record(lineCtx, time.Since(trStart).Seconds())
	if err != nil {
		o.metrics.RecordBackendRequest(lineCtx, o.transcriber.Name(), "error")
		return o.fail(lineCtx, result, StageTranscribe, err, log)
	}
	o.metrics.RecordBackendRequest(lineCtx, o.transcriber.Name(), "ok")
	result.Transcript = transcript.Text

	// Score. Silence scores 0 and grades Again — that is a valid outcome,
	// not a failure.
	scored, err := o.scorer.Score(line.Text, transcript.Text)
	if err != nil {
		return o.fail(lineCtx, result, StageSchedule, err, log)
	}
	result.Score = scored
	result.Rating = o.thresholds.Rating(scored)

	// Load previous state and schedule. Corrupt stored state fails the
	// line; it is never silently reset.
	storeKey := progress.Key{
		Performer: key.Performer,
		SongID:    key.SongID,
		SegmentID: key.SegmentID,
		LineIndex: line.Index,
	}
	prev, err := o.store.Get(lineCtx, storeKey)
	if err != nil {
		return o.fail(lineCtx, result, StagePersist, err, log)
	}

	var prevState *fsrs.MemoryState
	if prev != nil {
		prevState = &prev.State
	}
	now := o.clock()
	next, err := o.scheduler.Schedule(prevState, result.Rating, now)
	if err != nil {
		return o.fail(lineCtx, result, StageSchedule, err, log)
	}

	if result.Rating == fsrs.Again && prev != nil {
		o.metrics.Lapses.Add(lineCtx, 1)
	}

	// Persist.
	err = o.store.Put(lineCtx, progress.Entry{
		Key:            storeKey,
		State:          next,
		LastScore:      scored,
		LastTranscript: transcript.Text,
		UpdatedAt:      now,
	})
	if err != nil {
		return o.fail(lineCtx, result, StagePersist, err, log)
	}

	result.Graded = true
	result.State = next
	o.metrics.RecordLineGraded(lineCtx, result.Rating.String())
	o.metrics.LineDuration.Record(lineCtx, o.clock().Sub(lineStart).Seconds())

	log.Debug("line graded",
		"line", line.Index,
		"score", scored,
		"rating", result.Rating.String(),
		"interval_days", next.ScheduledDays,
	)
	return result
}

// fail finalises a failed line result.
func (o *Orchestrator) fail(ctx context.Context, result LineResult, stage Stage, err error, log *slog.Logger) LineResult {
	result.Graded = false
	result.FailedStage = stage
	result.Err = err
	o.metrics.RecordLineFailed(ctx, string(stage))
	log.Warn("line failed", "line", result.Line.Index, "stage", string(stage), "error", err)
	return result
}
