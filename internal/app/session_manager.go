package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mirelo-dev/cantora/internal/lyrics"
	"github.com/mirelo-dev/cantora/internal/observe"
	"github.com/mirelo-dev/cantora/internal/score"
	"github.com/mirelo-dev/cantora/internal/session"
	"github.com/mirelo-dev/cantora/pkg/audio"
	"github.com/mirelo-dev/cantora/pkg/fsrs"
	"github.com/mirelo-dev/cantora/pkg/progress"
	"github.com/mirelo-dev/cantora/pkg/provider/stt"
)

// SessionInfo holds metadata about an active practice session.
type SessionInfo struct {
	Performer string
	SongID    string
	SegmentID string
	StartedAt time.Time
}

// SessionManager runs practice sessions while enforcing that each performer
// has at most one session in flight. Progress state is keyed per performer,
// so two concurrent sessions for the same performer would race on reads and
// writes of the same lines. Different performers may practice concurrently.
//
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu     sync.Mutex
	active map[string]SessionInfo

	// Shared collaborators for every session. The recorder is per-session:
	// it is bound to a take source the caller provides.
	transcriber stt.Transcriber
	scorer      *score.Scorer
	thresholds  score.Thresholds
	scheduler   *fsrs.Scheduler
	store       progress.Store
	language    string
	metrics     *observe.Metrics
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Transcriber stt.Transcriber
	Scorer      *score.Scorer
	Thresholds  score.Thresholds
	Scheduler   *fsrs.Scheduler
	Store       progress.Store
	Language    string
	Metrics     *observe.Metrics
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	return &SessionManager{
		active:      make(map[string]SessionInfo),
		transcriber: cfg.Transcriber,
		scorer:      cfg.Scorer,
		thresholds:  cfg.Thresholds,
		scheduler:   cfg.Scheduler,
		store:       cfg.Store,
		language:    cfg.Language,
		metrics:     cfg.Metrics,
	}
}

// Run practices lines for key, recording takes through recorder. It blocks
// until the session finishes or ctx is cancelled (cancellation applies at
// line boundaries).
//
// Returns an error without running anything when the performer already has
// a session in flight.
func (sm *SessionManager) Run(ctx context.Context, recorder audio.Recorder, key session.Key, lines []lyrics.Line) (session.Summary, error) {
	if err := sm.acquire(key); err != nil {
		return session.Summary{}, err
	}
	defer sm.release(key.Performer)

	opts := []session.Option{session.WithLanguage(sm.language)}
	if sm.metrics != nil {
		opts = append(opts, session.WithMetrics(sm.metrics))
	}
	orch, err := session.New(recorder, sm.transcriber, sm.scorer, sm.thresholds, sm.scheduler, sm.store, opts...)
	if err != nil {
		return session.Summary{}, fmt.Errorf("session manager: %w", err)
	}
	return orch.Run(ctx, key, lines)
}

// Active returns a snapshot of the sessions currently in flight.
func (sm *SessionManager) Active() []SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	infos := make([]SessionInfo, 0, len(sm.active))
	for _, info := range sm.active {
		infos = append(infos, info)
	}
	return infos
}

// IsActive reports whether performer has a session in flight.
func (sm *SessionManager) IsActive(performer string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, ok := sm.active[performer]
	return ok
}

func (sm *SessionManager) acquire(key session.Key) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if info, ok := sm.active[key.Performer]; ok {
		return fmt.Errorf("session manager: performer %q already has a session in flight (song=%s segment=%s, started %s)",
			key.Performer, info.SongID, info.SegmentID, info.StartedAt.Format(time.RFC3339))
	}
	sm.active[key.Performer] = SessionInfo{
		Performer: key.Performer,
		SongID:    key.SongID,
		SegmentID: key.SegmentID,
		StartedAt: time.Now().UTC(),
	}
	return nil
}

func (sm *SessionManager) release(performer string) {
	sm.mu.Lock()
	delete(sm.active, performer)
	sm.mu.Unlock()
	slog.Debug("session slot released", "performer", performer)
}
