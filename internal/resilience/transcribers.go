package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mirelo-dev/cantora/pkg/audio"
	"github.com/mirelo-dev/cantora/pkg/provider/stt"
)

// ErrAllBackends is returned when every transcriber in the chain failed or
// was in cooldown.
var ErrAllBackends = errors.New("resilience: all transcription backends failed")

// Compile-time interface check: the chain is itself a Transcriber, so the
// session layer never knows whether it talks to one backend or several.
var _ stt.Transcriber = (*Transcribers)(nil)

// Transcribers is a failover chain of STT backends. Each backend gets its
// own [Breaker]; a backend in cooldown is skipped without being called, so
// one dead whisper server does not add per-line timeouts while a fallback
// is available.
type Transcribers struct {
	entries []transcriberEntry
}

type transcriberEntry struct {
	backend stt.Transcriber
	breaker *Breaker
}

// NewTranscribers builds a chain from primary plus fallbacks, tried in
// order. cfg.Name is overridden per entry with the backend's own name.
func NewTranscribers(cfg BreakerConfig, primary stt.Transcriber, fallbacks ...stt.Transcriber) *Transcribers {
	t := &Transcribers{}
	for _, b := range append([]stt.Transcriber{primary}, fallbacks...) {
		entryCfg := cfg
		entryCfg.Name = b.Name()
		t.entries = append(t.entries, transcriberEntry{
			backend: b,
			breaker: NewBreaker(entryCfg),
		})
	}
	return t
}

// Name identifies the chain by its primary backend.
func (t *Transcribers) Name() string {
	return t.entries[0].backend.Name() + "+fallback"
}

// Transcribe tries each healthy backend in order until one succeeds.
// Context cancellation stops the walk immediately — a cancelled session
// must not burn through fallbacks.
func (t *Transcribers) Transcribe(ctx context.Context, clip audio.Clip, language string) (stt.Transcript, error) {
	var lastErr error = ErrOpen
	for _, e := range t.entries {
		if err := ctx.Err(); err != nil {
			return stt.Transcript{}, err
		}
		if !e.breaker.Allow() {
			slog.Debug("skipping backend in cooldown", "backend", e.backend.Name())
			continue
		}

		tr, err := e.backend.Transcribe(ctx, clip, language)
		e.breaker.Report(err)
		if err == nil {
			return tr, nil
		}
		lastErr = err
		slog.Warn("transcription backend failed, trying next",
			"backend", e.backend.Name(), "error", err)
	}
	return stt.Transcript{}, fmt.Errorf("%w: %v", ErrAllBackends, lastErr)
}
