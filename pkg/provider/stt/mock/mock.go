// Package mock provides an in-memory Transcriber for tests.
package mock

import (
	"context"
	"sync"

	"github.com/mirelo-dev/cantora/pkg/audio"
	"github.com/mirelo-dev/cantora/pkg/provider/stt"
)

// Transcriber replays scripted results in call order. Once the script is
// exhausted it returns empty transcripts. Safe for concurrent use.
type Transcriber struct {
	mu sync.Mutex

	// Script is consumed one entry per Transcribe call.
	Script []Result

	// CallCount counts Transcribe invocations, including ones past the end
	// of the script.
	CallCount int
}

// Result is one scripted Transcribe outcome.
type Result struct {
	Text string
	Err  error
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Scripted returns a Transcriber that yields the given texts in order.
func Scripted(texts ...string) *Transcriber {
	t := &Transcriber{}
	for _, s := range texts {
		t.Script = append(t.Script, Result{Text: s})
	}
	return t
}

func (t *Transcriber) Name() string { return "mock" }

func (t *Transcriber) Transcribe(ctx context.Context, _ audio.Clip, _ string) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.CallCount
	t.CallCount++
	if i >= len(t.Script) {
		return stt.Transcript{}, nil
	}
	r := t.Script[i]
	if r.Err != nil {
		return stt.Transcript{}, r.Err
	}
	return stt.Transcript{Text: r.Text, Confidence: 1}, nil
}
