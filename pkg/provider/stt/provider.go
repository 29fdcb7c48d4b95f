// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A practice session records one short clip per lyric line and needs its
// text back before the line can be scored, so the abstraction here is a
// batch call: one clip in, one Transcript out. Whisper (HTTP server or the
// native bindings), Deepgram's pre-recorded API, and OpenAI's transcription
// endpoint all fit this shape.
//
// Implementations must be safe for concurrent use. Sessions are sequential
// per performer, but several performers may transcribe at once.
package stt

import (
	"context"

	"github.com/mirelo-dev/cantora/pkg/audio"
)

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe converts one recorded clip into text. language is a
	// BCP-47 tag ("en", "de"); empty lets the backend auto-detect where
	// supported.
	//
	// A clip that contains no recognisable speech yields an empty
	// Transcript.Text and a nil error — silence is a scoring outcome,
	// not a transcription failure.
	Transcribe(ctx context.Context, clip audio.Clip, language string) (Transcript, error)

	// Name identifies the backend for logs and metrics (e.g. "whisper",
	// "deepgram").
	Name() string
}
