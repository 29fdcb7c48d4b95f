// This file contains the NativeTranscriber implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/mirelo-dev/cantora/pkg/audio"
	"github.com/mirelo-dev/cantora/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeTranscriber satisfies stt.Transcriber.
var _ stt.Transcriber = (*NativeTranscriber)(nil)

// NativeTranscriber implements stt.Transcriber using the whisper.cpp Go
// bindings (CGO), eliminating HTTP overhead entirely. The model is loaded
// once at startup and shared across all calls; each call gets a fresh
// whisper context because contexts are not thread-safe.
type NativeTranscriber struct {
	model    whisperlib.Model
	language string

	// mu serialises inference. whisper.cpp contexts are cheap but the
	// underlying model evaluation is CPU-bound, so running clips from
	// concurrent performers back to back beats oversubscribing cores.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeTranscriber.
type NativeOption func(*NativeTranscriber)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(t *NativeTranscriber) { t.language = lang }
}

// NewNative creates a NativeTranscriber that loads the whisper.cpp model
// from the given file path. The caller must call Close when the transcriber
// is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeTranscriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &NativeTranscriber{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Name returns "whisper-native".
func (t *NativeTranscriber) Name() string { return "whisper-native" }

// Close releases the whisper model. Must be called when the transcriber is
// no longer needed.
func (t *NativeTranscriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference on the clip and returns the
// concatenated segment text. Empty clips yield an empty transcript without
// running inference.
func (t *NativeTranscriber) Transcribe(ctx context.Context, clip audio.Clip, language string) (stt.Transcript, error) {
	if clip.Empty() {
		return stt.Transcript{}, nil
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}

	clip = audio.Resample(clip, whisperSampleRate)
	samples := pcmToFloat32(clip.PCM)

	lang := language
	if lang == "" {
		lang = t.language
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts []string
		words []stt.WordDetail
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		words = append(words, stt.WordDetail{
			Word:  text,
			Start: segment.Start,
			End:   segment.End,
		})
	}

	return stt.Transcript{
		Text:     strings.Join(parts, " "),
		Words:    words,
		Duration: clip.Duration(),
	}, nil
}

// pcmToFloat32 converts 16-bit signed little-endian mono PCM into the
// normalised float32 samples the whisper bindings expect.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}
