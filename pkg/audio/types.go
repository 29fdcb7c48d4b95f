// Package audio holds the small PCM toolbox the practice pipeline needs:
// the [Clip] sample container, WAV encode/decode, downmix/resample helpers,
// and the [Recorder] capability that produces one clip per lyric line.
package audio

import (
	"context"
	"time"
)

// Clip is a chunk of 16-bit signed little-endian PCM audio, typically one
// recorded take of a single lyric line.
type Clip struct {
	// PCM is raw interleaved int16 little-endian sample data.
	PCM []byte

	// SampleRate in Hz (e.g. 16000, 44100, 48000).
	SampleRate int

	// Channels is 1 for mono or 2 for interleaved stereo.
	Channels int
}

// Duration returns the play time of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	samples := len(c.PCM) / 2 / c.Channels
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip carries no samples.
func (c Clip) Empty() bool { return len(c.PCM) < 2 }

// Recorder is the audio-capture capability consumed by a practice session.
// One clip is produced per lyric line; the hint is the expected duration of
// the line's window in the backing track (zero when unknown).
//
// Implementations must respect ctx cancellation. Recording for consecutive
// lines is strictly sequential — implementations may assume exclusive use of
// the capture device between calls.
type Recorder interface {
	Record(ctx context.Context, lineIndex int, hint time.Duration) (Clip, error)
}
