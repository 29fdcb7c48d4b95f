package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TakeDir is a Recorder that replays pre-recorded takes from a directory.
// Each line's take is expected at `line-<index>.wav` (16-bit PCM). It backs
// offline practice runs and integration testing against captured audio.
type TakeDir struct {
	dir string
}

var _ Recorder = (*TakeDir)(nil)

// NewTakeDir returns a TakeDir reading from dir. The directory must exist.
func NewTakeDir(dir string) (*TakeDir, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("audio: take dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("audio: take dir: %q is not a directory", dir)
	}
	return &TakeDir{dir: dir}, nil
}

// Record loads the take for lineIndex. A missing or malformed take file is
// an error so the session can mark the line as failed and move on.
func (t *TakeDir) Record(ctx context.Context, lineIndex int, _ time.Duration) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}

	path := filepath.Join(t.dir, fmt.Sprintf("line-%d.wav", lineIndex))
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: take for line %d: %w", lineIndex, err)
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: take for line %d: %w", lineIndex, err)
	}
	return clip, nil
}
