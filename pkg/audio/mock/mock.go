// Package mock provides an in-memory Recorder for tests.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/mirelo-dev/cantora/pkg/audio"
)

// Recorder replays scripted clips keyed by line index. Lines without a
// scripted clip fail, which lets tests exercise per-line failure paths.
type Recorder struct {
	// Clips maps line index to the clip Record returns for it.
	Clips map[int]audio.Clip

	// Err, when set, is returned for every call regardless of Clips.
	Err error

	// Calls records the line indexes requested, in order.
	Calls []int
}

var _ audio.Recorder = (*Recorder)(nil)

func (m *Recorder) Record(ctx context.Context, lineIndex int, _ time.Duration) (audio.Clip, error) {
	if err := ctx.Err(); err != nil {
		return audio.Clip{}, err
	}
	m.Calls = append(m.Calls, lineIndex)
	if m.Err != nil {
		return audio.Clip{}, m.Err
	}
	clip, ok := m.Clips[lineIndex]
	if !ok {
		return audio.Clip{}, fmt.Errorf("mock: no clip scripted for line %d", lineIndex)
	}
	return clip, nil
}
