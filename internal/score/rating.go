package score

import (
	"errors"
	"fmt"

	"github.com/mirelo-dev/cantora/pkg/fsrs"
)

// Thresholds maps a similarity score onto the four FSRS ratings. A score of
// at least Easy grades Easy, at least Good grades Good, at least Hard grades
// Hard, anything below grades Again.
type Thresholds struct {
	Easy int `yaml:"easy"`
	Good int `yaml:"good"`
	Hard int `yaml:"hard"`
}

// DefaultThresholds is the canonical score-to-rating mapping: ≥90 Easy,
// ≥75 Good, ≥60 Hard, else Again.
var DefaultThresholds = Thresholds{Easy: 90, Good: 75, Hard: 60}

// Validate checks that the cutoffs are within [0, 100] and ordered so the
// mapping stays monotonic.
func (t Thresholds) Validate() error {
	var errs []error
	for name, v := range map[string]int{"easy": t.Easy, "good": t.Good, "hard": t.Hard} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("threshold %s = %d is outside [0, 100]", name, v))
		}
	}
	if !(t.Easy >= t.Good && t.Good >= t.Hard) {
		errs = append(errs, fmt.Errorf("thresholds must be ordered easy >= good >= hard, got %d/%d/%d", t.Easy, t.Good, t.Hard))
	}
	return errors.Join(errs...)
}

// Rating maps score onto an FSRS rating. Higher scores never yield a worse
// rating.
func (t Thresholds) Rating(score int) fsrs.Rating {
	switch {
	case score >= t.Easy:
		return fsrs.Easy
	case score >= t.Good:
		return fsrs.Good
	case score >= t.Hard:
		return fsrs.Hard
	default:
		return fsrs.Again
	}
}
