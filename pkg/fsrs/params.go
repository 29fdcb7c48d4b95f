package fsrs

import (
	"errors"
	"fmt"
	"math"
)

// WeightCount is the number of free parameters in the FSRS-4.5 model.
const WeightCount = 17

// Weights is the FSRS-4.5 parameter vector w[0..16].
//
//   - w[0..3]  initial stability seeds per rating (Again..Easy)
//   - w[4..5]  initial difficulty
//   - w[6..7]  difficulty update and mean reversion
//   - w[8..13] recall stability growth
//   - w[14..16] post-lapse stability, hard penalty, easy bonus
type Weights [WeightCount]float64

// DefaultWeights is the published FSRS-4.5 default parameter vector, fitted
// on the open review dataset. Deployments that collect enough review history
// can substitute a per-performer fit via the configuration file.
var DefaultWeights = Weights{
	0.4872, 1.4003, 3.7145, 13.8206, 5.1618, 1.2298, 0.8975, 0.031,
	1.6474, 0.1367, 1.0461, 2.1072, 0.0793, 0.3246, 1.587, 0.2272, 2.8755,
}

const (
	// defaultDesiredRetention is the recall probability the interval
	// formula targets.
	defaultDesiredRetention = 0.9

	// defaultMaximumInterval caps scheduled intervals at roughly 100 years.
	defaultMaximumInterval = 36500

	// minStability is the floor applied to every computed stability so the
	// power-law curve stays well defined.
	minStability = 0.01
)

// Params bundles the weight vector with the scheduling knobs.
type Params struct {
	// Weights is the FSRS-4.5 parameter vector.
	Weights Weights

	// DesiredRetention is the target recall probability in (0, 1).
	// Default: 0.9.
	DesiredRetention float64

	// MaximumInterval caps the scheduled interval in days. Default: 36500.
	MaximumInterval int
}

// DefaultParams returns Params populated with the published defaults.
func DefaultParams() Params {
	return Params{
		Weights:          DefaultWeights,
		DesiredRetention: defaultDesiredRetention,
		MaximumInterval:  defaultMaximumInterval,
	}
}

// Validate checks that p describes a usable parameter set.
func (p Params) Validate() error {
	var errs []error
	for i, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, fmt.Errorf("weights[%d] is not finite", i))
		}
	}
	for i := 0; i < 4; i++ {
		if p.Weights[i] <= 0 {
			errs = append(errs, fmt.Errorf("weights[%d] (initial stability seed) must be positive, got %v", i, p.Weights[i]))
		}
	}
	if p.DesiredRetention <= 0 || p.DesiredRetention >= 1 {
		errs = append(errs, fmt.Errorf("desired retention %v is outside (0, 1)", p.DesiredRetention))
	}
	if p.MaximumInterval < 1 {
		errs = append(errs, fmt.Errorf("maximum interval %d must be at least 1 day", p.MaximumInterval))
	}
	return errors.Join(errs...)
}

func clampStability(s float64) float64 {
	return math.Max(s, minStability)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
