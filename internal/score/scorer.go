// Package score compares a recognised transcript against the expected lyric
// line and maps the resulting similarity score to an FSRS rating.
//
// The scorer implements bag-of-words overlap: both strings are normalised
// (lowercased, punctuation stripped, whitespace collapsed), tokenised, and
// the score is the percentage of expected tokens present in the recognised
// token multiset. An exact match after normalisation short-circuits to 100.
//
// Plain token membership is deliberately forgiving of word order (singers
// drop and repeat words) but unforgiving of transcription spelling drift.
// To absorb the latter, the scorer optionally credits recognised tokens that
// are Jaro-Winkler-close to an expected token; at the default threshold of
// 1.0 only exact tokens count, preserving the plain bag-of-words contract.
// Either way the score is monotonic: adding a correct word to the recognised
// text never lowers it.
package score

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// ErrEmptyExpected is returned when the expected line is empty after
// normalisation. The input is malformed; fix the lyric source, do not retry.
var ErrEmptyExpected = errors.New("score: expected text is empty after normalisation")

// defaultFuzzyThreshold of 1.0 disables fuzzy token credit.
const defaultFuzzyThreshold = 1.0

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithFuzzyTokenThreshold sets the minimum Jaro-Winkler similarity at which
// a recognised token counts as a match for an expected token. Values below
// 1.0 credit near-miss transcriptions ("runnin" for "running"); 1.0 requires
// exact tokens. Default: 1.0.
func WithFuzzyTokenThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.fuzzyThreshold = threshold
	}
}

// Scorer computes similarity scores in [0, 100]. It is read-only after
// construction and safe for concurrent use.
type Scorer struct {
	fuzzyThreshold float64
}

// New returns a Scorer configured with the supplied options.
func New(opts ...Option) *Scorer {
	s := &Scorer{fuzzyThreshold: defaultFuzzyThreshold}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score compares recognised speech against the expected lyric line and
// returns an integer score in [0, 100].
//
// Empty expected text (after normalisation) returns [ErrEmptyExpected].
// Empty recognised text scores 0.
func (s *Scorer) Score(expected, recognized string) (int, error) {
	expNorm := Normalize(expected)
	if expNorm == "" {
		return 0, fmt.Errorf("%w: %q", ErrEmptyExpected, expected)
	}
	recNorm := Normalize(recognized)
	if recNorm == "" {
		return 0, nil
	}
	if expNorm == recNorm {
		return 100, nil
	}

	expTokens := strings.Fields(expNorm)
	recTokens := strings.Fields(recNorm)

	// Count how many expected tokens appear in the recognised multiset.
	// Each recognised token can satisfy at most one expected token so that
	// repeating a single word does not inflate the score.
	remaining := make(map[string]int, len(recTokens))
	for _, tok := range recTokens {
		remaining[tok]++
	}

	matched := 0
	var unmatched []string
	for _, tok := range expTokens {
		if remaining[tok] > 0 {
			remaining[tok]--
			matched++
		} else {
			unmatched = append(unmatched, tok)
		}
	}

	// Fuzzy second pass for the tokens exact matching could not place.
	if s.fuzzyThreshold < 1.0 && len(unmatched) > 0 {
		for _, tok := range unmatched {
			if best := takeClosest(tok, remaining, s.fuzzyThreshold); best != "" {
				remaining[best]--
				matched++
			}
		}
	}

	pct := int(math.Round(100 * float64(matched) / float64(len(expTokens))))
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// takeClosest returns the recognised token with the highest Jaro-Winkler
// similarity to tok among those with remaining count, provided it reaches
// the threshold. Returns "" when none qualifies.
func takeClosest(tok string, remaining map[string]int, threshold float64) string {
	var (
		best      string
		bestScore float64
	)
	for cand, n := range remaining {
		if n <= 0 {
			continue
		}
		if jw := matchr.JaroWinkler(tok, cand, false); jw >= threshold && jw > bestScore {
			best, bestScore = cand, jw
		}
	}
	return best
}

// Normalize lowercases s, strips punctuation, and collapses runs of
// whitespace to single spaces. Apostrophes are dropped rather than split so
// "don't" stays one token.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true // collapse leading whitespace
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			// punctuation: dropped entirely
		}
	}
	return strings.TrimRight(b.String(), " ")
}
