package stt

import "time"

// Transcript represents a speech-to-text result for one recorded clip.
type Transcript struct {
	// Text is the transcribed speech content. Empty when the clip held no
	// recognisable speech.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the backend does not report confidence.
	Confidence float64

	// Words contains per-word detail when available (Deepgram, whisper
	// token timings). Nil for backends that don't support word-level
	// output.
	Words []WordDetail

	// Duration is the length of speech the backend detected in the clip.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT backends that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}
