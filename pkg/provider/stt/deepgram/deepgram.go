// Package deepgram provides a Deepgram-backed STT transcriber using the
// Deepgram pre-recorded audio API (POST /v1/listen). It implements the
// stt.Transcriber interface.
//
// Lyric-line clips are short (a few seconds), so the pre-recorded endpoint
// is a better fit than Deepgram's streaming WebSocket API: one request per
// clip, word-level timings and confidence in the response.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mirelo-dev/cantora/pkg/audio"
	"github.com/mirelo-dev/cantora/pkg/provider/stt"
)

const (
	defaultEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring the Deepgram Transcriber.
type Option func(*Transcriber)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en",
// "de-DE") when the caller does not pass one per call.
func WithLanguage(language string) Option {
	return func(t *Transcriber) {
		t.language = language
	}
}

// WithEndpoint overrides the API endpoint. Used by tests to point at an
// httptest server.
func WithEndpoint(endpoint string) Option {
	return func(t *Transcriber) {
		t.endpoint = endpoint
	}
}

// WithHTTPClient replaces the HTTP client used for API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transcriber) {
		t.httpClient = c
	}
}

// Transcriber implements stt.Transcriber backed by the Deepgram pre-recorded
// API. Safe for concurrent use.
type Transcriber struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Deepgram Transcriber. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	t := &Transcriber{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Name returns "deepgram".
func (t *Transcriber) Name() string { return "deepgram" }

// listenResponse mirrors the subset of the Deepgram pre-recorded response we
// consume: the first alternative of the first channel.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe uploads the clip to Deepgram and returns the first alternative
// of the first channel. Empty clips yield an empty transcript without
// touching the network.
func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip, language string) (stt.Transcript, error) {
	if clip.Empty() {
		return stt.Transcript{}, nil
	}

	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", err)
	}

	reqURL, err := t.buildURL(language)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(wav))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+t.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Transcript{}, fmt.Errorf("deepgram: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var lr listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: parse response: %w", err)
	}

	if len(lr.Results.Channels) == 0 || len(lr.Results.Channels[0].Alternatives) == 0 {
		return stt.Transcript{Duration: clip.Duration()}, nil
	}
	alt := lr.Results.Channels[0].Alternatives[0]

	out := stt.Transcript{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Duration:   clip.Duration(),
	}
	for _, w := range alt.Words {
		out.Words = append(out.Words, stt.WordDetail{
			Word:       w.Word,
			Start:      secondsToDuration(w.Start),
			End:        secondsToDuration(w.End),
			Confidence: w.Confidence,
		})
	}
	return out, nil
}

// buildURL constructs the pre-recorded endpoint URL with model and language
// query parameters.
func (t *Transcriber) buildURL(language string) (string, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", err
	}

	lang := language
	if lang == "" {
		lang = t.language
	}

	q := u.Query()
	q.Set("model", t.model)
	if lang != "" {
		q.Set("language", lang)
	}
	q.Set("punctuate", strconv.FormatBool(true))
	q.Set("smart_format", strconv.FormatBool(false))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
