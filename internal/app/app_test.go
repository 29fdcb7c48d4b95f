package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/mirelo-dev/cantora/internal/app"
	"github.com/mirelo-dev/cantora/internal/config"
	"github.com/mirelo-dev/cantora/internal/lyrics"
	"github.com/mirelo-dev/cantora/internal/observe"
	"github.com/mirelo-dev/cantora/internal/score"
	"github.com/mirelo-dev/cantora/internal/session"
	"github.com/mirelo-dev/cantora/pkg/audio"
	audiomock "github.com/mirelo-dev/cantora/pkg/audio/mock"
	"github.com/mirelo-dev/cantora/pkg/progress"
	sttmock "github.com/mirelo-dev/cantora/pkg/provider/stt/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{ListenAddr: ":0", LogLevel: config.LogInfo},
		STT:      config.STTConfig{Primary: config.BackendEntry{Name: "mock"}},
		Scoring:  config.ScoringConfig{Thresholds: score.DefaultThresholds, FuzzyTokenThreshold: 1.0},
		Progress: config.ProgressConfig{Driver: config.DriverMemory},
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestNew_FromConfig(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Sessions() == nil {
		t.Error("Sessions() = nil")
	}
	if a.Store() == nil {
		t.Error("Store() = nil")
	}

	// Shutdown is idempotent.
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestNew_InjectedDoubles(t *testing.T) {
	t.Parallel()

	store := progress.NewMemStore()
	a, err := app.New(context.Background(), testConfig(),
		app.WithStore(store),
		app.WithTranscriber(sttmock.Scripted("hello")),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Store() != progress.Store(store) {
		t.Error("injected store was not used")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.STT.Primary.Name = "nope"
	if _, err := app.New(context.Background(), cfg, app.WithMetrics(testMetrics(t))); err == nil {
		t.Error("New with unregistered backend should fail")
	}
}

func TestSessionManager_RejectsConcurrentPerformer(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(),
		app.WithTranscriber(sttmock.Scripted("hello", "hello")),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	key := session.Key{Performer: "alex", SongID: "moon", SegmentID: "verse-1"}
	lines := []lyrics.Line{{Index: 0, Text: "hello"}}

	rec := newBlockingRecorder()
	done := make(chan error, 1)
	go func() {
		_, err := a.Sessions().Run(context.Background(), rec, key, lines)
		done <- err
	}()

	select {
	case <-rec.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first session never started recording")
	}

	// Same performer is locked out while the first session is in flight.
	if _, err := a.Sessions().Run(context.Background(), &audiomock.Recorder{}, key, lines); err == nil {
		t.Error("second session for the same performer should be rejected")
	}
	if !a.Sessions().IsActive("alex") {
		t.Error("IsActive(alex) = false during session")
	}

	// A different performer is not blocked.
	other := session.Key{Performer: "sam", SongID: "moon", SegmentID: "verse-1"}
	otherRec := &audiomock.Recorder{Clips: map[int]audio.Clip{
		0: {PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1},
	}}
	if _, err := a.Sessions().Run(context.Background(), otherRec, other, lines); err != nil {
		t.Errorf("different performer should run concurrently: %v", err)
	}

	rec.release()
	if err := <-done; err != nil {
		t.Fatalf("first session: %v", err)
	}

	// Slot is freed once the session returns.
	if a.Sessions().IsActive("alex") {
		t.Error("IsActive(alex) = true after session finished")
	}
}

// blockingRecorder signals when recording starts and blocks until released.
type blockingRecorder struct {
	started   chan struct{}
	releaseCh chan struct{}
	once      sync.Once
}

func newBlockingRecorder() *blockingRecorder {
	return &blockingRecorder{
		started:   make(chan struct{}),
		releaseCh: make(chan struct{}),
	}
}

func (b *blockingRecorder) release() { close(b.releaseCh) }

func (b *blockingRecorder) Record(ctx context.Context, _ int, _ time.Duration) (audio.Clip, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.releaseCh:
	case <-ctx.Done():
		return audio.Clip{}, ctx.Err()
	}
	return audio.Clip{PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}, nil
}
