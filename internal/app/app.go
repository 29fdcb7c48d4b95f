// Package app wires all subsystems into a running application: progress
// store, STT failover chain, scorer, scheduler, session manager, and the
// HTTP sidecar serving metrics and health endpoints.
//
// For testing, inject mock implementations via the functional options
// (WithStore, WithTranscriber, WithRegistry).
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mirelo-dev/cantora/internal/config"
	"github.com/mirelo-dev/cantora/internal/health"
	"github.com/mirelo-dev/cantora/internal/observe"
	"github.com/mirelo-dev/cantora/internal/resilience"
	"github.com/mirelo-dev/cantora/internal/score"
	"github.com/mirelo-dev/cantora/pkg/fsrs"
	"github.com/mirelo-dev/cantora/pkg/progress"
	progresspg "github.com/mirelo-dev/cantora/pkg/progress/postgres"
	progresssqlite "github.com/mirelo-dev/cantora/pkg/progress/sqlite"
	"github.com/mirelo-dev/cantora/pkg/provider/stt"
)

// shutdownTimeout bounds the HTTP server drain during Run teardown.
const shutdownTimeout = 10 * time.Second

// Option configures an [App] before its subsystems are initialised.
type Option func(*App)

// WithStore injects a progress store, bypassing cfg.Progress.
func WithStore(s progress.Store) Option {
	return func(a *App) { a.store = s }
}

// WithTranscriber injects a transcriber, bypassing cfg.STT entirely
// (no registry lookup, no failover chain).
func WithTranscriber(t stt.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithRegistry replaces the STT backend registry. Defaults to
// [config.DefaultRegistry].
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics replaces the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// App owns every long-lived subsystem. Construct with [New], run the HTTP
// sidecar with [Run], and release resources with [Shutdown].
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics

	store       progress.Store
	transcriber stt.Transcriber
	scorer      *score.Scorer
	scheduler   *fsrs.Scheduler
	sessions    *SessionManager

	httpServer *http.Server

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// New constructs the application from cfg. Initialisation is synchronous;
// when New returns nil error every subsystem is ready. On error, anything
// already opened has been closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = config.DefaultRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// 1. Progress store.
	if a.store == nil {
		store, err := openStore(ctx, cfg.Progress)
		if err != nil {
			return nil, fmt.Errorf("app: open progress store: %w", err)
		}
		a.store = store
	}
	a.closers = append(a.closers, a.store.Close)

	// 2. STT backend chain.
	if a.transcriber == nil {
		tr, err := a.buildTranscriber()
		if err != nil {
			a.closeAll()
			return nil, err
		}
		a.transcriber = tr
	}

	// 3. Scorer and scheduler.
	a.scorer = score.New(score.WithFuzzyTokenThreshold(cfg.Scoring.FuzzyTokenThreshold))
	scheduler, err := fsrs.NewScheduler(cfg.Scheduler.SchedulerParams())
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: scheduler: %w", err)
	}
	a.scheduler = scheduler

	// 4. Session manager.
	a.sessions = NewSessionManager(SessionManagerConfig{
		Transcriber: a.transcriber,
		Scorer:      a.scorer,
		Thresholds:  cfg.Scoring.Thresholds,
		Scheduler:   a.scheduler,
		Store:       a.store,
		Language:    cfg.Session.Language,
		Metrics:     a.metrics,
	})

	// 5. HTTP sidecar (metrics + health).
	a.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.buildHTTPHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("application initialised",
		"progress_driver", string(cfg.Progress.Driver),
		"stt_primary", cfg.STT.Primary.Name,
		"stt_fallbacks", len(cfg.STT.Fallbacks),
		"listen_addr", cfg.Server.ListenAddr,
	)
	return a, nil
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Store returns the progress store, for due-line queries outside a session.
func (a *App) Store() progress.Store { return a.store }

// Run serves the HTTP sidecar until ctx is cancelled, then drains it and
// returns. Subsystem resources are not released here; call [Shutdown].
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(drainCtx); err != nil {
			slog.Warn("http server drain", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown releases all subsystem resources. Safe to call more than once;
// only the first call does work.
func (a *App) Shutdown(_ context.Context) error {
	var err error
	a.stopOnce.Do(func() { err = a.closeAll() })
	return err
}

// closeAll runs closers in reverse order and joins their errors.
func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildTranscriber instantiates the primary backend and any fallbacks from
// the registry. With fallbacks configured the result is a failover chain;
// a lone primary is used directly.
func (a *App) buildTranscriber() (stt.Transcriber, error) {
	primary, err := a.registry.CreateSTT(a.cfg.STT.Primary)
	if err != nil {
		return nil, fmt.Errorf("app: primary stt backend: %w", err)
	}
	a.trackCloser(primary)

	if len(a.cfg.STT.Fallbacks) == 0 {
		return primary, nil
	}

	fallbacks := make([]stt.Transcriber, 0, len(a.cfg.STT.Fallbacks))
	for _, entry := range a.cfg.STT.Fallbacks {
		fb, err := a.registry.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("app: fallback stt backend %q: %w", entry.Name, err)
		}
		a.trackCloser(fb)
		fallbacks = append(fallbacks, fb)
	}

	return resilience.NewTranscribers(resilience.BreakerConfig{
		Threshold: a.cfg.STT.BreakerThreshold,
	}, primary, fallbacks...), nil
}

// trackCloser registers v for teardown if it holds resources.
// Only the native whisper backend does today.
func (a *App) trackCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
}

// buildHTTPHandler assembles the sidecar mux: Prometheus metrics, health
// probes, all wrapped in the tracing middleware.
func (a *App) buildHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(health.Probe{
		Name: "progress_store",
		Check: func(ctx context.Context) error {
			_, err := a.store.Due(ctx, "healthcheck", time.Now())
			return err
		},
	})
	h.Register(mux)

	return observe.Middleware(a.metrics)(mux)
}

// openStore builds the progress store selected by cfg.Driver. The config
// loader has already validated driver-specific settings.
func openStore(ctx context.Context, cfg config.ProgressConfig) (progress.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return progresspg.NewStore(ctx, cfg.PostgresDSN)
	case config.DriverSQLite:
		return progresssqlite.NewStore(ctx, cfg.SQLitePath)
	case config.DriverMemory, "":
		return progress.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown progress driver %q", cfg.Driver)
	}
}
