// Command cantora runs a karaoke practice session: it records a take for
// each lyric line, transcribes it, scores the transcript, and advances the
// line's spaced-repetition schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirelo-dev/cantora/internal/app"
	"github.com/mirelo-dev/cantora/internal/config"
	"github.com/mirelo-dev/cantora/internal/lyrics"
	"github.com/mirelo-dev/cantora/internal/observe"
	"github.com/mirelo-dev/cantora/internal/session"
	"github.com/mirelo-dev/cantora/pkg/audio"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	lyricsPath := flag.String("lyrics", "", "path to the LRC (or plain text) lyrics file")
	takesDir := flag.String("takes", "", "directory holding line-<n>.wav takes to practice from")
	performer := flag.String("performer", "", "performer whose progress is tracked")
	songID := flag.String("song", "", "song identifier")
	segmentID := flag.String("segment", "full", "segment identifier within the song")
	dueOnly := flag.Bool("due", false, "list due lines for the performer and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cantora: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cantora: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("cantora starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "cantora"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	if *performer == "" {
		fmt.Fprintln(os.Stderr, "cantora: -performer is required")
		return 2
	}

	// ── Due-lines query mode ──────────────────────────────────────────────────
	if *dueOnly {
		return printDue(ctx, application, *performer)
	}

	if *lyricsPath == "" || *takesDir == "" || *songID == "" {
		fmt.Fprintln(os.Stderr, "cantora: -lyrics, -takes and -song are required to run a session")
		return 2
	}

	// ── Load lyrics and takes ─────────────────────────────────────────────────
	lines, err := lyrics.ParseFile(*lyricsPath)
	if err != nil {
		slog.Error("failed to parse lyrics", "path", *lyricsPath, "err", err)
		return 1
	}

	recorder, err := audio.NewTakeDir(*takesDir)
	if err != nil {
		slog.Error("failed to open takes directory", "path", *takesDir, "err", err)
		return 1
	}

	// ── Run the HTTP sidecar alongside the session ────────────────────────────
	sidecarDone := make(chan error, 1)
	sidecarCtx, stopSidecar := context.WithCancel(ctx)
	defer stopSidecar()
	go func() { sidecarDone <- application.Run(sidecarCtx) }()

	// ── Practice session ──────────────────────────────────────────────────────
	key := session.Key{Performer: *performer, SongID: *songID, SegmentID: *segmentID}
	summary, err := application.Sessions().Run(ctx, recorder, key, lines)
	if err != nil {
		slog.Error("session failed to run", "err", err)
		return 1
	}

	printSummary(summary)
	printDue(ctx, application, *performer)

	stopSidecar()
	if err := <-sidecarDone; err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("http sidecar error", "err", err)
	}
	return 0
}

// printDue lists the performer's currently due lines, soonest first.
func printDue(ctx context.Context, application *app.App, performer string) int {
	entries, err := application.Store().Due(ctx, performer, time.Now())
	if err != nil {
		slog.Error("due query failed", "err", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Printf("%s has no lines due — nothing to practice.\n", performer)
		return 0
	}
	fmt.Printf("Due lines for %s:\n", performer)
	for _, e := range entries {
		fmt.Printf("  %s/%s line %d  (due %s, last score %d)\n",
			e.Key.SongID, e.Key.SegmentID, e.Key.LineIndex,
			e.State.Due().Format("2006-01-02"), e.LastScore)
	}
	return 0
}

// printSummary renders the per-line outcome table and session aggregates.
func printSummary(s session.Summary) {
	fmt.Printf("\nSession %s — %s/%s\n", s.Key.Performer, s.Key.SongID, s.Key.SegmentID)
	for _, r := range s.Results {
		if r.Graded {
			fmt.Printf("  line %2d  %3d  %-5s next in %d day(s)\n",
				r.Line.Index, r.Score, r.Rating.String(), r.State.ScheduledDays)
			continue
		}
		fmt.Printf("  line %2d  failed at %s: %v\n", r.Line.Index, r.FailedStage, r.Err)
	}
	fmt.Printf("Graded %d/%d lines", s.Graded, s.Attempted())
	if s.Graded > 0 {
		fmt.Printf(", average score %.1f", s.AverageScore)
	}
	fmt.Printf(" (%.1fs)\n", s.FinishedAt.Sub(s.StartedAt).Seconds())
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
