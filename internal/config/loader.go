package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mirelo-dev/cantora/internal/score"
	"github.com/mirelo-dev/cantora/pkg/fsrs"
)

// ValidBackendNames lists the STT backend names the registry knows about.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = []string{"whisper", "whisper-native", "deepgram", "openai", "mock"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-value fields with usable defaults so the rest of
// the application never re-checks them.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Scoring.Thresholds == (score.Thresholds{}) {
		cfg.Scoring.Thresholds = score.DefaultThresholds
	}
	if cfg.Scoring.FuzzyTokenThreshold == 0 {
		cfg.Scoring.FuzzyTokenThreshold = 1.0
	}
	if cfg.Progress.Driver == "" {
		cfg.Progress.Driver = DriverMemory
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// STT backends
	if cfg.STT.Primary.Name == "" {
		errs = append(errs, errors.New("stt.primary.name is required"))
	} else {
		warnUnknownBackend("stt.primary", cfg.STT.Primary.Name)
	}
	for i, fb := range cfg.STT.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("stt.fallbacks[%d].name is required", i))
		} else {
			warnUnknownBackend(fmt.Sprintf("stt.fallbacks[%d]", i), fb.Name)
		}
	}
	if cfg.STT.BreakerThreshold < 0 {
		errs = append(errs, fmt.Errorf("stt.breaker_threshold %d must not be negative", cfg.STT.BreakerThreshold))
	}

	// Scoring
	if err := cfg.Scoring.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring.thresholds: %w", err))
	}
	if cfg.Scoring.FuzzyTokenThreshold < 0 || cfg.Scoring.FuzzyTokenThreshold > 1 {
		errs = append(errs, fmt.Errorf("scoring.fuzzy_token_threshold %.2f is outside [0, 1]", cfg.Scoring.FuzzyTokenThreshold))
	}

	// Scheduler
	if n := len(cfg.Scheduler.Weights); n != 0 && n != fsrs.WeightCount {
		errs = append(errs, fmt.Errorf("scheduler.weights has %d entries; must be empty or exactly %d", n, fsrs.WeightCount))
	} else if err := cfg.Scheduler.SchedulerParams().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}

	// Progress store
	if !cfg.Progress.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("progress.driver %q is invalid; valid values: memory, sqlite, postgres", cfg.Progress.Driver))
	}
	if cfg.Progress.Driver == DriverPostgres && cfg.Progress.PostgresDSN == "" {
		errs = append(errs, errors.New("progress.postgres_dsn is required when driver is postgres"))
	}
	if cfg.Progress.Driver == DriverSQLite && cfg.Progress.SQLitePath == "" {
		errs = append(errs, errors.New("progress.sqlite_path is required when driver is sqlite"))
	}
	if cfg.Progress.Driver == DriverMemory {
		slog.Warn("progress.driver is memory; practice history will not survive a restart")
	}

	return errors.Join(errs...)
}

// warnUnknownBackend logs a warning if name is not in [ValidBackendNames].
// Unknown names still fail later at registry lookup; the warning just makes
// typos visible at startup.
func warnUnknownBackend(field, name string) {
	if slices.Contains(ValidBackendNames, name) {
		return
	}
	slog.Warn("unknown STT backend name — may be a typo",
		"field", field,
		"name", name,
		"known", ValidBackendNames,
	)
}
