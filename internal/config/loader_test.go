package config_test

import (
	"strings"
	"testing"

	"github.com/mirelo-dev/cantora/internal/config"
	"github.com/mirelo-dev/cantora/internal/score"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
stt:
  primary:
    name: whisper
    base_url: http://localhost:8080
  fallbacks:
    - name: deepgram
      api_key: dg-key
scoring:
  thresholds:
    easy: 92
    good: 78
    hard: 55
  fuzzy_token_threshold: 0.9
scheduler:
  desired_retention: 0.85
progress:
  driver: sqlite
  sqlite_path: /tmp/progress.db
session:
  language: en
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.STT.Primary.Name != "whisper" {
		t.Errorf("Primary.Name = %q", cfg.STT.Primary.Name)
	}
	if len(cfg.STT.Fallbacks) != 1 || cfg.STT.Fallbacks[0].Name != "deepgram" {
		t.Errorf("Fallbacks = %+v", cfg.STT.Fallbacks)
	}
	if want := (score.Thresholds{Easy: 92, Good: 78, Hard: 55}); cfg.Scoring.Thresholds != want {
		t.Errorf("Thresholds = %+v, want %+v", cfg.Scoring.Thresholds, want)
	}
	if cfg.Scheduler.SchedulerParams().DesiredRetention != 0.85 {
		t.Errorf("DesiredRetention = %v", cfg.Scheduler.SchedulerParams().DesiredRetention)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("stt:\n  primary:\n    name: mock\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("default ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Scoring.Thresholds != score.DefaultThresholds {
		t.Errorf("default Thresholds = %+v", cfg.Scoring.Thresholds)
	}
	if cfg.Scoring.FuzzyTokenThreshold != 1.0 {
		t.Errorf("default FuzzyTokenThreshold = %v", cfg.Scoring.FuzzyTokenThreshold)
	}
	if cfg.Progress.Driver != config.DriverMemory {
		t.Errorf("default Driver = %q", cfg.Progress.Driver)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	if _, err := config.LoadFromReader(strings.NewReader("sttt:\n  foo: bar\n")); err == nil {
		t.Error("unknown top-level key should be rejected")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing primary backend",
			yaml: "server:\n  log_level: info\n",
			want: "stt.primary.name is required",
		},
		{
			name: "bad log level",
			yaml: "server:\n  log_level: verbose\nstt:\n  primary:\n    name: mock\n",
			want: "server.log_level",
		},
		{
			name: "unordered thresholds",
			yaml: "stt:\n  primary:\n    name: mock\nscoring:\n  thresholds:\n    easy: 50\n    good: 75\n    hard: 60\n",
			want: "thresholds",
		},
		{
			name: "partial weights",
			yaml: "stt:\n  primary:\n    name: mock\nscheduler:\n  weights: [0.4, 1.2]\n",
			want: "scheduler.weights",
		},
		{
			name: "postgres without dsn",
			yaml: "stt:\n  primary:\n    name: mock\nprogress:\n  driver: postgres\n",
			want: "postgres_dsn",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestRegistry_CreateSTT(t *testing.T) {
	t.Parallel()

	r := config.DefaultRegistry()

	if _, err := r.CreateSTT(config.BackendEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateSTT(mock): %v", err)
	}
	if _, err := r.CreateSTT(config.BackendEntry{Name: "whisper", BaseURL: "http://localhost:8080"}); err != nil {
		t.Errorf("CreateSTT(whisper): %v", err)
	}
	if _, err := r.CreateSTT(config.BackendEntry{Name: "whisper"}); err == nil {
		t.Error("whisper without base_url should fail")
	}
	if _, err := r.CreateSTT(config.BackendEntry{Name: "nope"}); err == nil {
		t.Error("unregistered backend should fail")
	}
}
