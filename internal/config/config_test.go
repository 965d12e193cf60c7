package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.HTTP.Address != ":3000" {
		t.Errorf("address = %q, want :3000", cfg.HTTP.Address)
	}
	if diff := cmp.Diff([]string{"http://localhost:5173"}, cfg.HTTP.AllowedOrigins); diff != "" {
		t.Errorf("allowed origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Client.FetchTimeout != 15*time.Second {
		t.Errorf("fetch timeout = %s, want 15s", cfg.Client.FetchTimeout)
	}
	if len(cfg.HTTP.SigningSecret) != 32 {
		t.Errorf("expected a generated 32 byte signing secret")
	}
	if cfg.Logger.Level != slog.LevelInfo {
		t.Errorf("log level = %s, want INFO", cfg.Logger.Level)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("SHELFVIEW_HTTP_ADDRESS", ":9999")
	t.Setenv("SHELFVIEW_HTTP_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("SHELFVIEW_CLIENT_FETCH_TIMEOUT", "2s")
	t.Setenv("SHELFVIEW_WORKER_CONCURRENCY", "0")
	t.Setenv("SHELFVIEW_LOGGER_LEVEL", "debug")
	t.Setenv("SHELFVIEW_HTTP_SIGNING_SECRET", "topsecret")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Errorf("address = %q", cfg.HTTP.Address)
	}
	if diff := cmp.Diff([]string{"http://a.test", "http://b.test"}, cfg.HTTP.AllowedOrigins); diff != "" {
		t.Errorf("allowed origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Client.FetchTimeout != 2*time.Second {
		t.Errorf("fetch timeout = %s", cfg.Client.FetchTimeout)
	}
	if cfg.Worker.Concurrency != defaultWorkerCount {
		t.Errorf("concurrency = %d, want fallback %d", cfg.Worker.Concurrency, defaultWorkerCount)
	}
	if cfg.Logger.Level != slog.LevelDebug {
		t.Errorf("log level = %s", cfg.Logger.Level)
	}
	if cfg.HTTP.SigningSecret != "topsecret" {
		t.Errorf("signing secret was not taken from the environment")
	}
}

func TestParseRejectsZeroTimeout(t *testing.T) {
	t.Setenv("SHELFVIEW_CLIENT_FETCH_TIMEOUT", "0s")
	if _, err := Parse(); err == nil {
		t.Fatalf("expected error for zero fetch timeout")
	}
}
