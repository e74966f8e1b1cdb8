package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEADINTEL_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Chat.Model != "mistral-large-latest" {
		t.Errorf("unexpected chat model %q", cfg.Chat.Model)
	}
	if cfg.Chat.Temperature != 0.7 || cfg.Chat.MaxTokens != 1000 {
		t.Errorf("unexpected chat sampling params: %v/%d", cfg.Chat.Temperature, cfg.Chat.MaxTokens)
	}
	if cfg.Chat.Timeout != 0 {
		t.Errorf("expected no provider timeout by default, got %s", cfg.Chat.Timeout)
	}
	if cfg.Chat.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("unexpected system prompt %q", cfg.Chat.SystemPrompt)
	}
	if cfg.Session.TTL != 2*time.Hour || cfg.Session.SweepInterval != 5*time.Minute {
		t.Errorf("unexpected session defaults %s/%s", cfg.Session.TTL, cfg.Session.SweepInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LEADINTEL_CONFIG", "")
	t.Setenv("PORT", "9999")
	t.Setenv("CHAT_TEMPERATURE", "0.2")
	t.Setenv("CHAT_HISTORY_LIMIT", "12")
	t.Setenv("PROVIDER_TIMEOUT", "45s")
	t.Setenv("TRACING_ENABLED", "yes")
	t.Setenv("SESSION_TTL", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("expected port override, got %q", cfg.Port)
	}
	if cfg.Chat.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.Chat.Temperature)
	}
	if cfg.Chat.HistoryLimit != 12 {
		t.Errorf("expected history limit 12, got %d", cfg.Chat.HistoryLimit)
	}
	if cfg.Chat.Timeout != 45*time.Second || cfg.Inference.Timeout != 45*time.Second {
		t.Errorf("expected 45s timeouts, got %s/%s", cfg.Chat.Timeout, cfg.Inference.Timeout)
	}
	if !cfg.Telemetry.TracingEnabled {
		t.Error("expected tracing enabled")
	}
	if cfg.Session.TTL != 10*time.Minute {
		t.Errorf("expected session ttl 10m, got %s", cfg.Session.TTL)
	}
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadintel.yaml")
	body := []byte("port: \"7070\"\nchat:\n  model: mistral-small-latest\n  max_tokens: 256\ninference:\n  base_url: http://inference.local\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LEADINTEL_CONFIG", path)
	t.Setenv("CHAT_MAX_TOKENS", "512")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("expected port from file, got %q", cfg.Port)
	}
	if cfg.Chat.Model != "mistral-small-latest" {
		t.Errorf("expected model from file, got %q", cfg.Chat.Model)
	}
	if cfg.Chat.MaxTokens != 512 {
		t.Errorf("expected env to override file, got %d", cfg.Chat.MaxTokens)
	}
	if cfg.Inference.BaseURL != "http://inference.local" {
		t.Errorf("unexpected inference base url %q", cfg.Inference.BaseURL)
	}
	// Untouched fields keep their defaults.
	if cfg.Chat.BaseURL != "https://api.mistral.ai/v1" {
		t.Errorf("expected default chat base url, got %q", cfg.Chat.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("LEADINTEL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Burst = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero burst")
	}

	cfg = Default()
	cfg.Chat.HistoryLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative history limit")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		cfg := &Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
