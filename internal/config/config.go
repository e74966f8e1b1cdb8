// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port        string          `yaml:"port"`
	FrontendURL string          `yaml:"frontend_url"`
	DBPath      string          `yaml:"db_path"`
	LogLevel    string          `yaml:"log_level"`
	Chat        ChatConfig      `yaml:"chat"`
	Inference   InferenceConfig `yaml:"inference"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Session     SessionConfig   `yaml:"session"`

	// GRPCHealthAddr enables the grpc.health.v1 listener when non-empty.
	GRPCHealthAddr string `yaml:"grpc_health_addr"`
}

// ChatConfig controls the chat-completions provider.
type ChatConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	SystemPrompt string        `yaml:"system_prompt"`
	HistoryLimit int           `yaml:"history_limit"` // 0 = replay the whole transcript
	Timeout      time.Duration `yaml:"timeout"`       // 0 = no timeout
}

// InferenceConfig controls the hosted inference provider.
type InferenceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig bounds provider-calling requests per device.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// TelemetryConfig toggles metrics and tracing.
type TelemetryConfig struct {
	MetricsEnabled bool `yaml:"metrics_enabled"`
	TracingEnabled bool `yaml:"tracing_enabled"`
}

// SessionConfig controls eviction of idle per-tab state.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultSystemPrompt is the fixed system instruction sent ahead of every chat history.
const DefaultSystemPrompt = "You are a helpful AI assistant. Provide clear, accurate, and helpful responses."

// Default returns the built-in configuration before any file or environment overrides.
func Default() *Config {
	return &Config{
		Port:     "8080",
		DBPath:   "./data/leadintel.db",
		LogLevel: "info",
		Chat: ChatConfig{
			BaseURL:      "https://api.mistral.ai/v1",
			Model:        "mistral-large-latest",
			Temperature:  0.7,
			MaxTokens:    1000,
			SystemPrompt: DefaultSystemPrompt,
		},
		Inference: InferenceConfig{
			BaseURL: "https://api-inference.huggingface.co",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			Burst:             10,
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled: true,
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
	}
}

// Load reads configuration from an optional YAML file (LEADINTEL_CONFIG)
// and then from environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("LEADINTEL_CONFIG", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.GRPCHealthAddr = getEnv("GRPC_HEALTH_ADDR", cfg.GRPCHealthAddr)

	cfg.Chat.BaseURL = getEnv("CHAT_BASE_URL", cfg.Chat.BaseURL)
	cfg.Chat.Model = getEnv("CHAT_MODEL", cfg.Chat.Model)
	cfg.Chat.Temperature = getEnvFloat("CHAT_TEMPERATURE", cfg.Chat.Temperature)
	cfg.Chat.MaxTokens = getEnvInt("CHAT_MAX_TOKENS", cfg.Chat.MaxTokens)
	cfg.Chat.SystemPrompt = getEnv("CHAT_SYSTEM_PROMPT", cfg.Chat.SystemPrompt)
	cfg.Chat.HistoryLimit = getEnvInt("CHAT_HISTORY_LIMIT", cfg.Chat.HistoryLimit)

	cfg.Inference.BaseURL = getEnv("INFERENCE_BASE_URL", cfg.Inference.BaseURL)

	timeout := getEnvDuration("PROVIDER_TIMEOUT", -1)
	if timeout >= 0 {
		cfg.Chat.Timeout = timeout
		cfg.Inference.Timeout = timeout
	}

	cfg.RateLimit.RequestsPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimit.RequestsPerMinute)
	cfg.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	cfg.Telemetry.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.Telemetry.MetricsEnabled)
	cfg.Telemetry.TracingEnabled = getEnvBool("TRACING_ENABLED", cfg.Telemetry.TracingEnabled)

	cfg.Session.TTL = getEnvDuration("SESSION_TTL", cfg.Session.TTL)
	cfg.Session.SweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", cfg.Session.SweepInterval)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Chat.BaseURL == "" {
		return fmt.Errorf("CHAT_BASE_URL cannot be empty")
	}
	if c.Chat.Model == "" {
		return fmt.Errorf("CHAT_MODEL cannot be empty")
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("CHAT_MAX_TOKENS must be > 0")
	}
	if c.Chat.HistoryLimit < 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be >= 0")
	}
	if c.Inference.BaseURL == "" {
		return fmt.Errorf("INFERENCE_BASE_URL cannot be empty")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0")
	}
	if c.Session.TTL < 0 || c.Session.SweepInterval < 0 {
		return fmt.Errorf("SESSION_TTL and SESSION_SWEEP_INTERVAL must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
