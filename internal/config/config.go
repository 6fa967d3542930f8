package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the chat client
type Config struct {
	API       APIConfig       `json:"api"`
	Chat      ChatConfig      `json:"chat"`
	Upload    UploadConfig    `json:"upload"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// APIConfig holds backend connection configuration
type APIConfig struct {
	BaseURL        string `json:"base_url"`
	AuthToken      string `json:"auth_token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// UseMsgpack asks the backend for msgpack-encoded REST responses
	// instead of JSON (the push stream is always SSE/JSON).
	UseMsgpack bool `json:"use_msgpack"`
}

// ChatConfig holds conversation/streaming configuration
type ChatConfig struct {
	DefaultModel string `json:"default_model"`
	// FlushIntervalMs bounds how often buffered stream chunks are published
	// to observers (~20 notifications/second at the default 50).
	FlushIntervalMs int `json:"flush_interval_ms"`
	// HistoryLimit caps how many messages a conversation switch loads.
	HistoryLimit int `json:"history_limit"`
}

// UploadConfig holds document attachment configuration
type UploadConfig struct {
	// MaxConcurrent bounds how many attachments upload in parallel.
	MaxConcurrent int `json:"max_concurrent"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	TracingEnabled bool `json:"tracing_enabled"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			AuthToken:      "",
			TimeoutSeconds: 30,
			UseMsgpack:     false,
		},
		Chat: ChatConfig{
			DefaultModel:    "openai/gpt-4o-mini",
			FlushIntervalMs: 50,
			HistoryLimit:    50,
		},
		Upload: UploadConfig{
			MaxConcurrent: 4,
		},
		Telemetry: TelemetryConfig{
			TracingEnabled: false,
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envBool loads a boolean environment variable into the target pointer if set and valid
func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("T3CHAT_API_URL", &cfg.API.BaseURL)
	envString("T3CHAT_API_TOKEN", &cfg.API.AuthToken)
	envInt("T3CHAT_API_TIMEOUT_SECONDS", &cfg.API.TimeoutSeconds)
	envBool("T3CHAT_API_MSGPACK", &cfg.API.UseMsgpack)

	envString("T3CHAT_MODEL", &cfg.Chat.DefaultModel)
	envInt("T3CHAT_FLUSH_INTERVAL_MS", &cfg.Chat.FlushIntervalMs)
	envInt("T3CHAT_HISTORY_LIMIT", &cfg.Chat.HistoryLimit)

	envInt("T3CHAT_UPLOAD_CONCURRENCY", &cfg.Upload.MaxConcurrent)

	envBool("T3CHAT_TRACING", &cfg.Telemetry.TracingEnabled)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	if c.API.BaseURL == "" {
		errs = append(errs, "API base URL is required")
	} else if !isValidURL(c.API.BaseURL) {
		errs = append(errs, "API base URL must be a valid URL")
	}
	if c.API.TimeoutSeconds < 1 {
		errs = append(errs, "API timeout must be at least 1 second")
	}

	if c.Chat.FlushIntervalMs < 1 {
		errs = append(errs, "chat flush interval must be at least 1ms")
	}
	if c.Chat.HistoryLimit < 1 || c.Chat.HistoryLimit > 100 {
		errs = append(errs, "chat history limit must be between 1 and 100")
	}

	if c.Upload.MaxConcurrent < 1 {
		errs = append(errs, "upload concurrency must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("T3CHAT_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	configPath := filepath.Join(homeDir, ".config", "t3chat", "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return configPath
}
