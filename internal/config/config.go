// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	FrontendURL  string
	ProjectsRoot string
	DBPath       string
	RunRecordTTL time.Duration

	MaxSteps     int
	ModelBaseURL string
	DefaultModel string
	ModelTimeout time.Duration

	CommandTimeout time.Duration
	Sandbox        string // "" = run commands locally, "docker" = exec inside a container
	SandboxImage   string

	SpeechAgentAddr string

	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// RateLimitConfig holds per-caller request limits for the public endpoints.
type RateLimitConfig struct {
	Ask    int
	MCP    int
	Window time.Duration
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 256)
	if queueSize <= 0 {
		queueSize = 256
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		ProjectsRoot: getEnv("PROJECTS_ROOT", "./ai_projects"),
		DBPath:       getEnv("DB_PATH", "./data/codevoice.db"),
		RunRecordTTL: getEnvDuration("RUN_RECORD_TTL", 7*24*time.Hour),

		MaxSteps:     getEnvInt("MAX_STEPS", 20),
		ModelBaseURL: getEnv("MODEL_BASE_URL", "https://api.openai.com/v1"),
		DefaultModel: getEnv("DEFAULT_MODEL", "gpt-4o-mini"),
		ModelTimeout: getEnvDuration("MODEL_TIMEOUT", 60*time.Second),

		CommandTimeout: getEnvDuration("COMMAND_TIMEOUT", 30*time.Second),
		Sandbox:        getEnv("SANDBOX", ""),
		SandboxImage:   getEnv("SANDBOX_IMAGE", "alpine:3.20"),

		SpeechAgentAddr: getEnv("SPEECH_AGENT_ADDR", ""),

		RateLimit: RateLimitConfig{
			Ask:    getEnvInt("RATE_LIMIT_ASK", 10),
			MCP:    getEnvInt("RATE_LIMIT_MCP", 30),
			Window: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.ProjectsRoot == "" {
		return fmt.Errorf("PROJECTS_ROOT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ModelBaseURL == "" {
		return fmt.Errorf("MODEL_BASE_URL cannot be empty")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("MAX_STEPS must be > 0")
	}
	if c.Sandbox != "" && c.Sandbox != "docker" {
		return fmt.Errorf("SANDBOX must be empty or %q", "docker")
	}
	if c.RateLimit.Ask <= 0 || c.RateLimit.MCP <= 0 {
		return fmt.Errorf("rate limits must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
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
