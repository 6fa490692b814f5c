// Package config loads the orchestration core's runtime configuration from
// environment variables, applying the defaults documented in the external
// interfaces section of the specification.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the fully resolved runtime configuration for one process.
type Config struct {
	// API metadata, surfaced by the HTTP layer's root/health endpoints.
	APITitle       string
	APIVersion     string
	APIDescription string

	// LLM carries language-model client settings shared by every provider
	// adapter in internal/llm.
	LLM LLMConfig

	// Redis is the task queue and cache backing store connection.
	RedisURL     string
	RedisPoolMax int

	// Queue controls worker pool sizing and enablement.
	QueueEnabled   bool
	QueueMaxWorkers int
	TaskTimeout    time.Duration

	// Workflow controls the engine's global execution deadline and default
	// per-task retry ceiling.
	WorkflowTimeout time.Duration
	MaxRetries      int

	// Cache controls the conversation/agent-state/vector-store bounded
	// caches.
	MaxConversations int
	ConversationTTL  time.Duration
	MaxVectorStores  int

	// WebSocket controls the idle timeout for the chat socket transport.
	WebSocketTimeout time.Duration

	// Logging controls the telemetry backend's verbosity and sinks.
	Logging LoggingConfig

	// StorageDir roots the persistent JSON blob layout:
	// <StorageDir>/workflows/*.json, <StorageDir>/conversations/*.json,
	// <StorageDir>/knowledge/knowledge_bases.json.
	StorageDir string
}

// LLMConfig configures the language-model client and its streaming/retry
// behavior, independent of which concrete provider backs it.
type LLMConfig struct {
	Provider    string // "anthropic" or "openai"
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	RetryDelay  time.Duration
	StreamTimeout time.Duration
	SavePartial bool
}

// LoggingConfig configures the telemetry logger backend.
type LoggingConfig struct {
	Level          string
	Dir            string
	EnableFile     bool
	EnableConsole  bool
	JSONFormat     bool
}

// Load resolves a Config from environment variables, falling back to the
// defaults from original_source/app/config.py and the specification's
// Configuration section.
func Load() *Config {
	return &Config{
		APITitle:       envStr("API_TITLE", "Agent Workflow Orchestration Service"),
		APIVersion:     envStr("API_VERSION", "0.1.0"),
		APIDescription: envStr("API_DESCRIPTION", "Chat-driven agent system that triggers declarative workflows"),

		LLM: LLMConfig{
			Provider:      envStr("LLM_PROVIDER", "anthropic"),
			APIKey:        envStr("LLM_API_KEY", ""),
			Model:         envStr("LLM_MODEL", "claude-sonnet-4-20250514"),
			Temperature:   envFloat("LLM_TEMPERATURE", 0.7),
			MaxRetries:    envInt("LLM_MAX_RETRIES", 3),
			RetryDelay:    envDuration("LLM_RETRY_DELAY", time.Second),
			StreamTimeout: envDuration("LLM_STREAM_TIMEOUT", 300*time.Second),
			SavePartial:   envBool("LLM_SAVE_PARTIAL", true),
		},

		RedisURL:     envStr("REDIS_URL", "redis://localhost:6379/0"),
		RedisPoolMax: envInt("REDIS_POOL_MAX", 10),

		QueueEnabled:    envBool("QUEUE_ENABLED", true),
		QueueMaxWorkers: envInt("QUEUE_MAX_WORKERS", 5),
		TaskTimeout:     envDuration("TASK_TIMEOUT", 3600*time.Second),

		WorkflowTimeout: envDuration("WORKFLOW_TIMEOUT", 3600*time.Second),
		MaxRetries:      envInt("MAX_RETRIES", 3),

		MaxConversations: envInt("MAX_CONVERSATIONS", 1000),
		ConversationTTL:  envDuration("CONVERSATION_TTL", 3600*time.Second),
		MaxVectorStores:  envInt("MAX_VECTOR_STORES", 50),

		WebSocketTimeout: envDuration("WEBSOCKET_TIMEOUT", 300*time.Second),

		Logging: LoggingConfig{
			Level:         envStr("LOG_LEVEL", "INFO"),
			Dir:           envStr("LOG_DIR", "./logs"),
			EnableFile:    envBool("ENABLE_FILE_LOGGING", true),
			EnableConsole: envBool("ENABLE_CONSOLE_LOGGING", true),
			JSONFormat:    envBool("LOG_JSON_FORMAT", false),
		},

		StorageDir: envStr("STORAGE_DIR", "./storage"),
	}
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
