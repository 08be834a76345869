package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port        string
		Env         string
		Timeout     time.Duration
		MetricsAddr string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Upstream agent configuration
	Agent struct {
		BaseURL string
		APIKey  string
		Timeout time.Duration
	}

	// Title generation LLM configuration
	TitleLLM struct {
		BaseURL             string
		APIKey              string
		Model               string
		Timeout             time.Duration
		MaxCompletionTokens int
		Sync                bool
		Workers             int
		QueueSize           int
	}

	// Streaming pacing configuration
	Stream struct {
		ChunkSize  int
		ChunkDelay time.Duration
		PunctDelay time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Feature flags
	Features struct {
		HistoryAfterArchive bool
	}

	// Cache settings
	Cache struct {
		Enabled     bool
		RedisURL    string
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		cfg := &Config{}

		// Server
		cfg.Server.Port = getEnv("PORT", "8081")
		cfg.Server.Env = getEnv("APP_ENV", "development")
		cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		cfg.Server.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

		// Database
		cfg.Database.Host = getEnv("DB_HOST", "localhost")
		cfg.Database.Port = getEnv("DB_PORT", "5432")
		cfg.Database.User = getEnv("DB_USER", "postgres")
		cfg.Database.Password = getEnv("DB_PASSWORD", "")
		cfg.Database.Name = getEnv("DB_NAME", "paper_agent_chat")
		cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
		cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Upstream agent
		cfg.Agent.BaseURL = strings.TrimRight(getEnv("AGENTKIT_BASE_URL", ""), "/")
		cfg.Agent.APIKey = getEnv("AGENTKIT_API_KEY", "")
		cfg.Agent.Timeout = getEnvDuration("AGENTKIT_TIMEOUT", 60*time.Second)

		// Title LLM
		cfg.TitleLLM.BaseURL = strings.TrimRight(getEnv("LLM_BASE_URL", ""), "/")
		cfg.TitleLLM.APIKey = getEnv("LLM_API_KEY", "")
		cfg.TitleLLM.Model = getEnv("LLM_MODEL", "")
		cfg.TitleLLM.Timeout = getEnvDuration("LLM_TIMEOUT", 20*time.Second)
		cfg.TitleLLM.MaxCompletionTokens = getEnvInt("TITLE_LLM_MAX_COMPLETION_TOKENS", 256)
		cfg.TitleLLM.Sync = getEnvBool("TITLE_GENERATION_SYNC", false)
		cfg.TitleLLM.Workers = getEnvInt("TITLE_WORKERS", 2)
		cfg.TitleLLM.QueueSize = getEnvInt("TITLE_QUEUE_SIZE", 64)

		// Streaming
		cfg.Stream.ChunkSize = getEnvInt("CHAT_STREAM_CHUNK_SIZE", 16)
		cfg.Stream.ChunkDelay = time.Duration(getEnvInt("CHAT_STREAM_CHUNK_DELAY_MS", 25)) * time.Millisecond
		cfg.Stream.PunctDelay = time.Duration(getEnvInt("CHAT_STREAM_PUNCT_DELAY_MS", 80)) * time.Millisecond

		// Security
		cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
		cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		cfg.Security.AllowedOrigins = getEnvSlice("ALLOWED_ORIGINS", []string{"*"})

		// Logging
		cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
		cfg.Logging.Format = getEnv("LOG_FORMAT", "json")

		// Features
		cfg.Features.HistoryAfterArchive = getEnvBool("FEATURE_HISTORY_AFTER_ARCHIVE", true)

		// Cache
		cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		cfg.Cache.RedisURL = getEnv("REDIS_URL", "")
		cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

		instance = cfg
	})

	return instance
}

// Get returns the config instance, creating it if necessary
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
