package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration shared by every service.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres" or "sqlite" (single-node / local dev)
	DBURL         string `env:"DB_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/chatbot-crm.db"`

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats"`
	QueueURL      string `env:"QUEUE_URL"`

	// Search cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"redis"` // "redis" or "none"
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"10m"`

	// LLM & Embeddings
	LLMProvider         string        `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIKey           string        `env:"OPENAI_API_KEY"`
	LLMModel            string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel      string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-ada-002"`
	EmbeddingDimensions int           `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`
	EmbeddingTimeout    time.Duration `env:"EMBEDDING_TIMEOUT" envDefault:"30s"`

	// Files
	StorageDir string `env:"STORAGE_DIR" envDefault:"storage"`
	ScratchDir string `env:"SCRATCH_DIR"` // empty means the OS temp dir

	// OCR
	OCRProvider string        `env:"OCR_PROVIDER" envDefault:"placeholder"` // "placeholder" or "tesseract"
	OCRLanguage string        `env:"OCR_LANGUAGE" envDefault:"spa+eng"`
	OCRTimeout  time.Duration `env:"OCR_TIMEOUT" envDefault:"60s"`

	// Ingestion
	BatchConcurrency int           `env:"BATCH_CONCURRENCY" envDefault:"1"`
	ProcessTimeout   time.Duration `env:"PROCESS_TIMEOUT" envDefault:"2m"`
	RequireEmbedding bool          `env:"REQUIRE_EMBEDDING" envDefault:"false"`
	FailedAfter      time.Duration `env:"FAILED_AFTER" envDefault:"10m"`

	// Search
	SearchThreshold float64 `env:"SEARCH_THRESHOLD" envDefault:"0.7"`
	SearchLimit     int     `env:"SEARCH_LIMIT" envDefault:"10"`

	// Gateway upstream for search and chat
	AssistantURL string `env:"ASSISTANT_URL" envDefault:"http://assistant:8081"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}

// Validate checks values that have no safe fallback.
func (c Config) Validate() error {
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.SearchThreshold <= 0 || c.SearchThreshold >= 1 {
		return fmt.Errorf("SEARCH_THRESHOLD must be in (0, 1), got %v", c.SearchThreshold)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("SEARCH_LIMIT must be positive, got %d", c.SearchLimit)
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	return nil
}
