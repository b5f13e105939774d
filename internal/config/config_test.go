package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Save original env and restore after test
	originalEnv := os.Environ()
	defer func() {
		os.Clearenv()
		for _, env := range originalEnv {
			for i, c := range env {
				if c == '=' {
					os.Setenv(env[:i], env[i+1:])
					break
				}
			}
		}
	}()

	// Clear env to test defaults
	os.Clearenv()

	cfg := Load()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"MaxUploadSize", cfg.MaxUploadSize, int64(10 << 20)},
		{"LLMProvider", cfg.LLMProvider, "openai"},
		{"StoreProvider", cfg.StoreProvider, "postgres"},
		{"QueueProvider", cfg.QueueProvider, "nats"},
		{"CacheProvider", cfg.CacheProvider, "redis"},
		{"CacheTTL", cfg.CacheTTL, 10 * time.Minute},
		{"LLMModel", cfg.LLMModel, "gpt-4o-mini"},
		{"EmbeddingModel", cfg.EmbeddingModel, "text-embedding-ada-002"},
		{"EmbeddingDimensions", cfg.EmbeddingDimensions, 1536},
		{"EmbeddingTimeout", cfg.EmbeddingTimeout, 30 * time.Second},
		{"OCRProvider", cfg.OCRProvider, "placeholder"},
		{"OCRTimeout", cfg.OCRTimeout, time.Minute},
		{"BatchConcurrency", cfg.BatchConcurrency, 1},
		{"ProcessTimeout", cfg.ProcessTimeout, 2 * time.Minute},
		{"RequireEmbedding", cfg.RequireEmbedding, false},
		{"FailedAfter", cfg.FailedAfter, 10 * time.Minute},
		{"SearchThreshold", cfg.SearchThreshold, 0.7},
		{"SearchLimit", cfg.SearchLimit, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s=%v, got %v", tt.name, tt.expected, tt.got)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_PROVIDER", "sqlite")
	t.Setenv("BATCH_CONCURRENCY", "4")
	t.Setenv("REQUIRE_EMBEDDING", "true")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.StoreProvider != "sqlite" {
		t.Errorf("expected store provider 'sqlite', got %s", cfg.StoreProvider)
	}
	if cfg.BatchConcurrency != 4 {
		t.Errorf("expected batch concurrency 4, got %d", cfg.BatchConcurrency)
	}
	if !cfg.RequireEmbedding {
		t.Error("expected RequireEmbedding to be true")
	}
	if cfg.EmbeddingTimeout != 5*time.Second {
		t.Errorf("expected embedding timeout 5s, got %v", cfg.EmbeddingTimeout)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{EmbeddingDimensions: 1536, SearchThreshold: 0.7, SearchLimit: 10, BatchConcurrency: 1, MaxUploadSize: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }, true},
		{"threshold of one", func(c *Config) { c.SearchThreshold = 1 }, true},
		{"zero threshold", func(c *Config) { c.SearchThreshold = 0 }, true},
		{"negative threshold", func(c *Config) { c.SearchThreshold = -0.5 }, true},
		{"low threshold", func(c *Config) { c.SearchThreshold = 0.05 }, false},
		{"negative limit", func(c *Config) { c.SearchLimit = -1 }, true},
		{"zero concurrency", func(c *Config) { c.BatchConcurrency = 0 }, true},
		{"zero upload size", func(c *Config) { c.MaxUploadSize = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
