package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"chatbot-crm/internal/blob"
	"chatbot-crm/internal/cache"
	"chatbot-crm/internal/chat"
	"chatbot-crm/internal/config"
	"chatbot-crm/internal/embeddings"
	"chatbot-crm/internal/extract"
	"chatbot-crm/internal/ingest"
	"chatbot-crm/internal/llm"
	"chatbot-crm/internal/logger"
	"chatbot-crm/internal/queue"
	"chatbot-crm/internal/search"
	"chatbot-crm/internal/store"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Store    store.Store
	Blobs    blob.Storage
	Queue    queue.Queue // nil when QUEUE_PROVIDER=none
	Cache    cache.Cache
	Pipeline *ingest.Pipeline
	Search   *search.Engine

	closers []func() error
}

// AssistantDeps adds the LLM-backed chat service used by the assistant.
type AssistantDeps struct {
	Deps
	Chat *chat.Service
}

// Close releases connections in reverse order of creation.
func (d Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Log.Warn("failed to close dependency", "err", err)
		}
	}
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	return build()
}

// BuildAssistant is Build plus the LLM client and chat service.
func BuildAssistant() (AssistantDeps, error) {
	deps, err := build()
	if err != nil {
		return AssistantDeps{}, err
	}
	llmClient, err := buildLLM(deps.Config, deps.Log)
	if err != nil {
		deps.Close()
		return AssistantDeps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return AssistantDeps{
		Deps: deps,
		Chat: chat.NewService(deps.Store, deps.Search, llmClient, deps.Log),
	}, nil
}

func build() (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return Deps{}, fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	deps := Deps{Config: cfg, Log: log}

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	deps.Store = st
	deps.closers = append(deps.closers, st.Close)

	blobs, err := blob.NewLocal(cfg.StorageDir)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize blob storage: %w", err)
	}
	deps.Blobs = blobs

	q, nc, err := buildQueue(cfg, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	deps.Queue = q
	if nc != nil {
		deps.closers = append(deps.closers, func() error { nc.Close(); return nil })
	}

	deps.Cache = buildCache(cfg, log)
	deps.closers = append(deps.closers, deps.Cache.Close)

	provider, err := buildEmbedder(cfg, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	gen := embeddings.NewGenerator(provider, cfg.EmbeddingModel, cfg.EmbeddingTimeout, log)

	extractor := extract.New(log, buildOCR(cfg, log), cfg.ScratchDir)
	deps.Pipeline = ingest.New(st, blobs, extractor, gen, deps.Cache, ingest.Options{
		Concurrency:      cfg.BatchConcurrency,
		Timeout:          cfg.ProcessTimeout,
		RequireEmbedding: cfg.RequireEmbedding,
	}, log)
	deps.Search = search.NewEngine(st, gen, cfg.SearchThreshold, cfg.SearchLimit, log)

	return deps, nil
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	case "sqlite":
		db, err := store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		log.Info("using SQLite store", "path", cfg.SQLitePath)
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: postgres, sqlite)", cfg.StoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, *nats.Conn, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL, nats.Name("chatbot-crm"), nats.MaxReconnects(-1))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nc, nil
	case "none":
		log.Info("queue disabled; asynchronous processing unavailable")
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: nats, none)", cfg.QueueProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) cache.Cache {
	if cfg.CacheProvider != "redis" {
		log.Info("search cache disabled")
		return cache.NewNoOpCache()
	}
	c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Warn("redis unavailable; search cache disabled", "err", err)
		return cache.NewNoOpCache()
	}
	log.Info("using Redis search cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	return c
}

func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.LLMModel)
		return client, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid option: openai)", cfg.LLMProvider)
	}
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Provider, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel, "dimensions", cfg.EmbeddingDimensions)
		return embedder, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid option: openai)", cfg.LLMProvider)
	}
}

func buildOCR(cfg config.Config, log *slog.Logger) extract.OCR {
	switch cfg.OCRProvider {
	case "tesseract":
		t := extract.NewTesseract(cfg.OCRLanguage, cfg.OCRTimeout)
		if err := t.CheckAvailable(); err != nil {
			log.Warn("tesseract not available; image extraction will fail until installed", "err", err)
		}
		log.Info("using tesseract OCR", "language", cfg.OCRLanguage)
		return t
	default:
		log.Info("using placeholder OCR")
		return extract.PlaceholderOCR{}
	}
}
