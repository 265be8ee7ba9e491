package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/config"
	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/embedding"
	"github.com/Rrens/voice-agent/internal/llm"
	"github.com/Rrens/voice-agent/internal/llm/anthropic"
	"github.com/Rrens/voice-agent/internal/llm/deepseek"
	"github.com/Rrens/voice-agent/internal/llm/gemini"
	"github.com/Rrens/voice-agent/internal/llm/ollama"
	"github.com/Rrens/voice-agent/internal/llm/openai"
	"github.com/Rrens/voice-agent/internal/repository/memory"
	"github.com/Rrens/voice-agent/internal/repository/mongo"
	"github.com/Rrens/voice-agent/internal/repository/mysql"
	"github.com/Rrens/voice-agent/internal/repository/postgres"
	"github.com/Rrens/voice-agent/internal/repository/redis"
	"github.com/Rrens/voice-agent/internal/repository/sqlite"
)

// newLLMRouter registers every provider that has credentials
func newLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	if cfg.OpenAI.APIKey != "" {
		router.RegisterProvider(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL))
	}
	if cfg.Anthropic.APIKey != "" {
		router.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model))
	}
	if cfg.Gemini.APIKey != "" {
		router.RegisterProvider(gemini.NewProvider(cfg.Gemini))
	}
	if cfg.Ollama.Host != "" {
		log.Info().Str("host", cfg.Ollama.Host).Msg("Registering Ollama provider")
		router.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}

	return router
}

// newEmbedder picks the embedding backend used to index documents
func newEmbedder(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Embedding.Provider {
	case "", "openai":
		return embedding.NewOpenAIProvider(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.BaseURL, cfg.Embedding.Model), nil
	case "gemini":
		if cfg.LLM.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini embeddings need llm.gemini.api_key")
		}
		return embedding.NewGeminiProvider(cfg.LLM.Gemini.APIKey, cfg.Embedding.Model), nil
	case "ollama":
		return embedding.NewOllamaProvider(cfg.LLM.Ollama.Host, cfg.Embedding.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

// newSessionStore builds the configured session backend. The returned
// memory store is non-nil only for the memory backend so that its evictions
// can be wired to the document registry.
func newSessionStore(cfg config.SessionConfig, redisClient *redis.Client) (domain.SessionStore, *memory.SessionStore, error) {
	switch cfg.Backend {
	case "", "memory":
		store := memory.NewSessionStore(cfg.TTL, cfg.MaxSessions)
		return store, store, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("session backend redis needs redis.enabled")
		}
		return redis.NewSessionStore(redisClient, cfg.TTL), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
}

// openArchive opens the call archive for the configured driver. A nil
// archive means archiving is disabled.
func openArchive(ctx context.Context, cfg config.DatabaseConfig, db *postgres.DB) (domain.CallArchive, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "postgres":
		return postgres.NewCallArchive(db), nil
	case "mysql":
		archive, err := mysql.Open(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, err
		}
		return archive, nil
	case "mongodb":
		archive, err := mongo.Open(ctx, cfg.MongoURI, cfg.Database, 10*time.Second)
		if err != nil {
			return nil, err
		}
		return archive, nil
	case "sqlite":
		archive, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return archive, nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}
