package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/api"
	"github.com/Rrens/voice-agent/internal/api/handler"
	"github.com/Rrens/voice-agent/internal/chain"
	"github.com/Rrens/voice-agent/internal/config"
	"github.com/Rrens/voice-agent/internal/llm"
	"github.com/Rrens/voice-agent/internal/rag"
	"github.com/Rrens/voice-agent/internal/repository/postgres"
	"github.com/Rrens/voice-agent/internal/repository/redis"
	"github.com/Rrens/voice-agent/internal/service"
	speechopenai "github.com/Rrens/voice-agent/internal/speech/openai"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := setupLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	if err := config.PromptMissingKeys(cfg, os.Stdin, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("OpenAI API key is required for speech")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("agent", cfg.Agent.Name).
		Msg("Starting voice agent server")

	ctx := context.Background()
	ready := map[string]handler.Pinger{}

	// Redis backs the optional session store and rate limiter
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		ready["redis"] = redisClient
	}

	// Postgres backs the call archive and the pgvector index
	var db *postgres.DB
	if cfg.Database.Driver == "postgres" || cfg.RAG.Backend == "pgvector" {
		var opts []postgres.Option
		if cfg.RAG.Backend == "pgvector" {
			opts = append(opts, postgres.WithVectorTypes())
		}
		db, err = postgres.NewDB(ctx, cfg.Database, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		ready["postgres"] = db
	}

	llmRouter := newLLMRouter(cfg.LLM)
	provider, err := llmRouter.GetProvider(cfg.LLM.DefaultProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("Default LLM provider unavailable")
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure embeddings")
	}

	var storeFactory rag.StoreFactory
	if cfg.RAG.Backend == "pgvector" {
		storeFactory = postgres.NewVectorStoreFactory(db)
	}

	sessions, memStore, err := newSessionStore(cfg.Session, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure sessions")
	}

	registry := rag.NewRegistry(cfg.Session.TTL)
	defer registry.Close()
	if memStore != nil {
		memStore.OnEvicted(registry.RemoveCall)
	}

	persona := llm.Persona{Name: cfg.Agent.Name, Company: cfg.Agent.Company}
	settings := chain.Settings{
		Persona:       persona,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		HistoryWindow: cfg.LLM.HistoryWindow,
	}

	speechClient := speechopenai.NewClient(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.BaseURL, cfg.Speech)

	callService := service.NewCallService(
		sessions,
		chain.NewConversationChain(provider, settings),
		chain.NewRetrievalChain(provider, settings, cfg.RAG.TopK, cfg.RAG.HistoryAware),
		registry,
		rag.NewBuilder(
			rag.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
			embedder,
			cfg.Embedding.BatchSize,
			storeFactory,
		),
		speechClient,
		speechClient,
		persona,
	)

	archive, err := openArchive(ctx, cfg.Database, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open call archive")
	}
	if archive != nil {
		defer archive.Close()
		callService.SetArchive(archive)
		if p, ok := archive.(handler.Pinger); ok && cfg.Database.Driver != "postgres" {
			ready[cfg.Database.Driver] = p
		}
	}

	// Initialize router
	router := api.NewRouter(cfg, api.Dependencies{
		Calls: callService,
		LLM:   llmRouter,
		Redis: redisClient,
		Ready: ready,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
