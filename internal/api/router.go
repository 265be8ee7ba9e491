package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/api/handler"
	customMiddleware "github.com/Rrens/voice-agent/internal/api/middleware"
	"github.com/Rrens/voice-agent/internal/config"
	"github.com/Rrens/voice-agent/internal/llm"
	"github.com/Rrens/voice-agent/internal/repository/redis"
	"github.com/Rrens/voice-agent/internal/security"
	"github.com/Rrens/voice-agent/internal/service"
)

// Dependencies are the services the router exposes
type Dependencies struct {
	Calls *service.CallService
	LLM   *llm.Router

	// Redis enables per-client rate limiting when set
	Redis *redis.Client

	// Ready lists the backing stores checked by /ready
	Ready map[string]handler.Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.MiddlewareTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	callHandler := handler.NewCallHandler(deps.Calls)
	documentHandler := handler.NewDocumentHandler(deps.Calls, cfg.Server.MaxUploadMB)
	voiceHandler := handler.NewVoiceHandler(deps.Calls)

	// Health checks stay public
	r.Get("/health", handler.HealthCheck)
	r.Get("/ready", handler.ReadyCheck(deps.Ready))

	r.Group(func(r chi.Router) {
		if cfg.Auth.JWTSecret != "" {
			jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
			r.Use(customMiddleware.NewAuthMiddleware(jwtManager).Authenticate)
		} else {
			log.Warn().Msg("auth.jwt_secret is empty, API is served without authentication")
		}

		if deps.Redis != nil {
			rateLimiter := redis.NewRateLimiter(
				deps.Redis,
				cfg.Security.RateLimit.RequestsPerMinute,
				cfg.Security.RateLimit.Burst,
			)
			r.Use(customMiddleware.NewRateLimitMiddleware(rateLimiter).Limit)
		}

		if deps.LLM != nil {
			r.Get("/llm-providers", handler.ListLLMProviders(deps.LLM))
		}

		// Calls
		r.Post("/start-call", callHandler.StartCall)
		r.Post("/respond/{callID}", callHandler.Respond)
		r.Route("/conversation/{callID}", func(r chi.Router) {
			r.Get("/", callHandler.Conversation)
			r.Delete("/", callHandler.EndCall)
			r.Get("/archive", callHandler.ArchivedConversation)
			r.Post("/reground", callHandler.Reground)
		})

		// Documents
		r.Post("/upload-pdf/", documentHandler.UploadPDF)

		// Speech
		r.Post("/voice-response/", voiceHandler.VoiceResponse)
		r.Post("/transcribe/", voiceHandler.Transcribe)
		r.Post("/voice-turn/{callID}", voiceHandler.VoiceTurn)
	})

	return r
}
