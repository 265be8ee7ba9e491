package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/config"
	"github.com/Rrens/voice-agent/internal/repository/postgres"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	source := flag.String("source", "", "migration source URL, e.g. file://./migrations (default: embedded)")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	sourceURL := *source
	if sourceURL == "" {
		sourceURL = cfg.Database.Migrations
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("Connecting to database")

	if *down > 0 {
		if err := postgres.RollbackMigrations(cfg.Database.DSN(), sourceURL, *down); err != nil {
			log.Fatal().Err(err).Msg("Rollback failed")
		}
		return
	}

	if err := postgres.RunMigrations(cfg.Database.DSN(), sourceURL); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
