// Package main is the entry point for the Telegram trivia bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-trivia-bot/internal/bot"
	"telegram-trivia-bot/internal/config"
	"telegram-trivia-bot/internal/engine"
	"telegram-trivia-bot/internal/pkg/db"
	"telegram-trivia-bot/internal/quiz/anagram"
	"telegram-trivia-bot/internal/quiz/pokemon"
	"telegram-trivia-bot/internal/repository"
	"telegram-trivia-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for startup operations
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories and services
	resultRepo := repository.NewResultRepository(dbPool.Pool)
	statsService := service.NewStatsService(resultRepo)

	// Initialize the game engine: one scheduler and one session registry
	// shared by every chat
	scheduler := engine.NewScheduler()
	registry := engine.NewRegistry(scheduler)

	// Initialize question sources
	anagramSource := anagram.New(cfg.Games.Anagram.Corpus)
	pokemonSource := pokemon.New(cfg.Games.Pokemon.APIBase, cfg.Games.Pokemon.SpriteURL)

	// Create bot dependencies
	deps := &bot.Dependencies{
		Config:   cfg,
		Registry: registry,
		Anagrams: anagramSource,
		Pokemon:  pokemonSource,
		Stats:    statsService,
	}

	// Initialize bot
	triviaBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		triviaBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown: stop polling first, then cancel every pending
	// game action
	triviaBot.Stop()
	scheduler.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create game_results table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_results (
			id BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			mode VARCHAR(50) NOT NULL,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL,
			correct INT NOT NULL,
			questions INT NOT NULL,
			won BOOLEAN NOT NULL DEFAULT FALSE,
			played_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_game_results_user ON game_results(user_id);
		CREATE INDEX IF NOT EXISTS idx_game_results_chat_time ON game_results(chat_id, played_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: game_results table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
