// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-trivia-bot/internal/config"
	"telegram-trivia-bot/internal/engine"
	"telegram-trivia-bot/internal/handler"
	"telegram-trivia-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	registry *engine.Registry

	// Handlers
	quizHandler  *handler.QuizHandler
	statsHandler *handler.StatsHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Registry *engine.Registry
	Anagrams engine.QuestionSource
	Pokemon  engine.QuestionSource
	Stats    *service.StatsService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:      teleBot,
		cfg:      deps.Config,
		registry: deps.Registry,
	}

	// Initialize handlers
	b.quizHandler = handler.NewQuizHandler(deps.Config, teleBot, deps.Registry, deps.Anagrams, deps.Pokemon, deps.Stats)
	b.statsHandler = handler.NewStatsHandler(deps.Stats)

	// Register middleware
	b.registerMiddleware()

	// Register handlers
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg))

	// Logging middleware
	b.bot.Use(LoggingMiddleware())

	// Recovery middleware - a panicking handler must not take the poller down
	b.bot.Use(RecoveryMiddleware())
}

// registerHandlers registers all command and text handlers.
func (b *Bot) registerHandlers() {
	// Game start commands
	b.bot.Handle("/anagram", b.quizHandler.HandleAnagram)
	b.bot.Handle("/an", b.quizHandler.HandleAnagram)
	b.bot.Handle("/pokemon", b.quizHandler.HandlePokemon)
	b.bot.Handle("/pm", b.quizHandler.HandlePokemon)

	// Session commands
	b.bot.Handle("/stop", b.quizHandler.HandleStop)
	b.bot.Handle("/skip", b.quizHandler.HandleSkip)
	b.bot.Handle("/scores", b.quizHandler.HandleScores)

	// Recorded-game stats
	b.bot.Handle("/top", b.statsHandler.HandleTop)
	b.bot.Handle("/stats", b.statsHandler.HandleStats)

	// Every plain message is a potential answer
	b.bot.Handle(tele.OnText, b.quizHandler.HandleText)
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
