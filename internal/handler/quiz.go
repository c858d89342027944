// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-trivia-bot/internal/config"
	"telegram-trivia-bot/internal/engine"
	"telegram-trivia-bot/internal/model"
	"telegram-trivia-bot/internal/quiz/pokemon"
)

// fetchTimeout bounds the question fetch that runs between the session
// being registered and the first question being asked.
const fetchTimeout = 60 * time.Second

// QuizHandler maps the game commands onto session transitions: start
// commands create and load sessions, stop/skip/scores act on the chat's
// running session, and plain text messages are checked as answers.
type QuizHandler struct {
	cfg      *config.Config
	bot      *tele.Bot
	registry *engine.Registry
	anagrams engine.QuestionSource
	pokemon  engine.QuestionSource
	results  engine.ResultSink
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(
	cfg *config.Config,
	bot *tele.Bot,
	registry *engine.Registry,
	anagrams engine.QuestionSource,
	pokemonSource engine.QuestionSource,
	results engine.ResultSink,
) *QuizHandler {
	return &QuizHandler{
		cfg:      cfg,
		bot:      bot,
		registry: registry,
		anagrams: anagrams,
		pokemon:  pokemonSource,
		results:  results,
	}
}

// HandleAnagram handles /anagram [count].
func (h *QuizHandler) HandleAnagram(c tele.Context) error {
	count, _ := parseStartArgs(c.Args())
	return h.startGame(c, startParams{
		mode:        model.ModeAnagram,
		title:       "a game of anagrams",
		description: "Unscramble the letters to make meaningful words.",
		source:      h.anagrams,
		count:       count,
		defQuestion: h.cfg.Games.Anagram.Questions,
		limit:       h.cfg.Games.Anagram.QuestionLimit,
		timings:     h.cfg.Games.Anagram.Timing.Timings(),
	})
}

// HandlePokemon handles /pokemon [count] [region].
func (h *QuizHandler) HandlePokemon(c tele.Context) error {
	count, region := parseStartArgs(c.Args())
	if region != "" {
		if _, _, ok := pokemon.RegionRange(region); !ok {
			if err := c.Reply("Couldn't find the region you specified. Defaulting to all."); err != nil {
				return err
			}
			region = ""
		}
	}
	return h.startGame(c, startParams{
		mode:        model.ModePokemon,
		title:       `a game of "Who's that Pokémon?"`,
		description: "Figure out who the given Pokémon is.",
		source:      h.pokemon,
		count:       count,
		defQuestion: h.cfg.Games.Pokemon.Questions,
		limit:       h.cfg.Games.Pokemon.QuestionLimit,
		timings:     h.cfg.Games.Pokemon.Timing.Timings(),
		filter:      region,
	})
}

// startParams collects what startGame needs for one game mode.
type startParams struct {
	mode        string
	title       string
	description string
	source      engine.QuestionSource
	count       int
	defQuestion int
	limit       int
	timings     engine.Timings
	filter      string
}

// startGame registers a session for the chat and loads its questions in the
// background. The session ignores messages until the load finishes.
func (h *QuizHandler) startGame(c tele.Context, p startParams) error {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	count := p.count
	if count <= 0 {
		count = p.defQuestion
	}
	capped := count > p.limit
	if capped {
		count = p.limit
	}

	pub := NewPublisher(h.bot, chat.ID)
	sess, err := h.registry.Create(chat.ID, engine.SessionParams{
		Mode:      p.mode,
		Timings:   p.timings,
		Publisher: pub,
		Results:   h.results,
	})
	if errors.Is(err, engine.ErrGameInProgress) {
		return c.Reply("There's already a game running in this chat. Try another chat, or stop the ongoing game with /stop.")
	}
	if err != nil {
		return err
	}

	if err := c.Reply(fmt.Sprintf("%s started %s. %s", senderName(sender), p.title, p.description)); err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("Failed to announce game start")
	}
	if capped {
		pub.SendNotice(fmt.Sprintf("The maximum allowed number of questions is %d. Defaulting to that.", p.limit))
	}

	go h.loadQuestions(sess, p.source, count, p.filter, pub)
	return nil
}

// loadQuestions fetches the question queue and starts the session. Fetching
// may involve the network; it runs off the poller goroutine so other chats
// are not blocked.
func (h *QuizHandler) loadQuestions(sess *engine.Session, source engine.QuestionSource, count int, filter string, pub *Publisher) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	questions, err := source.Fetch(ctx, count, filter)
	if err != nil {
		log.Error().
			Err(err).
			Int64("chat_id", sess.ChatID()).
			Str("mode", sess.Mode()).
			Msg("Failed to fetch questions")
		pub.SendNotice("Couldn't fetch the questions for this game. The game has been cancelled, try again in a bit.")
		// The session may have been stopped and replaced while the fetch
		// ran; only this exact session may be evicted.
		h.registry.RemoveIf(sess.ChatID(), sess)
		return
	}

	if err := sess.Start(questions); err != nil {
		// The game was stopped while the fetch was running.
		log.Debug().Int64("chat_id", sess.ChatID()).Msg("Session gone before questions arrived")
	}
}

// HandleStop handles /stop.
func (h *QuizHandler) HandleStop(c tele.Context) error {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	sess, ok := h.registry.Get(chat.ID)
	if !ok {
		return h.replyNoGame(c)
	}

	if err := c.Reply(fmt.Sprintf("%s cancelled the game! Start a new one with /anagram or /pokemon.", senderName(sender))); err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("Failed to announce stop")
	}
	if err := sess.Stop(); err != nil {
		// Lost a race against the game ending on its own.
		log.Debug().Int64("chat_id", chat.ID).Msg("Stop raced with game end")
	}
	return nil
}

// HandleSkip handles /skip. Skipping with no open question is silently
// ignored.
func (h *QuizHandler) HandleSkip(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	sess, ok := h.registry.Get(chat.ID)
	if !ok {
		return h.replyNoGame(c)
	}

	switch err := sess.Skip(); {
	case errors.Is(err, engine.ErrNoOpenQuestion):
		log.Debug().Int64("chat_id", chat.ID).Msg("Skip with no open question")
	case errors.Is(err, engine.ErrNoGame):
		return h.replyNoGame(c)
	}
	return nil
}

// HandleScores handles /scores: the standings so far, without ending the
// game.
func (h *QuizHandler) HandleScores(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	sess, ok := h.registry.Get(chat.ID)
	if !ok {
		return h.replyNoGame(c)
	}

	sess.PublishScores()
	return nil
}

// HandleText checks every plain message against the chat's open question.
func (h *QuizHandler) HandleText(c tele.Context) error {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil || sender.IsBot {
		return nil
	}

	sess, ok := h.registry.Get(chat.ID)
	if !ok {
		return nil
	}

	sess.HandleMessage(engine.User{ID: sender.ID, Name: senderName(sender)}, c.Text())
	return nil
}

func (h *QuizHandler) replyNoGame(c tele.Context) error {
	return c.Reply("There are no games in progress. Start one with /anagram or /pokemon.")
}

// parseStartArgs splits the start command arguments into an optional
// question count and an optional filter, in either order.
func parseStartArgs(args []string) (count int, filter string) {
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil {
			if count == 0 {
				count = n
			}
			continue
		}
		if filter == "" {
			filter = arg
		}
	}
	return count, filter
}

// senderName prefers the username, falling back to the first name.
func senderName(sender *tele.User) string {
	if sender.Username != "" {
		return sender.Username
	}
	return sender.FirstName
}
