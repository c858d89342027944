package handler

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-trivia-bot/internal/engine"
)

// Publisher renders engine notifications into Telegram messages for one
// chat. Sends are fire-and-forget: a delivery failure is logged and the game
// carries on, which is all the engine expects.
type Publisher struct {
	bot  *tele.Bot
	chat *tele.Chat
}

// NewPublisher creates a publisher for the given chat.
func NewPublisher(bot *tele.Bot, chatID int64) *Publisher {
	return &Publisher{bot: bot, chat: &tele.Chat{ID: chatID}}
}

// SendQuestion announces question number n.
func (p *Publisher) SendQuestion(n int, q *engine.Question) {
	caption := fmt.Sprintf("❓ Question %d\n\n%s", n, q.Prompt)
	if q.ImageURL != "" {
		p.sendPhoto(q.ImageURL, caption)
		return
	}
	p.send(caption)
}

// SendHint reveals one hint tier.
func (p *Publisher) SendHint(q *engine.Question, h engine.Hint) {
	p.send(fmt.Sprintf("💡 %s: %s", h.Name, h.Value))
}

// SendCorrect announces a correct answer with the question details.
func (p *Publisher) SendCorrect(q *engine.Question, user engine.User) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ %s got it right! The answer was %s.", user.Name, q.Answer)
	appendDetails(&sb, q.Details)
	p.send(sb.String())
}

// SendReveal discloses the answer with the reason it is being revealed.
func (p *Publisher) SendReveal(q *engine.Question, reason string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏱ %s The answer was %s.", reason, q.Answer)
	appendDetails(&sb, q.Details)
	p.send(sb.String())
}

// SendScores publishes the standings, scored as percentages of the
// questions asked so far.
func (p *Publisher) SendScores(standings []engine.Score, questions int, gameEnded bool) {
	var sb strings.Builder
	sb.WriteString(scoresHeadline(standings, gameEnded))

	if len(standings) > 0 {
		sb.WriteString("\n")
		for _, sc := range standings {
			fmt.Fprintf(&sb, "\n%s — %.2f", sc.User.Name, engine.Percentage(sc.Points, questions))
		}
	}
	p.send(sb.String())
}

// SendNotice carries informational messages.
func (p *Publisher) SendNotice(text string) {
	p.send(text)
}

// scoresHeadline picks the winner/leader wording.
func scoresHeadline(standings []engine.Score, gameEnded bool) string {
	switch {
	case len(standings) == 0 && gameEnded:
		return "🏁 Game over. Ruh-roh! No one got any points."
	case len(standings) == 0:
		return "No points so far."
	}

	tie := len(standings) > 1 && standings[0].Points == standings[1].Points
	switch {
	case gameEnded && tie:
		return "🏁 Game over. It's a tie!"
	case gameEnded:
		return fmt.Sprintf("🏁 Game over. %s won the game!", standings[0].User.Name)
	case tie:
		return "It's tied at the top!"
	default:
		return fmt.Sprintf("%s is in the lead!", standings[0].User.Name)
	}
}

// appendDetails writes the question details (definitions, type line, Pokédex
// entry) under the headline.
func appendDetails(sb *strings.Builder, details []engine.Hint) {
	for _, d := range details {
		fmt.Fprintf(sb, "\n\n%s: %s", d.Name, d.Value)
	}
}

func (p *Publisher) send(text string) {
	if _, err := p.bot.Send(p.chat, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", p.chat.ID).Msg("Failed to send message")
	}
}

func (p *Publisher) sendPhoto(url, caption string) {
	photo := &tele.Photo{File: tele.FromURL(url), Caption: caption}
	if _, err := p.bot.Send(p.chat, photo); err != nil {
		log.Warn().Err(err).Int64("chat_id", p.chat.ID).Msg("Failed to send photo")
	}
}
