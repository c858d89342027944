package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"telegram-trivia-bot/internal/model"
	"telegram-trivia-bot/internal/service"
)

// topPlayersLimit is how many rows /top shows.
const topPlayersLimit = 10

// StatsHandler serves the leaderboard and per-player totals built from
// recorded games.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleTop handles /top.
func (h *StatsHandler) HandleTop(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	totals, err := h.stats.TopPlayers(ctx, topPlayersLimit)
	if err != nil {
		return c.Reply("Couldn't fetch the leaderboard, try again later.")
	}
	if len(totals) == 0 {
		return c.Reply("No games recorded yet. Start one with /anagram or /pokemon.")
	}

	var sb strings.Builder
	sb.WriteString("🏆 All-time leaderboard\n")
	for i, t := range totals {
		fmt.Fprintf(&sb, "\n%d. %s — %d correct, %d wins in %d games",
			i+1, t.Username, t.Correct, t.Wins, t.Games)
	}
	return c.Reply(sb.String())
}

// HandleStats handles /stats: the caller's own all-time totals.
func (h *StatsHandler) HandleStats(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := h.stats.PlayerStats(ctx, sender.ID)
	if err != nil {
		return c.Reply("Couldn't fetch your stats, try again later.")
	}
	if total == nil {
		return c.Reply("No games recorded for you yet. Start one with /anagram or /pokemon.")
	}
	return c.Reply(formatPlayerStats(total))
}

// formatPlayerStats renders one player's totals.
func formatPlayerStats(t *model.PlayerTotal) string {
	return fmt.Sprintf("📊 %s — %d correct answers, %d wins in %d games",
		t.Username, t.Correct, t.Wins, t.Games)
}
