// Package service implements the application services on top of the
// repositories.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-trivia-bot/internal/engine"
	"telegram-trivia-bot/internal/model"
	"telegram-trivia-bot/internal/repository"
)

// recordTimeout bounds the database write for one finished game.
const recordTimeout = 10 * time.Second

// StatsService records finished games and serves the all-time leaderboard.
// It implements engine.ResultSink, so the engine pushes results here when a
// game ends; a failed write is logged and dropped, never fed back into the
// game loop.
type StatsService struct {
	results *repository.ResultRepository
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(results *repository.ResultRepository) *StatsService {
	return &StatsService{results: results}
}

// GameFinished persists the standings of a finished game. The winner flag is
// set for the sole leader; a tied game records no winner.
func (s *StatsService) GameFinished(chatID int64, mode string, standings []engine.Score, questions int) {
	results := buildResults(chatID, mode, standings, questions)
	if len(results) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := s.results.RecordGame(ctx, results); err != nil {
		log.Error().
			Err(err).
			Int64("chat_id", chatID).
			Str("mode", mode).
			Msg("Failed to record game results")
		return
	}

	log.Info().
		Int64("chat_id", chatID).
		Str("mode", mode).
		Int("players", len(results)).
		Msg("Game results recorded")
}

// buildResults turns final standings into result rows. The winner flag is set
// for the sole leader; a tied or scoreless game records no winner.
func buildResults(chatID int64, mode string, standings []engine.Score, questions int) []model.GameResult {
	if len(standings) == 0 || questions <= 0 {
		return nil
	}

	var winnerID int64
	if top := standings[0]; len(standings) == 1 || top.Points != standings[1].Points {
		winnerID = top.User.ID
	}

	results := make([]model.GameResult, 0, len(standings))
	for _, sc := range standings {
		results = append(results, model.GameResult{
			ChatID:    chatID,
			Mode:      mode,
			UserID:    sc.User.ID,
			Username:  sc.User.Name,
			Correct:   sc.Points,
			Questions: questions,
			Won:       sc.User.ID == winnerID,
		})
	}
	return results
}

// TopPlayers returns the all-time leaderboard.
func (s *StatsService) TopPlayers(ctx context.Context, limit int) ([]*model.PlayerTotal, error) {
	return s.results.TopPlayers(ctx, limit)
}

// PlayerStats returns one player's all-time totals, or nil when the player
// has no recorded games.
func (s *StatsService) PlayerStats(ctx context.Context, userID int64) (*model.PlayerTotal, error) {
	return s.results.PlayerTotal(ctx, userID)
}
