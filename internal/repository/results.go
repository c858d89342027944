// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-trivia-bot/internal/model"
)

// ResultRepository persists finished game results.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository instance.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// RecordGame inserts one row per player for a finished game. The rows are
// sent as a single batch.
func (r *ResultRepository) RecordGame(ctx context.Context, results []model.GameResult) error {
	if len(results) == 0 {
		return nil
	}

	const query = `
		INSERT INTO game_results (chat_id, mode, user_id, username, correct, questions, won, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(query,
			res.ChatID, res.Mode, res.UserID, res.Username,
			res.Correct, res.Questions, res.Won,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to record game results: %w", err)
		}
	}
	return nil
}

// TopPlayers returns the all-time leaderboard ordered by total correct
// answers.
func (r *ResultRepository) TopPlayers(ctx context.Context, limit int) ([]*model.PlayerTotal, error) {
	const query = `
		SELECT user_id,
		       MAX(username) AS username,
		       SUM(correct) AS correct,
		       COUNT(*) AS games,
		       COUNT(*) FILTER (WHERE won) AS wins
		FROM game_results
		GROUP BY user_id
		ORDER BY correct DESC, wins DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top players: %w", err)
	}
	defer rows.Close()

	var totals []*model.PlayerTotal
	for rows.Next() {
		var t model.PlayerTotal
		if err := rows.Scan(&t.UserID, &t.Username, &t.Correct, &t.Games, &t.Wins); err != nil {
			return nil, fmt.Errorf("failed to scan player total: %w", err)
		}
		totals = append(totals, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read top players: %w", err)
	}
	return totals, nil
}

// PlayerTotal returns one player's aggregate, or nil when the player has no
// recorded games.
func (r *ResultRepository) PlayerTotal(ctx context.Context, userID int64) (*model.PlayerTotal, error) {
	const query = `
		SELECT user_id,
		       MAX(username) AS username,
		       SUM(correct) AS correct,
		       COUNT(*) AS games,
		       COUNT(*) FILTER (WHERE won) AS wins
		FROM game_results
		WHERE user_id = $1
		GROUP BY user_id
	`

	var t model.PlayerTotal
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&t.UserID, &t.Username, &t.Correct, &t.Games, &t.Wins,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get player total: %w", err)
	}
	return &t, nil
}
