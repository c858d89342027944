// Package model defines the data models for the trivia bot.
package model

import "time"

// Game modes recorded with results.
const (
	ModeAnagram = "anagram"
	ModePokemon = "pokemon"
)

// GameResult is one player's outcome in one finished game.
type GameResult struct {
	ID        int64     `db:"id"`
	ChatID    int64     `db:"chat_id"`
	Mode      string    `db:"mode"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	Correct   int       `db:"correct"`
	Questions int       `db:"questions"`
	Won       bool      `db:"won"`
	PlayedAt  time.Time `db:"played_at"`
}

// PlayerTotal aggregates a player's results across all recorded games, used
// for the all-time leaderboard.
type PlayerTotal struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
	Correct  int64  `db:"correct"`
	Games    int64  `db:"games"`
	Wins     int64  `db:"wins"`
}
