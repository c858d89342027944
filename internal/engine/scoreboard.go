package engine

import (
	"math"
	"sort"
)

// Score is one scoreboard row.
type Score struct {
	User   User
	Points int
}

// ScoreBoard accumulates correct-answer counts for one session. It is owned
// by a Session and guarded by the session's lock; it has no locking of its
// own.
type ScoreBoard struct {
	points map[int64]int
	names  map[int64]string
}

// NewScoreBoard creates an empty scoreboard.
func NewScoreBoard() *ScoreBoard {
	return &ScoreBoard{
		points: make(map[int64]int),
		names:  make(map[int64]string),
	}
}

// Record counts one correct answer for user, creating the entry at 1 when
// the user scores for the first time. Returns the user's new total.
func (b *ScoreBoard) Record(user User) int {
	b.points[user.ID]++
	b.names[user.ID] = user.Name
	return b.points[user.ID]
}

// Standings returns all scores sorted by descending points. The order of
// tied entries is not significant.
func (b *ScoreBoard) Standings() []Score {
	standings := make([]Score, 0, len(b.points))
	for id, pts := range b.points {
		standings = append(standings, Score{
			User:   User{ID: id, Name: b.names[id]},
			Points: pts,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Points != standings[j].Points {
			return standings[i].Points > standings[j].Points
		}
		return standings[i].User.ID < standings[j].User.ID
	})
	return standings
}

// Leader returns the top scorer. tie is true when the top two scores are
// equal; ok is false when no one has scored yet, which is "no one scored",
// not a tie of zero competitors.
func (b *ScoreBoard) Leader() (leader Score, tie bool, ok bool) {
	standings := b.Standings()
	if len(standings) == 0 {
		return Score{}, false, false
	}
	tie = len(standings) > 1 && standings[0].Points == standings[1].Points
	return standings[0], tie, true
}

// Len reports how many users have scored.
func (b *ScoreBoard) Len() int {
	return len(b.points)
}

// Percentage normalizes points against the number of questions asked,
// rounded to two decimal places. Zero questions yields zero.
func Percentage(points, questions int) float64 {
	if questions <= 0 {
		return 0
	}
	return math.Round(float64(points)*10000/float64(questions)) / 100
}
