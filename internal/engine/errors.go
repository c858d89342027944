package engine

import "errors"

// Errors returned by session and registry operations.
var (
	// ErrGameInProgress is returned when a game is started in a chat that
	// already has a running session.
	ErrGameInProgress = errors.New("a game is already running in this chat")

	// ErrNoGame is returned when stop/skip/scores is used in a chat with no
	// active session.
	ErrNoGame = errors.New("no game in progress in this chat")

	// ErrNoOpenQuestion is returned when skip is used while no question is
	// open (between questions, or before the first one was asked).
	ErrNoOpenQuestion = errors.New("no open question to skip")

	// ErrSourceExhausted is returned by question sources when the corpus or
	// ID range cannot supply the requested number of distinct questions.
	ErrSourceExhausted = errors.New("question source exhausted")

	// ErrNotStartable is returned when Start is called on a session that has
	// already started or ended.
	ErrNotStartable = errors.New("session already started")
)
