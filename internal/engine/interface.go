// Package engine implements the timed game session state machine that runs
// independently in every chat: question/hint/reveal timing, cancellation,
// answer checking and scorekeeping. It knows nothing about Telegram; the bot
// layer feeds it commands and messages and gives it a Publisher to talk back
// through.
package engine

import "context"

// User identifies a player. Name is carried alongside the ID so scoreboards
// can be rendered without another lookup.
type User struct {
	ID   int64
	Name string
}

// Hint is one tier of a progressively-revealing clue, shown in order while a
// question stays unanswered (e.g. "First letter" -> "c", then a definition).
type Hint struct {
	Name  string
	Value string
}

// Question is a single quiz item. Answers are compared case-insensitively
// and exactly, no fuzzy matching.
type Question struct {
	// Answer is the accepted solution.
	Answer string

	// Prompt is the obscured form shown when the question is asked: the
	// scrambled word for anagrams, a caption for picture questions.
	Prompt string

	// ImageURL, when set, is a picture sent with the question (the sprite
	// for "Who's that Pokémon?").
	ImageURL string

	// Hints are revealed one tier at a time while the question is open.
	Hints []Hint

	// Details are shown together with the answer on reveal or on a correct
	// guess (definitions, type line, Pokédex entry).
	Details []Hint
}

// QuestionSource supplies the ordered question queue for a session.
// Implementations that fetch per-item data over the network substitute
// replacements for failed items; when the underlying corpus or range cannot
// supply count distinct items they return ErrSourceExhausted.
type QuestionSource interface {
	// Fetch returns count questions. filter is source-specific (e.g. a
	// Pokédex region) and may be empty.
	Fetch(ctx context.Context, count int, filter string) ([]Question, error)
}

// Publisher is the one-way notification sink a session talks through. The
// engine does not depend on delivery: a failed send is logged by the
// implementation and the game carries on.
type Publisher interface {
	// SendQuestion announces question number n.
	SendQuestion(n int, q *Question)

	// SendHint reveals one hint tier for the current question.
	SendHint(q *Question, h Hint)

	// SendCorrect announces that user answered the question correctly.
	SendCorrect(q *Question, user User)

	// SendReveal discloses the answer with a reason ("Time's up!",
	// "Question skipped", ...).
	SendReveal(q *Question, reason string)

	// SendScores publishes the standings. questions is the number of
	// questions asked so far; gameEnded selects the final wording.
	SendScores(standings []Score, questions int, gameEnded bool)

	// SendNotice carries informational messages (count capped, game
	// cancelled because the source failed, ...).
	SendNotice(text string)
}

// ResultSink receives the outcome of a finished game. Implementations may do
// I/O; the session invokes it outside its own lock.
type ResultSink interface {
	GameFinished(chatID int64, mode string, standings []Score, questions int)
}
