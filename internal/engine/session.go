package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status is the lifecycle state of a session.
type Status int

const (
	// StatusAwaitingStart: the session is registered but its question queue
	// has not been loaded yet. Messages are ignored.
	StatusAwaitingStart Status = iota
	// StatusInProgress: questions are being asked.
	StatusInProgress
	// StatusEnded: terminal. The session has left the registry; any action
	// still in flight for it becomes a no-op.
	StatusEnded
)

// Reveal reasons.
const (
	ReasonTimeUp  = "Time's up!"
	ReasonSkipped = "Question skipped"
	ReasonStopped = "Game stopped"
)

// Timings holds the delays that drive one game mode's question loop.
type Timings struct {
	ToFirstQuestion time.Duration
	ToNextQuestion  time.Duration
	PerQuestion     time.Duration
	ToFirstHint     time.Duration
	ToSecondHint    time.Duration
	// ToSecondHintShort replaces ToSecondHint when the answer is at most
	// ShortAnswerCutoff characters long.
	ToSecondHintShort time.Duration
	ShortAnswerCutoff int
}

// SessionParams configures a new session.
type SessionParams struct {
	// Mode names the game for logging and results ("anagram", "pokemon").
	Mode      string
	Timings   Timings
	Publisher Publisher
	// Results, when set, receives the final standings of a finished game.
	Results ResultSink
}

// Session is the state machine for one chat's game. All transitions -
// commands, inbound messages and scheduled actions - run under the session
// mutex, so for a single chat they are strictly serialized while different
// chats progress independently. Every scheduled action re-validates the
// session state when it fires: an action that lost the race against an
// answer, a skip or a stop observes a cleared question or an ended session
// and returns without side effects.
type Session struct {
	chatID   int64
	mode     string
	timings  Timings
	sched    taskScheduler
	registry *Registry
	pub      Publisher
	results  ResultSink

	mu             sync.Mutex
	status         Status
	queue          []Question
	current        *Question
	questionNumber int
	hintsGiven     int
	scores         *ScoreBoard
}

// newSession is called by Registry.Create, which holds the uniqueness
// invariant.
func newSession(chatID int64, registry *Registry, params SessionParams) *Session {
	return &Session{
		chatID:   chatID,
		mode:     params.Mode,
		timings:  params.Timings,
		sched:    registry.sched,
		registry: registry,
		pub:      params.Publisher,
		results:  params.Results,
		status:   StatusAwaitingStart,
		scores:   NewScoreBoard(),
	}
}

// ChatID returns the chat this session belongs to.
func (s *Session) ChatID() int64 { return s.chatID }

// Mode returns the game mode name.
func (s *Session) Mode() string { return s.mode }

// Status returns the session's lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start loads the question queue and schedules the first question. The
// queue is supplied by the QuestionSource, which may take a while fetching;
// messages arriving before Start are ignored.
func (s *Session) Start(questions []Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusAwaitingStart {
		return ErrNotStartable
	}

	s.queue = questions
	s.scores = NewScoreBoard()
	s.status = StatusInProgress
	s.sched.Schedule(s.chatID, s.timings.ToFirstQuestion, KindAsk, s.askQuestion)

	log.Info().
		Int64("chat_id", s.chatID).
		Str("mode", s.mode).
		Int("questions", len(questions)).
		Msg("Game started")

	return nil
}

// HandleMessage checks an inbound message against the open question. On a
// correct answer it records the score, closes the question, cancels the
// pending reveal and hint, and schedules the next question. The first
// message processed wins; the session lock decides the race, and the loser
// sees a closed question. Returns true when the message was the answer.
func (s *Session) HandleMessage(user User, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress || s.current == nil {
		return false
	}
	if !strings.EqualFold(text, s.current.Answer) {
		return false
	}

	q := s.current
	s.current = nil
	s.sched.CancelAll(s.chatID)

	total := s.scores.Record(user)
	s.pub.SendCorrect(q, user)

	log.Info().
		Int64("chat_id", s.chatID).
		Int64("user_id", user.ID).
		Str("answer", q.Answer).
		Int("total", total).
		Msg("Correct answer")

	s.advanceLocked()
	return true
}

// Skip behaves exactly like the reveal timeout firing immediately. Only
// valid while a question is open.
func (s *Session) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return ErrNoGame
	}
	if s.current == nil {
		return ErrNoOpenQuestion
	}

	s.revealLocked(ReasonSkipped)
	return nil
}

// Stop cancels all pending actions, publishes the final scores and ends the
// game. After Stop returns no further action fires for this chat; anything
// already in flight no-ops against the ended state.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusEnded {
		return ErrNoGame
	}

	// A question still open at stop time is disclosed, but nothing further
	// is scheduled.
	if s.current != nil {
		q := s.current
		s.current = nil
		s.pub.SendReveal(q, ReasonStopped)
	}

	log.Info().Int64("chat_id", s.chatID).Str("mode", s.mode).Msg("Game stopped")
	s.endLocked()
	return nil
}

// PublishScores publishes the standings so far without ending the game.
func (s *Session) PublishScores() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pub.SendScores(s.scores.Standings(), s.questionNumber, false)
}

// askQuestion is a scheduled action: pop the queue head, open the question
// and arm the reveal timeout and first hint tick.
func (s *Session) askQuestion() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return
	}
	if len(s.queue) == 0 {
		s.endLocked()
		return
	}

	q := s.queue[0]
	s.queue = s.queue[1:]
	s.current = &q
	s.questionNumber++
	s.hintsGiven = 0

	s.pub.SendQuestion(s.questionNumber, &q)

	s.sched.Schedule(s.chatID, s.timings.PerQuestion, KindReveal, s.revealTimeout)
	s.sched.Schedule(s.chatID, s.timings.ToFirstHint, KindHint, s.giveHint)

	log.Debug().
		Int64("chat_id", s.chatID).
		Int("question", s.questionNumber).
		Msg("Question asked")
}

// revealTimeout is a scheduled action: disclose the answer because time ran
// out. A question answered or skipped in the meantime makes this a no-op.
func (s *Session) revealTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress || s.current == nil {
		return
	}
	s.revealLocked(ReasonTimeUp)
}

// revealLocked closes the open question, cancels its sibling actions and
// moves the game along. Caller holds the lock and has checked current.
func (s *Session) revealLocked(reason string) {
	q := s.current
	s.current = nil
	s.sched.CancelAll(s.chatID)

	s.pub.SendReveal(q, reason)

	log.Debug().
		Int64("chat_id", s.chatID).
		Str("answer", q.Answer).
		Str("reason", reason).
		Msg("Answer revealed")

	s.advanceLocked()
}

// giveHint is a scheduled action: reveal the next hint tier. It does not
// fire for a closed question, and once the tiers run out it stops
// rescheduling itself regardless of the time left on the reveal.
func (s *Session) giveHint() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress || s.current == nil {
		return
	}
	if s.hintsGiven >= len(s.current.Hints) {
		return
	}

	h := s.current.Hints[s.hintsGiven]
	s.hintsGiven++
	s.pub.SendHint(s.current, h)

	if s.hintsGiven < len(s.current.Hints) {
		delay := s.timings.ToSecondHint
		if len(s.current.Answer) <= s.timings.ShortAnswerCutoff {
			delay = s.timings.ToSecondHintShort
		}
		s.sched.Schedule(s.chatID, delay, KindHint, s.giveHint)
	}
}

// advanceLocked schedules the next question, or ends the game when the
// queue is exhausted.
func (s *Session) advanceLocked() {
	if len(s.queue) == 0 {
		s.endLocked()
		return
	}
	s.sched.Schedule(s.chatID, s.timings.ToNextQuestion, KindAsk, s.askQuestion)
}

// endLocked is the only way into StatusEnded: cancel everything, publish
// the final scores, leave the registry and hand the results off. Reached
// from a stop command, from queue exhaustion, and from askQuestion firing
// on an empty queue.
func (s *Session) endLocked() {
	s.status = StatusEnded
	s.current = nil
	s.sched.CancelAll(s.chatID)

	standings := s.scores.Standings()
	questions := s.questionNumber
	if questions > 0 {
		s.pub.SendScores(standings, questions, true)
	}

	s.registry.Remove(s.chatID)

	if s.results != nil && questions > 0 {
		// The sink may hit the database; keep it off the session lock's
		// critical path.
		go s.results.GameFinished(s.chatID, s.mode, standings, questions)
	}

	log.Info().
		Int64("chat_id", s.chatID).
		Str("mode", s.mode).
		Int("questions", questions).
		Int("scorers", len(standings)).
		Msg("Game ended")
}
