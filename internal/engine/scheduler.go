package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ActionKind labels what a scheduled task will do when it fires.
type ActionKind int

const (
	// KindAsk asks the next question.
	KindAsk ActionKind = iota
	// KindHint reveals the next hint tier.
	KindHint
	// KindReveal discloses the answer on timeout.
	KindReveal
)

// String returns the kind's log label.
func (k ActionKind) String() string {
	switch k {
	case KindAsk:
		return "ask"
	case KindHint:
		return "hint"
	case KindReveal:
		return "reveal"
	default:
		return "unknown"
	}
}

// CancelFunc cancels a single scheduled action. Calling it after the action
// fired or was cancelled is a no-op.
type CancelFunc func()

// taskScheduler is what a Session needs from the scheduler. Tests substitute
// a manual implementation to drive timers deterministically.
type taskScheduler interface {
	Schedule(chatID int64, delay time.Duration, kind ActionKind, fn func()) CancelFunc
	CancelAll(chatID int64)
}

// Scheduler runs cancellable delayed actions, each tagged with the chat that
// owns it so a whole chat's pending work can be cancelled at once on answer,
// skip or stop. Cancellation is best-effort with respect to in-flight
// timers: an action whose timer already fired still runs, so actions must
// re-validate session state when they execute. The session state machine
// does exactly that.
type Scheduler struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[int64]map[uint64]*time.Timer
	stopped bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		pending: make(map[int64]map[uint64]*time.Timer),
	}
}

// Schedule registers fn to run after delay, tagged with chatID. The returned
// CancelFunc cancels just this action.
func (s *Scheduler) Schedule(chatID int64, delay time.Duration, kind ActionKind, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return func() {}
	}

	s.nextID++
	id := s.nextID

	timer := time.AfterFunc(delay, func() {
		s.forget(chatID, id)
		fn()
	})

	if s.pending[chatID] == nil {
		s.pending[chatID] = make(map[uint64]*time.Timer)
	}
	s.pending[chatID][id] = timer

	log.Debug().
		Int64("chat_id", chatID).
		Str("kind", kind.String()).
		Dur("delay", delay).
		Msg("Action scheduled")

	return func() { s.cancel(chatID, id) }
}

// CancelAll cancels every still-pending action tagged with chatID. Cancelling
// a chat with nothing pending is a no-op. Actions whose timers already fired
// are unaffected.
func (s *Scheduler) CancelAll(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, timer := range s.pending[chatID] {
		timer.Stop()
	}
	delete(s.pending, chatID)
}

// Pending reports the number of actions still pending for a chat.
func (s *Scheduler) Pending(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[chatID])
}

// Stop cancels everything and rejects further scheduling. Used on process
// shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for _, timers := range s.pending {
		for _, timer := range timers {
			timer.Stop()
		}
	}
	s.pending = make(map[int64]map[uint64]*time.Timer)
}

// cancel stops a single pending action.
func (s *Scheduler) cancel(chatID int64, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timers, ok := s.pending[chatID]; ok {
		if timer, ok := timers[id]; ok {
			timer.Stop()
			delete(timers, id)
		}
	}
}

// forget drops the bookkeeping entry for an action that fired.
func (s *Scheduler) forget(chatID int64, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timers, ok := s.pending[chatID]; ok {
		delete(timers, id)
		if len(timers) == 0 {
			delete(s.pending, chatID)
		}
	}
}
