package engine

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry maps chat ID to the chat's active session and enforces at most
// one running game per chat. It is the only structure shared between chats;
// create and remove are serialized so two concurrent starts for the same
// chat can never both succeed.
type Registry struct {
	mu       sync.Mutex
	sched    taskScheduler
	sessions map[int64]*Session
}

// NewRegistry creates a registry whose sessions schedule their delayed
// actions on sched.
func NewRegistry(sched taskScheduler) *Registry {
	return &Registry{
		sched:    sched,
		sessions: make(map[int64]*Session),
	}
}

// Create constructs and inserts a fresh session for chatID. Returns
// ErrGameInProgress without touching the existing session when the chat
// already has one.
func (r *Registry) Create(chatID int64, params SessionParams) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[chatID]; exists {
		return nil, ErrGameInProgress
	}

	sess := newSession(chatID, r, params)
	r.sessions[chatID] = sess

	log.Info().
		Int64("chat_id", chatID).
		Str("mode", params.Mode).
		Msg("Game session created")

	return sess, nil
}

// Get returns the active session for chatID, if any.
func (r *Registry) Get(chatID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[chatID]
	return sess, ok
}

// Remove deletes the session for chatID. The session calls this exactly once
// when its game ends naturally or is stopped; a second call for the same
// game is a bug in the caller and is logged, not recovered.
func (r *Registry) Remove(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[chatID]; !ok {
		log.Warn().Int64("chat_id", chatID).Msg("Remove of absent session")
		return
	}
	delete(r.sessions, chatID)

	log.Info().Int64("chat_id", chatID).Msg("Game session removed")
}

// RemoveIf deletes the session for chatID only while it is still sess. For
// cleanup paths that can race with the session being stopped and replaced: a
// stale cleanup must never evict a newer session for the same chat.
func (r *Registry) RemoveIf(chatID int64, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[chatID]; !ok || cur != sess {
		return
	}
	delete(r.sessions, chatID)

	log.Info().Int64("chat_id", chatID).Msg("Game session removed")
}

// Count reports the number of active sessions across all chats.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
