package session

import (
	"sync"
	"time"

	"companionbot/internal/config"
	"companionbot/internal/history"
	"companionbot/internal/logging"
	"companionbot/internal/tokens"
)

// Store is the thread-safe chatId → Session map. A single mutex guards the
// whole map and every session's fields; sessions are small and mutations
// are infrequent enough relative to an LLM round trip that per-session
// locking would add complexity without a measurable benefit.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	cfg       config.SessionConfig
	log       *history.Log
	estimator *tokens.Estimator
}

// New returns a Store backed by the given persistent append log.
func New(cfg config.SessionConfig, log *history.Log) *Store {
	return &Store{
		sessions:  make(map[int64]*Session),
		cfg:       cfg,
		log:       log,
		estimator: tokens.NewEstimator(),
	}
}

// getOrCreate returns chatID's session, lazily creating and hydrating it
// from the append log on first access. Callers must hold s.mu.
func (st *Store) getOrCreate(chatID int64) *Session {
	sess, ok := st.sessions[chatID]
	if ok {
		sess.lastAccessedAt = time.Now()
		return sess
	}

	sess = &Session{
		chatID:         chatID,
		model:          "sonnet",
		lastAccessedAt: time.Now(),
	}

	if st.log != nil {
		for _, e := range st.log.LoadTail(chatID, st.cfg.MaxHistoryLoad) {
			sess.history = append(sess.history, Message{
				Role:      e.Role,
				Content:   e.Content,
				Timestamp: e.Timestamp,
			})
		}
	}

	st.sessions[chatID] = sess
	st.evictLocked()
	return sess
}

// GetHistory returns a copy of chatID's message history.
func (st *Store) GetHistory(chatID int64) []Message {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.getOrCreate(chatID).History()
}

// AddMessage appends a message to chatID's in-memory history and to the
// persistent append log. Role alternation is not enforced: error responses
// are recorded as assistant turns even following another assistant turn.
func (st *Store) AddMessage(chatID int64, role, content string) {
	st.mu.Lock()
	sess := st.getOrCreate(chatID)
	sess.history = append(sess.history, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	st.mu.Unlock()

	if st.log != nil {
		st.log.Append(chatID, role, content)
	}
}

// ClearHistory wipes chatID's in-memory history and summary chunks but
// preserves pinned contexts.
func (st *Store) ClearHistory(chatID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess := st.getOrCreate(chatID)
	sess.history = nil
	sess.summaryChunks = nil
}

// ClearSession removes chatID's entry entirely and deletes its append log.
func (st *Store) ClearSession(chatID int64) {
	st.mu.Lock()
	delete(st.sessions, chatID)
	st.mu.Unlock()

	if st.log != nil {
		if err := st.log.Delete(chatID); err != nil {
			logging.SessionError("session: clear chat %d: %v", chatID, err)
		}
	}
}

// SetModel sets chatID's model tier name.
func (st *Store) SetModel(chatID int64, model string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.getOrCreate(chatID).model = model
}

// Model returns chatID's model tier name.
func (st *Store) Model(chatID int64) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.getOrCreate(chatID).model
}

// evictLocked applies TTL and LRU eviction. Callers must hold st.mu.
func (st *Store) evictLocked() {
	now := time.Now()
	for id, sess := range st.sessions {
		if now.Sub(sess.lastAccessedAt) > st.cfg.TTL {
			delete(st.sessions, id)
			logging.SessionDebug("session: evicted chat %d (idle %s)", id, now.Sub(sess.lastAccessedAt))
		}
	}

	if st.cfg.MaxSessions <= 0 || len(st.sessions) <= st.cfg.MaxSessions {
		return
	}

	type lastSeen struct {
		id int64
		at time.Time
	}
	seen := make([]lastSeen, 0, len(st.sessions))
	for id, sess := range st.sessions {
		seen = append(seen, lastSeen{id, sess.lastAccessedAt})
	}
	for len(st.sessions) > st.cfg.MaxSessions {
		oldest := 0
		for i := 1; i < len(seen); i++ {
			if seen[i].at.Before(seen[oldest].at) {
				oldest = i
			}
		}
		delete(st.sessions, seen[oldest].id)
		logging.SessionDebug("session: LRU-evicted chat %d", seen[oldest].id)
		seen = append(seen[:oldest], seen[oldest+1:]...)
	}
}

// Len returns the number of sessions currently held in memory.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
