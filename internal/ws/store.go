package ws

import (
	"sync"
	"time"

	"chess_webapp/internal/logger"
	"chess_webapp/internal/repository"
)

// Store holds every live session keyed by room id. Sessions remove
// themselves on release; the sweep is a safety net for anything that
// slipped through.
type Store struct {
	mu       sync.RWMutex
	cfg      Config
	games    *repository.GameRepository
	sessions map[string]*Session
}

func NewStore(cfg Config, games *repository.GameRepository) *Store {
	return &Store{
		cfg:      cfg,
		games:    games,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for roomID, creating an unseated one
// when the room does not exist yet.
func (st *Store) GetOrCreate(roomID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[roomID]; ok {
		return s
	}
	s := newSession(roomID, st.cfg, st, st.games)
	st.sessions[roomID] = s
	activeSessions.Inc()
	logger.Debug("session created", "room", roomID)
	return s
}

// CreateMatched creates a session with both seats pinned up front, so a
// matched pair keeps the colors the matchmaker promised. Returns false
// when the room id is already taken.
func (st *Store) CreateMatched(roomID string, whiteID, blackID int64) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[roomID]; ok {
		return nil, false
	}
	s := newSession(roomID, st.cfg, st, st.games)
	s.reserveSeats(whiteID, blackID)
	st.sessions[roomID] = s
	activeSessions.Inc()
	logger.Debug("matched session created", "room", roomID, "white", whiteID, "black", blackID)
	return s, true
}

func (st *Store) Get(roomID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[roomID]
	return s, ok
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// remove is called by a session as it releases itself.
func (st *Store) remove(roomID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[roomID]; ok {
		delete(st.sessions, roomID)
		activeSessions.Dec()
	}
}

// StartSweep reaps sessions whose run loop already exited but that are
// somehow still indexed.
func (st *Store) StartSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			st.sweep()
		}
	}()
}

func (st *Store) sweep() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, s := range st.sessions {
		select {
		case <-s.Done():
			delete(st.sessions, id)
			activeSessions.Dec()
			logger.Warn("swept dead session", "room", id)
		default:
		}
	}
}

// Shutdown tears every session down, for graceful server stop.
func (st *Store) Shutdown() {
	st.mu.RLock()
	all := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		all = append(all, s)
	}
	st.mu.RUnlock()

	for _, s := range all {
		s.Shutdown()
		<-s.Done()
	}
}
