package ws

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	mrand "math/rand"
	"sync"

	"chess_webapp/internal/domain"
	"chess_webapp/internal/logger"
)

var ErrAlreadyQueued = errors.New("user is already queued")

// MatchTicket is one player's place in a queue. The handler waits on
// Result; the matchmaker closes the deal by delivering a payload to
// both sides of a pair.
type MatchTicket struct {
	userID int64
	Result chan StartGamePayload
}

func newTicket(userID int64) *MatchTicket {
	return &MatchTicket{userID: userID, Result: make(chan StartGamePayload, 1)}
}

// Matchmaker pairs players two ways: an open queue (first two strangers
// play each other) and private lobbies keyed by room id. Either way the
// matched session is created here with both seats pinned, so the color
// each player is told is the color they get.
type Matchmaker struct {
	mu      sync.Mutex
	store   *Store
	cfg     Config
	waiting *MatchTicket
	lobbies map[string]*MatchTicket
}

func NewMatchmaker(store *Store, cfg Config) *Matchmaker {
	return &Matchmaker{
		store:   store,
		cfg:     cfg,
		lobbies: make(map[string]*MatchTicket),
	}
}

// Enqueue puts a player in the open queue, or pairs them with whoever is
// already waiting.
func (m *Matchmaker) Enqueue(userID int64) (*MatchTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.waiting == nil {
		m.waiting = newTicket(userID)
		return m.waiting, nil
	}
	if m.waiting.userID == userID {
		return nil, ErrAlreadyQueued
	}

	first := m.waiting
	m.waiting = nil
	second := newTicket(userID)
	m.pair(newRoomID(), first, second)
	return second, nil
}

// JoinLobby opens a private room when nobody waits under roomID, or
// completes the pair when the creator is already there.
func (m *Matchmaker) JoinLobby(roomID string, userID int64) (*MatchTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	first, ok := m.lobbies[roomID]
	if !ok {
		t := newTicket(userID)
		m.lobbies[roomID] = t
		return t, nil
	}
	if first.userID == userID {
		return nil, ErrAlreadyQueued
	}

	delete(m.lobbies, roomID)
	second := newTicket(userID)
	m.pair(roomID, first, second)
	return second, nil
}

// Cancel removes a ticket that never got matched, typically because the
// socket behind it went away.
func (m *Matchmaker) Cancel(t *MatchTicket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.waiting == t {
		m.waiting = nil
		return
	}
	for roomID, waiting := range m.lobbies {
		if waiting == t {
			delete(m.lobbies, roomID)
			return
		}
	}
}

// pair pins colors, creates the session and notifies both tickets.
// Caller holds the lock.
func (m *Matchmaker) pair(roomID string, first, second *MatchTicket) {
	firstColor := domain.White
	if m.cfg.FirstPlayerColor == "random" && mrand.Intn(2) == 0 {
		firstColor = domain.Black
	}

	white, black := first, second
	if firstColor == domain.Black {
		white, black = second, first
	}

	if _, ok := m.store.CreateMatched(roomID, white.userID, black.userID); !ok {
		// room id collision, try a fresh one
		roomID = newRoomID()
		if _, ok := m.store.CreateMatched(roomID, white.userID, black.userID); !ok {
			logger.Error("failed to create matched room", "room", roomID)
			return
		}
	}
	logger.Info("players matched", "room", roomID, "white", white.userID, "black", black.userID)

	white.Result <- StartGamePayload{RoomID: roomID, Color: string(domain.White)}
	black.Result <- StartGamePayload{RoomID: roomID, Color: string(domain.Black)}
}

func newRoomID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		return hex.EncodeToString([]byte("fallback"))
	}
	return hex.EncodeToString(b[:])
}
