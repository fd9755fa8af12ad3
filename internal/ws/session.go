package ws

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"chess_webapp/internal/chess"
	"chess_webapp/internal/config"
	"chess_webapp/internal/domain"
	"chess_webapp/internal/logger"
	"chess_webapp/internal/repository"
)

type Status string

const (
	StatusAwaiting Status = "awaiting_opponent"
	StatusActive   Status = "active"
	StatusOver     Status = "over"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrSessionClosed = errors.New("session is closed")
)

// Config carries the per-session knobs. Handlers build it once from the
// app config and hand it to the store.
type Config struct {
	TurnTime         time.Duration
	TimeoutPolicy    config.TimeoutPolicy
	ReconnectGrace   time.Duration
	AwaitingTimeout  time.Duration
	EvictAfter       time.Duration
	FirstPlayerColor string
	StartPosition    string // FEN, defaults to the standard opening position
}

type sessionMsg interface{ sessionMsg() }

type attachMsg struct {
	c     *Client
	watch bool
	reply chan error
}

type detachMsg struct{ c *Client }

type inboundMsg struct {
	c   *Client
	env Envelope
}

type clockFiredMsg struct{ seq uint64 }

type graceFiredMsg struct {
	color domain.Color
	seq   uint64
}

type awaitingFiredMsg struct{ seq uint64 }

type evictFiredMsg struct{}

type snapshotMsg struct{ reply chan Snapshot }

func (attachMsg) sessionMsg()        {}
func (detachMsg) sessionMsg()        {}
func (inboundMsg) sessionMsg()       {}
func (clockFiredMsg) sessionMsg()    {}
func (graceFiredMsg) sessionMsg()    {}
func (awaitingFiredMsg) sessionMsg() {}
func (evictFiredMsg) sessionMsg()    {}
func (snapshotMsg) sessionMsg()      {}

// Snapshot is a point-in-time view for handlers and tests.
type Snapshot struct {
	ID        string
	Status    Status
	Position  string
	MoveCount int
	White     int64
	Black     int64
}

// Session owns one board. A single goroutine consumes the inbox and is
// the only writer of all game state, so transitions are serialized and
// each inbound frame is handled start to finish before the next one.
type Session struct {
	ID string

	cfg   Config
	store *Store
	games *repository.GameRepository

	inbox  chan sessionMsg
	closed chan struct{}

	// state below is owned by the run loop
	status    Status
	position  string
	moveCount int
	reason    domain.TerminationReason
	winner    *domain.Color

	reg      *registry
	clock    seqTimer
	grace    map[domain.Color]*seqTimer
	awaiting seqTimer
	evict    seqTimer
}

func newSession(id string, cfg Config, store *Store, games *repository.GameRepository) *Session {
	position := cfg.StartPosition
	if position == "" {
		position = chess.StartingFEN
	}
	s := &Session{
		ID:       id,
		cfg:      cfg,
		store:    store,
		games:    games,
		inbox:    make(chan sessionMsg, 64),
		closed:   make(chan struct{}),
		status:   StatusAwaiting,
		position: position,
		reg:      newRegistry(),
		grace: map[domain.Color]*seqTimer{
			domain.White: {},
			domain.Black: {},
		},
	}
	s.awaiting.arm(cfg.AwaitingTimeout, func(seq uint64) {
		s.post(awaitingFiredMsg{seq: seq})
	})
	go s.run()
	return s
}

// reserveSeats pins both identities to colors before anyone connects, so
// a matched pair keeps the colors it was promised.
func (s *Session) reserveSeats(white, black int64) {
	s.reg.reserve(domain.White, white)
	s.reg.reserve(domain.Black, black)
}

func (s *Session) post(m sessionMsg) bool {
	select {
	case s.inbox <- m:
		return true
	case <-s.closed:
		return false
	}
}

// Attach binds a transport to the session and replays the current state
// to it. Players take a seat; watchers only observe.
func (s *Session) Attach(c *Client, watch bool) error {
	reply := make(chan error, 1)
	if !s.post(attachMsg{c: c, watch: watch, reply: reply}) {
		return ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.closed:
		return ErrSessionClosed
	}
}

func (s *Session) Detach(c *Client) {
	s.post(detachMsg{c: c})
}

func (s *Session) Deliver(c *Client, env Envelope) {
	s.post(inboundMsg{c: c, env: env})
}

func (s *Session) Snapshot() (Snapshot, bool) {
	reply := make(chan Snapshot, 1)
	if !s.post(snapshotMsg{reply: reply}) {
		return Snapshot{}, false
	}
	select {
	case snap := <-reply:
		return snap, true
	case <-s.closed:
		return Snapshot{}, false
	}
}

// Shutdown tears the session down regardless of state.
func (s *Session) Shutdown() {
	s.post(evictFiredMsg{})
}

func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) run() {
	defer close(s.closed)

	for m := range s.inbox {
		switch m := m.(type) {
		case attachMsg:
			m.reply <- s.handleAttach(m.c, m.watch)
		case detachMsg:
			if s.handleDetach(m.c) {
				s.release()
				return
			}
		case inboundMsg:
			s.handleInbound(m.c, m.env)
		case clockFiredMsg:
			s.handleClockFired(m.seq)
		case graceFiredMsg:
			s.handleGraceFired(m.color, m.seq)
		case awaitingFiredMsg:
			if s.status == StatusAwaiting && s.awaiting.current(m.seq) {
				logger.Info("room expired while waiting for opponent", "room", s.ID)
				s.release()
				return
			}
		case evictFiredMsg:
			s.release()
			return
		case snapshotMsg:
			m.reply <- s.snapshotLocked()
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		Status:    s.status,
		Position:  s.position,
		MoveCount: s.moveCount,
	}
	if seat, ok := s.reg.seats[domain.White]; ok {
		snap.White = seat.identity
	}
	if seat, ok := s.reg.seats[domain.Black]; ok {
		snap.Black = seat.identity
	}
	return snap
}

func (s *Session) handleAttach(c *Client, watch bool) error {
	c.session = s

	if watch {
		if old := s.reg.addSpectator(c); old != nil {
			old.closeSend()
			connDec()
		}
		connInc()
		s.sendState(c)
		return nil
	}

	color, seat, seated := s.reg.seatFor(c.UserID)
	if !seated {
		if s.reg.seated() >= 2 {
			return ErrRoomFull
		}
		color = s.pickColor()
		s.reg.reserve(color, c.UserID)
		seat = s.reg.seats[color]
	}

	if seat.client != nil && seat.client != c {
		seat.client.closeSend()
		connDec()
	}
	seat.client = c
	connInc()
	s.grace[color].stop()

	s.sendState(c)

	if s.status == StatusAwaiting && s.reg.seated() == 2 && s.reg.connectedPlayers() == 2 {
		s.activate()
	} else if s.status == StatusActive {
		s.sendClock(c)
	}
	return nil
}

func (s *Session) pickColor() domain.Color {
	if s.reg.seated() == 1 {
		for taken := range s.reg.seats {
			return taken.Opponent()
		}
	}
	if s.cfg.FirstPlayerColor == "random" && rand.Intn(2) == 0 {
		return domain.Black
	}
	return domain.White
}

// sendState replays everything a freshly attached transport needs: the
// board, and the verdict when the game is already decided. Players get an
// init frame with their seat color; spectators get a start_watch snapshot.
func (s *Session) sendState(c *Client) {
	var white, black int64
	if seat, ok := s.reg.seats[domain.White]; ok {
		white = seat.identity
	}
	if seat, ok := s.reg.seats[domain.Black]; ok {
		black = seat.identity
	}

	if color, ok := s.reg.colorOf(c); ok {
		s.sendTo(c, TypeInit, InitPayload{
			Position: s.position,
			White:    white,
			Black:    black,
			Color:    string(color),
		})
	} else {
		s.sendTo(c, TypeStartWatch, StartWatchPayload{
			Position: s.position,
			White:    white,
			Black:    black,
		})
	}

	if s.status == StatusOver {
		s.sendTo(c, TypeGameOver, s.gameOverPayload())
	}
}

func (s *Session) gameOverPayload() GameOverPayload {
	p := GameOverPayload{Reason: string(s.reason)}
	if s.winner != nil {
		p.Winner = string(*s.winner)
	}
	return p
}

func (s *Session) activate() {
	s.status = StatusActive
	s.awaiting.stop()
	logger.Info("game started", "room", s.ID)
	s.armClock()
	s.broadcast(TypeConnectUser, ConnectUserPayload{
		ClockStart: time.Now().UnixMilli(),
		Deadline:   s.clock.Deadline().UnixMilli(),
	})
}

func (s *Session) sendClock(c *Client) {
	if s.clock.Deadline().IsZero() {
		return
	}
	s.sendTo(c, TypeConnectUser, ConnectUserPayload{
		ClockStart: time.Now().UnixMilli(),
		Deadline:   s.clock.Deadline().UnixMilli(),
	})
}

func (s *Session) armClock() {
	s.clock.arm(s.cfg.TurnTime, func(seq uint64) {
		s.post(clockFiredMsg{seq: seq})
	})
}

// handleDetach reports whether the session should be released.
func (s *Session) handleDetach(c *Client) bool {
	if s.reg.dropSpectator(c) {
		connDec()
		return false
	}

	color, ok := s.reg.colorOf(c)
	if !ok || s.reg.seats[color].client != c {
		// a stale transport that was already replaced
		return false
	}
	s.reg.seats[color].client = nil
	connDec()

	switch s.status {
	case StatusActive:
		s.grace[color].arm(s.cfg.ReconnectGrace, func(seq uint64) {
			s.post(graceFiredMsg{color: color, seq: seq})
		})
	case StatusAwaiting:
		if s.reg.connected() == 0 {
			return true
		}
	}
	return false
}

func (s *Session) handleGraceFired(color domain.Color, seq uint64) {
	if s.status != StatusActive || !s.grace[color].current(seq) {
		return
	}
	if s.reg.seats[color].client != nil {
		return
	}
	winner := color.Opponent()
	s.finish(domain.ReasonDisconnected, &winner)
}

func (s *Session) handleClockFired(seq uint64) {
	if s.status != StatusActive || !s.clock.current(seq) {
		return
	}

	mover, err := chess.SideToMove(s.position)
	if err != nil {
		logger.Error("corrupt board on clock expiry", "room", s.ID, "error", err)
		return
	}

	if s.cfg.TimeoutPolicy == config.TimeoutForfeit {
		winner := mover.Opponent()
		s.finish(domain.ReasonTimeout, &winner)
		return
	}

	// fallback policy: play a uniformly random legal move for the
	// absent-minded side and keep the game going. Without a playable move
	// the session cannot stay active, so the timed-out side forfeits.
	out, err := chess.Classify(s.position)
	if err != nil || len(out.LegalMoves) == 0 {
		logger.Error("no fallback move available", "room", s.ID, "error", err)
		winner := mover.Opponent()
		s.finish(domain.ReasonTimeout, &winner)
		return
	}
	uci := out.LegalMoves[rand.Intn(len(out.LegalMoves))]
	next, err := chess.ApplyMove(s.position, chess.Move{UCI: uci})
	if err != nil {
		logger.Error("fallback move rejected", "room", s.ID, "move", uci, "error", err)
		winner := mover.Opponent()
		s.finish(domain.ReasonTimeout, &winner)
		return
	}
	logger.Debug("clock expired, fallback move played", "room", s.ID, "move", uci, "side", mover)
	s.commitMove(next, mover)
}

func (s *Session) handleInbound(c *Client, env Envelope) {
	switch env.Type {
	case TypePing:
		// keepalive only, transport pings are handled at the socket level
	case TypeStartWatch:
		s.sendState(c)
	case TypeMove:
		s.handleMove(c, env)
	case TypeResign:
		s.handleResign(c)
	case TypeCheckmate:
		s.handleClaim(c, TypeCheckmate)
	case TypeDraw:
		s.handleClaim(c, TypeDraw)
	}
}

func (s *Session) handleMove(c *Client, env Envelope) {
	color, ok := s.reg.colorOf(c)
	if !ok {
		return
	}
	if s.status == StatusOver {
		s.sendError(c, CodeGameOver, "game is already decided")
		return
	}
	if s.status != StatusActive {
		return
	}

	mover, err := chess.SideToMove(s.position)
	if err != nil {
		logger.Error("corrupt board", "room", s.ID, "error", err)
		return
	}
	if color != mover {
		// out-of-turn frames are dropped without a reply
		return
	}

	var payload MovePayload
	if err := env.Decode(&payload); err != nil || !payload.Valid() {
		protocolErrors.Inc()
		return
	}

	next, err := chess.ApplyMove(s.position, chess.Move{UCI: payload.UCI(), Position: payload.Position})
	if err != nil {
		s.sendError(c, CodeIllegalMove, "move rejected")
		return
	}
	s.commitMove(next, color)
}

// commitMove publishes the new position, then settles the game when the
// move ended it, all before the next inbox message is read.
func (s *Session) commitMove(position string, mover domain.Color) {
	s.position = position
	s.moveCount++
	movesApplied.Inc()
	s.broadcast(TypeMove, MoveBroadcastPayload{Position: position})

	out, err := chess.Classify(position)
	if err != nil {
		logger.Error("classify failed after move", "room", s.ID, "error", err)
		s.armClock()
		return
	}
	switch {
	case out.IsCheckmate:
		winner := mover
		s.finish(domain.ReasonCheckmate, &winner)
	case out.IsStalemate:
		s.finish(domain.ReasonStalemate, nil)
	case out.IsDraw:
		s.finish(domain.ReasonDraw, nil)
	default:
		s.armClock()
	}
}

func (s *Session) handleResign(c *Client) {
	color, ok := s.reg.colorOf(c)
	if !ok {
		return
	}
	if s.status == StatusOver {
		s.sendError(c, CodeGameOver, "game is already decided")
		return
	}
	if s.status != StatusActive {
		return
	}
	winner := color.Opponent()
	s.finish(domain.ReasonResignation, &winner)
}

// handleClaim verifies an end-of-game claim against the board instead of
// trusting the client.
func (s *Session) handleClaim(c *Client, claim string) {
	if _, ok := s.reg.colorOf(c); !ok {
		return
	}
	if s.status == StatusOver {
		s.sendError(c, CodeGameOver, "game is already decided")
		return
	}
	if s.status != StatusActive {
		return
	}

	out, err := chess.Classify(s.position)
	if err != nil {
		logger.Error("classify failed on claim", "room", s.ID, "error", err)
		return
	}

	switch claim {
	case TypeCheckmate:
		if !out.IsCheckmate {
			s.sendError(c, CodeBadClaim, "position is not checkmate")
			return
		}
		mated, err := chess.SideToMove(s.position)
		if err != nil {
			return
		}
		winner := mated.Opponent()
		s.finish(domain.ReasonCheckmate, &winner)
	case TypeDraw:
		switch {
		case out.IsStalemate:
			s.finish(domain.ReasonStalemate, nil)
		case out.IsDraw:
			s.finish(domain.ReasonDraw, nil)
		default:
			s.sendError(c, CodeBadClaim, "position is not drawn")
		}
	}
}

func (s *Session) finish(reason domain.TerminationReason, winner *domain.Color) {
	s.status = StatusOver
	s.reason = reason
	s.winner = winner
	s.clock.stop()
	for _, g := range s.grace {
		g.stop()
	}
	s.awaiting.stop()

	gamesFinished.WithLabelValues(string(reason)).Inc()
	logger.Info("game over", "room", s.ID, "reason", reason, "moves", s.moveCount)

	s.broadcast(TypeGameOver, s.gameOverPayload())
	s.persist()

	s.evict.arm(s.cfg.EvictAfter, func(uint64) {
		s.post(evictFiredMsg{})
	})
}

// persist records the finished game off the session goroutine so a slow
// database never stalls the inbox.
func (s *Session) persist() {
	if s.games == nil {
		return
	}
	white, okW := s.reg.seats[domain.White]
	black, okB := s.reg.seats[domain.Black]
	if !okW || !okB {
		return
	}
	match := &domain.Match{
		RoomID:    s.ID,
		WhiteID:   white.identity,
		BlackID:   black.identity,
		Winner:    s.winner,
		Reason:    s.reason,
		FinalFEN:  s.position,
		MoveCount: s.moveCount,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.games.Create(ctx, match); err != nil {
			logger.Error("failed to save finished game", "room", s.ID, "error", err)
		}
	}()
}

// release drops the session from the store and shuts every transport
// down. Called only from the run loop, right before it returns.
func (s *Session) release() {
	s.clock.stop()
	for _, g := range s.grace {
		g.stop()
	}
	s.awaiting.stop()
	s.evict.stop()

	s.reg.each(func(c *Client) {
		c.closeSend()
		connDec()
	})
	if s.store != nil {
		s.store.remove(s.ID)
	}
	logger.Debug("session released", "room", s.ID)
}

func (s *Session) sendTo(c *Client, msgType string, payload any) {
	frame, err := EncodeEnvelope(msgType, payload)
	if err != nil {
		logger.Error("encode failed", "type", msgType, "error", err)
		return
	}
	if !c.trySend(frame) {
		logger.Warn("send buffer full, dropping frame", "room", s.ID, "user", c.UserID, "type", msgType)
	}
}

func (s *Session) sendError(c *Client, code, message string) {
	s.sendTo(c, TypeError, ErrorPayload{Code: code, Message: message})
}

// broadcast fans one frame out to every live transport. Delivery is
// best-effort per recipient; one stuck socket never blocks the rest.
func (s *Session) broadcast(msgType string, payload any) {
	frame, err := EncodeEnvelope(msgType, payload)
	if err != nil {
		logger.Error("encode failed", "type", msgType, "error", err)
		return
	}
	s.reg.each(func(c *Client) {
		if !c.trySend(frame) {
			logger.Warn("send buffer full, dropping frame", "room", s.ID, "user", c.UserID, "type", msgType)
		}
	})
}
