package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is stamped on every outbound envelope. Inbound envelopes
// may omit it (the original webapp client never sent one); anything newer
// than what we speak is rejected.
const ProtocolVersion = 1

// Envelope is the single message shape exchanged over the socket.
type Envelope struct {
	V    int             `json:"v,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Closed set of envelope types. Anything else is a protocol error.
const (
	// client -> server
	TypeMove       = "move"
	TypeResign     = "resign"
	TypeCheckmate  = "checkmate" // client-detected, verified server-side
	TypeDraw       = "draw"      // client-detected, verified server-side
	TypeStartWatch = "start_watch"
	TypePing       = "ping"

	// server -> client
	TypeStartGame   = "start_game"
	TypeInit        = "init"
	TypeConnectUser = "connect_user"
	TypeGameOver    = "game_over"
	TypeError       = "error"
)

var ErrProtocol = errors.New("protocol error")

var knownTypes = map[string]bool{
	TypeMove:        true,
	TypeResign:      true,
	TypeCheckmate:   true,
	TypeDraw:        true,
	TypeStartWatch:  true,
	TypePing:        true,
	TypeStartGame:   true,
	TypeInit:        true,
	TypeConnectUser: true,
	TypeGameOver:    true,
	TypeError:       true,
}

// DecodeEnvelope parses and shape-checks a raw inbound frame. A failed
// decode must never reach the session state machine.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if !knownTypes[env.Type] {
		return Envelope{}, fmt.Errorf("%w: unknown type %q", ErrProtocol, env.Type)
	}
	if env.V > ProtocolVersion {
		return Envelope{}, fmt.Errorf("%w: unsupported version %d", ErrProtocol, env.V)
	}
	return env, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: missing payload", ErrProtocol)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

// EncodeEnvelope marshals an outbound envelope with the current version tag.
func EncodeEnvelope(msgType string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Envelope{V: ProtocolVersion, Type: msgType, Data: data})
}

// MovePayload carries a proposed move: either the claimed position after
// the move (original client behavior) or explicit from/to squares.
type MovePayload struct {
	Position  string `json:"position,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

// Valid reports whether the payload names a move at all.
func (p MovePayload) Valid() bool {
	return p.Position != "" || (p.From != "" && p.To != "")
}

// UCI flattens from/to/promotion into UCI notation; empty when the payload
// carries a position instead.
func (p MovePayload) UCI() string {
	if p.From == "" || p.To == "" {
		return ""
	}
	return p.From + p.To + p.Promotion
}

// StartGamePayload tells a matched player where to go and which side
// they play.
type StartGamePayload struct {
	RoomID string `json:"room_id"`
	Color  string `json:"color"`
}

// InitPayload is the game-start (and reconnect) snapshot for players.
type InitPayload struct {
	Position string `json:"position"`
	White    int64  `json:"white"`
	Black    int64  `json:"black"`
	Color    string `json:"color"`
}

// StartWatchPayload is the snapshot sent to spectators on attach.
type StartWatchPayload struct {
	Position string `json:"position"`
	White    int64  `json:"white"`
	Black    int64  `json:"black"`
}

// MoveBroadcastPayload carries the committed position to every connection.
type MoveBroadcastPayload struct {
	Position string `json:"position"`
}

// ConnectUserPayload announces the clock start for the side to move.
type ConnectUserPayload struct {
	ClockStart int64 `json:"clock_start"` // unix millis
	Deadline   int64 `json:"deadline"`    // unix millis
}

// GameOverPayload is the terminal broadcast.
type GameOverPayload struct {
	Reason string `json:"reason"`
	Winner string `json:"winner,omitempty"`
}

// ErrorPayload is only ever sent to the offending connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error reason codes.
const (
	CodeIllegalMove = "illegal_move"
	CodeGameOver    = "game_over"
	CodeBadClaim    = "bad_claim"
	CodeRoomFull    = "room_full"
)
