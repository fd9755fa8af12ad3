package domain

import "time"

// Color is a seat in a match.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other seat.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// TerminationReason says how a match ended.
type TerminationReason string

const (
	ReasonCheckmate    TerminationReason = "checkmate"
	ReasonStalemate    TerminationReason = "stalemate"
	ReasonDraw         TerminationReason = "draw"
	ReasonResignation  TerminationReason = "resignation"
	ReasonDisconnected TerminationReason = "user_disconnected"
	ReasonTimeout      TerminationReason = "timeout"
)

// Match is a finished game, as persisted.
type Match struct {
	ID        int64             `db:"id" json:"id"`
	RoomID    string            `db:"room_id" json:"room_id"`
	WhiteID   int64             `db:"white_id" json:"white_id"`
	BlackID   int64             `db:"black_id" json:"black_id"`
	Winner    *Color            `db:"winner" json:"winner,omitempty"` // nil on stalemate/draw
	Reason    TerminationReason `db:"reason" json:"reason"`
	FinalFEN  string            `db:"final_fen" json:"final_fen"`
	MoveCount int               `db:"move_count" json:"move_count"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// WinnerID resolves the winning seat to a user id, nil when drawn.
func (m *Match) WinnerID() *int64 {
	if m.Winner == nil {
		return nil
	}
	id := m.WhiteID
	if *m.Winner == Black {
		id = m.BlackID
	}
	return &id
}
