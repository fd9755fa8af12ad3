// Package chess wraps the move-legality and game-termination rules behind
// a small oracle API. Positions travel as FEN strings; candidate moves are
// accepted either as UCI ("e2e4", "e7e8q") or as the full FEN the client
// expects after its move.
package chess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chess_webapp/internal/domain"

	nchess "github.com/corentings/chess/v2"
)

// StartingFEN is the canonical initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrBadPosition = errors.New("invalid position")
)

// Move is a candidate move. Exactly one of UCI or Position is used:
// UCI is the preferred form, Position is the client's claimed FEN after
// the move (the original webapp client sends positions, not moves).
type Move struct {
	UCI      string
	Position string
}

// Outcome classifies a position.
type Outcome struct {
	InCheck     bool
	IsCheckmate bool
	IsStalemate bool
	IsDraw      bool
	LegalMoves  []string // UCI
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return nchess.NewGame(opt), nil
}

// SideToMove reports whose turn it is in the given position.
func SideToMove(fen string) (domain.Color, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return "", err
	}
	if game.Position().Turn() == nchess.White {
		return domain.White, nil
	}
	return domain.Black, nil
}

// ApplyMove validates mv against the position in fen and returns the
// canonical FEN after the move. The position is never mutated on error.
func ApplyMove(fen string, mv Move) (string, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return "", err
	}

	if mv.UCI != "" {
		uci := strings.ToLower(strings.TrimSpace(mv.UCI))
		// PushNotationMove only parses the notation, so legality is checked
		// against the generated move list first.
		legal := false
		for _, cand := range legalMovesUCI(game) {
			if cand == uci {
				legal = true
				break
			}
		}
		if !legal {
			return "", ErrIllegalMove
		}
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return "", ErrIllegalMove
		}
		return game.FEN(), nil
	}

	if mv.Position != "" {
		return applyByResult(game, mv.Position)
	}

	return "", ErrIllegalMove
}

// applyByResult finds the unique legal move whose resulting position matches
// the candidate FEN. Only the piece-placement, turn, castling and en passant
// fields are compared; move counters are the server's business.
func applyByResult(game *nchess.Game, candidate string) (string, error) {
	want, err := comparableFEN(candidate)
	if err != nil {
		return "", ErrIllegalMove
	}

	fen := game.FEN()
	for _, legal := range legalMovesUCI(game) {
		trial, err := gameFromFEN(fen)
		if err != nil {
			return "", err
		}
		if err := trial.PushNotationMove(legal, nchess.UCINotation{}, nil); err != nil {
			continue
		}
		got, err := comparableFEN(trial.FEN())
		if err != nil {
			continue
		}
		if got == want {
			return trial.FEN(), nil
		}
	}

	return "", ErrIllegalMove
}

// comparableFEN validates fen and strips it down to the fields worth
// comparing: placement, turn, castling and en passant.
func comparableFEN(fen string) (string, error) {
	if _, err := nchess.FEN(fen); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return "", ErrBadPosition
	}
	return strings.Join(fields[:4], " "), nil
}

// Classify reports check, mate, stalemate, draw and the legal move list
// for the side to move.
func Classify(fen string) (Outcome, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	out.LegalMoves = legalMovesUCI(game)

	switch game.Position().Status() {
	case nchess.Checkmate:
		out.IsCheckmate = true
		out.InCheck = true
	case nchess.Stalemate:
		out.IsStalemate = true
	}

	if !out.IsCheckmate {
		inCheck, err := kingAttacked(fen)
		if err == nil {
			out.InCheck = inCheck
		}
	}

	if !out.IsCheckmate && !out.IsStalemate {
		out.IsDraw = isDrawn(fen, game)
	}

	return out, nil
}

func legalMovesUCI(game *nchess.Game) []string {
	moves := game.ValidMoves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.String())
	}
	return out
}

// kingAttacked detects check by handing the move to the opponent: if any of
// their legal replies lands on the mover's king square, the mover is in check.
func kingAttacked(fen string) (bool, error) {
	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return false, ErrBadPosition
	}

	mover := nchess.White
	flipped := "b"
	if fields[1] == "b" {
		mover = nchess.Black
		flipped = "w"
	}
	fields[1] = flipped
	fields[3] = "-" // en passant is meaningless after a null move

	game, err := gameFromFEN(strings.Join(fields, " "))
	if err != nil {
		return false, err
	}

	var kingSq nchess.Square
	found := false
	for sq, piece := range game.Position().Board().SquareMap() {
		if piece.Type() == nchess.King && piece.Color() == mover {
			kingSq = sq
			found = true
			break
		}
	}
	if !found {
		return false, ErrBadPosition
	}

	for _, mv := range game.ValidMoves() {
		if mv.S2() == kingSq {
			return true, nil
		}
	}
	return false, nil
}

// isDrawn covers the draws detectable from a single position: the
// seventy-five move rule clock and dead material.
func isDrawn(fen string, game *nchess.Game) bool {
	fields := strings.Fields(fen)
	if len(fields) == 6 {
		if halfmoves, err := strconv.Atoi(fields[4]); err == nil && halfmoves >= 100 {
			return true
		}
	}
	return insufficientMaterial(game)
}

func insufficientMaterial(game *nchess.Game) bool {
	var knights, bishops, others int
	for _, piece := range game.Position().Board().SquareMap() {
		switch piece.Type() {
		case nchess.King:
		case nchess.Knight:
			knights++
		case nchess.Bishop:
			bishops++
		default:
			others++
		}
	}
	if others > 0 {
		return false
	}
	// K vs K, K+N vs K, K+B vs K
	return knights+bishops <= 1
}
