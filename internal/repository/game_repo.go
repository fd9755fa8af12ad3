package repository

import (
	"context"
	"fmt"

	"chess_webapp/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type GameRepository struct {
	db *pgxpool.Pool
}

func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) Create(ctx context.Context, m *domain.Match) error {
	var winner *string
	if m.Winner != nil {
		s := string(*m.Winner)
		winner = &s
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO games (room_id, white_id, black_id, winner, reason, final_fen, move_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		m.RoomID,
		m.WhiteID,
		m.BlackID,
		winner,
		string(m.Reason),
		m.FinalFEN,
		m.MoveCount,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (r *GameRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*domain.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, room_id, white_id, black_id, winner, reason, final_fen, move_count, created_at
		 FROM games
		 WHERE white_id = $1 OR black_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var res []*domain.Match
	for rows.Next() {
		var (
			m      domain.Match
			winner *string
			reason string
		)
		if err := rows.Scan(
			&m.ID,
			&m.RoomID,
			&m.WhiteID,
			&m.BlackID,
			&winner,
			&reason,
			&m.FinalFEN,
			&m.MoveCount,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		if winner != nil {
			c := domain.Color(*winner)
			m.Winner = &c
		}
		m.Reason = domain.TerminationReason(reason)
		res = append(res, &m)
	}

	return res, rows.Err()
}
