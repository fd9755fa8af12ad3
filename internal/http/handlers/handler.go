package handlers

import (
	"chess_webapp/internal/config"
	"chess_webapp/internal/repository"
	"chess_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Handler struct {
	DB         *pgxpool.Pool
	Cfg        *config.Config
	Users      *repository.UserRepository
	Games      *repository.GameRepository
	Store      *ws.Store
	Matchmaker *ws.Matchmaker
}

func NewHandler(db *pgxpool.Pool, cfg *config.Config, store *ws.Store, mm *ws.Matchmaker) *Handler {
	return &Handler{
		DB:         db,
		Cfg:        cfg,
		Users:      repository.NewUserRepository(db),
		Games:      repository.NewGameRepository(db),
		Store:      store,
		Matchmaker: mm,
	}
}

func getUserID(c *gin.Context) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
