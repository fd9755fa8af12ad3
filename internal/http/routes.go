package http

import (
	"time"

	"chess_webapp/internal/config"
	"chess_webapp/internal/http/handlers"
	"chess_webapp/internal/http/middleware"
	"chess_webapp/internal/repository"
	"chess_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes wires the API and returns the session store so main can
// drain it on shutdown.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, cfg *config.Config, version string) *ws.Store {
	wsCfg := ws.Config{
		TurnTime:         cfg.TurnTime,
		TimeoutPolicy:    cfg.TimeoutPolicy,
		ReconnectGrace:   cfg.ReconnectGrace,
		AwaitingTimeout:  cfg.AwaitingTimeout,
		EvictAfter:       cfg.SessionEvictsIn,
		FirstPlayerColor: cfg.FirstPlayerColor,
	}
	store := ws.NewStore(wsCfg, repository.NewGameRepository(db))
	store.StartSweep(10 * time.Minute)

	mm := ws.NewMatchmaker(store, wsCfg)

	h := handlers.NewHandler(db, cfg, store, mm)
	healthHandler := handlers.NewHealthHandler(db, version)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))

	// Auth and users
	v1.POST("/auth", h.Auth)
	v1.POST("/user/create", h.CreateUser)
	v1.GET("/user/exists/:id", h.UserExists)
	v1.PATCH("/user/active", middleware.JWT(), h.SetActive)
	v1.GET("/me", middleware.JWT(), h.Me)
	v1.GET("/me/games", middleware.JWT(), h.MyGames)

	// Landing page stats
	v1.GET("/stats/all", h.Stats)

	// Game sockets
	v1.GET("/play", h.Play)
	v1.GET("/search", h.Search)
	v1.GET("/room/ws", h.Lobby)

	return store
}
