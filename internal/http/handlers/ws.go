package handlers

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"chess_webapp/internal/logger"
	"chess_webapp/internal/service"
	"chess_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func wsUpgrader() websocket.Upgrader {
	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
}

// wsIdentity resolves the caller from a JWT in the query string, falling
// back to a plain user_id param (the original webapp client sent one).
func wsIdentity(c *gin.Context) (int64, bool) {
	if token := c.Query("token"); token != "" {
		userID, err := service.ParseJWT(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return 0, false
		}
		return userID, true
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return 0, false
		}
		return userID, true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
	return 0, false
}

// Play attaches a player (or a spectator with watch=1) to a room.
func (h *Handler) Play(c *gin.Context) {
	roomID := c.Query("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id required"})
		return
	}
	userID, ok := wsIdentity(c)
	if !ok {
		return
	}
	watch := c.Query("watch") == "1"

	var sess *ws.Session
	if watch {
		existing, found := h.Store.Get(roomID)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		sess = existing
	} else {
		sess = h.Store.GetOrCreate(roomID)
	}

	upgrader := wsUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := ws.NewClient(userID, conn)
	go client.Run(sess, watch)
}

// Search puts the caller in the open matchmaking queue and holds the
// socket until an opponent shows up.
func (h *Handler) Search(c *gin.Context) {
	userID, ok := wsIdentity(c)
	if !ok {
		return
	}

	ticket, err := h.Matchmaker.Enqueue(userID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already queued"})
		return
	}

	h.holdForMatch(c, ticket)
}

// Lobby waits in a private room. The first caller creates it, the second
// completes the pair.
func (h *Handler) Lobby(c *gin.Context) {
	roomID := c.Query("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id required"})
		return
	}
	userID, ok := wsIdentity(c)
	if !ok {
		return
	}

	ticket, err := h.Matchmaker.JoinLobby(roomID, userID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already queued"})
		return
	}

	h.holdForMatch(c, ticket)
}

// holdForMatch upgrades the socket and parks it until the ticket resolves
// or the client hangs up.
func (h *Handler) holdForMatch(c *gin.Context, ticket *ws.MatchTicket) {
	upgrader := wsUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Matchmaker.Cancel(ticket)
		logger.Warn("ws upgrade failed", "error", err)
		return
	}

	go func() {
		defer conn.Close()

		// reader only detects the client going away
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(25 * time.Second)
		defer ping.Stop()

		for {
			select {
			case payload := <-ticket.Result:
				frame, err := ws.EncodeEnvelope(ws.TypeStartGame, payload)
				if err == nil {
					_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					_ = conn.WriteMessage(websocket.TextMessage, frame)
				}
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "matched"))
				return
			case <-gone:
				h.Matchmaker.Cancel(ticket)
				return
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.Matchmaker.Cancel(ticket)
					return
				}
			}
		}
	}()
}
