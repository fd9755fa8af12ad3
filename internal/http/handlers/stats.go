package handlers

import (
	"net/http"

	"chess_webapp/internal/ws"

	"github.com/gin-gonic/gin"
)

// Stats reports how many players are connected right now. The original
// webapp polled this from its landing page.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_users": ws.ConnectedClients(),
		"active_rooms": h.Store.Len(),
	})
}
