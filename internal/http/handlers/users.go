package handlers

import (
	"net/http"
	"strconv"

	"chess_webapp/internal/domain"

	"github.com/gin-gonic/gin"
)

type CreateUserRequest struct {
	TgID      int64  `json:"tg_id" binding:"required"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// CreateUser registers a user directly, without the initData handshake.
// The original webapp called this from its start page.
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	ctx := c.Request.Context()
	if user, err := h.Users.GetByTgID(ctx, req.TgID); err == nil {
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "created": false})
		return
	}

	user := &domain.User{
		TgID:      req.TgID,
		Username:  req.Username,
		FirstName: req.FirstName,
		Active:    true,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "created": true})
}

// UserExists reports whether a Telegram id is already registered.
func (h *Handler) UserExists(c *gin.Context) {
	tgID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	exists, err := h.Users.Exists(c.Request.Context(), tgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive flips the caller's active flag.
func (h *Handler) SetActive(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req SetActiveRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	if err := h.Users.SetActive(c.Request.Context(), userID, *req.Active); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": *req.Active})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	user, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"tg_id":      user.TgID,
		"username":   user.Username,
		"first_name": user.FirstName,
		"active":     user.Active,
		"created_at": user.CreatedAt,
	})
}
