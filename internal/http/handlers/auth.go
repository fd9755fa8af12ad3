package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"chess_webapp/internal/domain"
	"chess_webapp/internal/service"
	"chess_webapp/internal/telegram"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	InitData string `json:"init_data"`
}

// Auth validates Telegram initData, upserts the user and issues a JWT.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	if len(req.InitData) > 4096 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init_data too long"})
		return
	}

	var tgUser telegram.WebAppUser

	// DEV_MODE skips signature validation for local frontend work
	if os.Getenv("DEV_MODE") == "true" {
		tgUser = telegram.WebAppUser{ID: 12345, Username: "testuser", FirstName: "Test"}
		_ = json.Unmarshal([]byte(req.InitData), &tgUser)
	} else {
		if _, ok := service.ValidateTelegramInitData(req.InitData, h.Cfg.BotToken); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or stale telegram data"})
			return
		}
		parsed, err := telegram.ParseUser(req.InitData)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user json"})
			return
		}
		tgUser = *parsed
	}

	ctx := c.Request.Context()
	user, err := h.Users.GetByTgID(ctx, tgUser.ID)
	if err != nil {
		user = &domain.User{
			TgID:      tgUser.ID,
			Username:  tgUser.Username,
			FirstName: tgUser.FirstName,
			Active:    true,
		}
		if err := h.Users.Create(ctx, user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
	}

	token, err := service.GenerateJWT(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":         user.ID,
			"tg_id":      user.TgID,
			"username":   user.Username,
			"first_name": user.FirstName,
		},
	})
}
