// Package telegram holds the WebApp initData shapes shared by handlers.
package telegram

import (
	"encoding/json"
	"errors"
	"net/url"
)

// WebAppUser is the user object Telegram embeds in initData.
type WebAppUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// ParseUser extracts the user object from raw initData. Call it only
// after the signature has been verified.
func ParseUser(initData string) (*WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}

	raw := values.Get("user")
	if raw == "" {
		return nil, errors.New("initData has no user")
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	return &user, nil
}
