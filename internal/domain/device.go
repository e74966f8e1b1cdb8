package domain

import (
	"time"
)

// Device is an anonymous dashboard browser, identified by a cookie.
// Credentials are scoped to a device the way browser-local storage is.
type Device struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}
