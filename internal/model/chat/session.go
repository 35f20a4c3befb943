package chat

import "time"

// Session is the backend conversation bound to one display name.
type Session struct {
	ID        string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"createdAt"`
}
