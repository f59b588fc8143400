package model

import "time"

// InboxRecord is a persistent in-app notification, independent of any queue
// entry lifecycle. A nil ExpiresAt means the record never ages out of the
// inbox.
type InboxRecord struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"actionUrl,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
}

// Expired reports whether the record has aged out at the given instant.
func (r *InboxRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// InboxStats summarises a user's inbox.
type InboxStats struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}
