package model

import "time"

// Queue entry lifecycle statuses. Transitions are monotonic:
// queued -> processing -> {sent|retry|failed|expired}, retry -> processing,
// and queued|retry -> cancelled. sent, failed, cancelled and expired are
// terminal.
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusSent       = "SENT"
	StatusRetry      = "RETRY"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
	StatusExpired    = "EXPIRED"
)

// Delivery methods recorded on a sent entry.
const (
	DeliveryBoth     = "both"
	DeliveryDatabase = "database"
)

// Priority bounds. Higher is more urgent.
const (
	PriorityMin     = 1
	PriorityMax     = 5
	PriorityDefault = 3
)

// QueueEntry is a unit of pending notification work owned by the queue engine.
// ExpiresAt is fixed at creation and never extended.
type QueueEntry struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	GroupKey       string         `json:"groupKey,omitempty"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	ActionURL      string         `json:"actionUrl,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Priority       int            `json:"priority"`
	ScheduleAt     time.Time      `json:"scheduleAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
	Status         string         `json:"status"`
	RetryCount     int            `json:"retryCount"`
	LastError      string         `json:"lastError,omitempty"`
	SentAt         *time.Time     `json:"sentAt,omitempty"`
	FailedAt       *time.Time     `json:"failedAt,omitempty"`
	DeliveryMethod string         `json:"deliveryMethod,omitempty"`
	InboxID        string         `json:"inboxId,omitempty"`
}

// Live reports whether the entry can still be claimed by a processing tick.
func (e *QueueEntry) Live() bool {
	return e.Status == StatusQueued || e.Status == StatusRetry
}

// Terminal reports whether the entry has reached a final state.
func (e *QueueEntry) Terminal() bool {
	switch e.Status {
	case StatusSent, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// QueueStats summarises queue state for operational visibility.
type QueueStats struct {
	ByStatus      map[string]int `json:"byStatus"`
	ByPriority    map[int]int    `json:"byPriority"`
	Total         int            `json:"total"`
	PushDelivered int            `json:"pushDelivered"`
	DatabaseOnly  int            `json:"databaseOnly"`
	AvgSentRetry  float64        `json:"avgSentRetry"`
}

// PushPayload is the JSON document posted to a push endpoint.
type PushPayload struct {
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	ActionURL  string         `json:"actionUrl,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	TTLSeconds int            `json:"ttl,omitempty"`
}
