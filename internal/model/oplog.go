package model

import "time"

// Queue audit operations.
const (
	OpEnqueued       = "ENQUEUED"
	OpSent           = "SENT"
	OpRetryScheduled = "RETRY_SCHEDULED"
	OpFailed         = "FAILED"
	OpExpired        = "EXPIRED"
	OpCancelled      = "CANCELLED"
	OpReplaced       = "REPLACED"
	OpCleanup        = "CLEANUP"
)

// OpLogEntry is an append-only audit record of a queue operation. It is
// written on every state transition and read back only for coarse statistics.
type OpLogEntry struct {
	ID        uint64         `json:"id"`
	Operation string         `json:"operation"`
	EntryID   string         `json:"entryId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// OpLogFilter describes query parameters for audit log searching.
type OpLogFilter struct {
	Operation string
	EntryID   string
	BeginTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}
