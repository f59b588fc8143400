package storage

import (
	"context"
	"time"

	"github.com/devshad-01/social-task-notify/internal/model"
)

// Store abstracts persistence for the four engine collections: queue
// entries, inbox records, push subscriptions and the operation log.
type Store interface {
	// Queue entries.
	PutQueueEntry(ctx context.Context, entry *model.QueueEntry) error
	GetQueueEntry(ctx context.Context, id string) (*model.QueueEntry, error)
	DeleteQueueEntry(ctx context.Context, id string) error
	ListQueueEntries(ctx context.Context) ([]*model.QueueEntry, error)
	// SelectDueEntries returns up to limit entries with status QUEUED or
	// RETRY and scheduleAt <= now, ordered by priority descending then
	// scheduleAt ascending.
	SelectDueEntries(ctx context.Context, now time.Time, limit int) ([]*model.QueueEntry, error)
	// DeleteLiveByGroup removes QUEUED/RETRY entries matching the
	// (userID, groupKey) pair and reports how many were removed.
	DeleteLiveByGroup(ctx context.Context, userID, groupKey string) (int, error)

	// Inbox records.
	PutInboxRecord(ctx context.Context, rec *model.InboxRecord) error
	GetInboxRecord(ctx context.Context, userID, id string) (*model.InboxRecord, error)
	ListInboxRecords(ctx context.Context, userID string) ([]*model.InboxRecord, error)
	ListAllInboxRecords(ctx context.Context) ([]*model.InboxRecord, error)
	DeleteInboxRecord(ctx context.Context, userID, id string) error

	// Push subscriptions, keyed by user. Latest save wins.
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, userID string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, userID string) error

	// Operation log.
	AppendOpLog(ctx context.Context, entry *model.OpLogEntry) error
	ListOpLogs(ctx context.Context) ([]*model.OpLogEntry, error)
	PurgeOpLogsBefore(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}
