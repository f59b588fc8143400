package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// InboxWriter is the slice of the inbox the queue processor needs.
type InboxWriter interface {
	Create(ctx context.Context, rec *model.InboxRecord) (string, error)
}

// InboxService owns the persistent in-app notification store. Its records
// live independently of queue entry outcomes: the inbox is the
// guaranteed-visible channel, push is a best-effort accelerant.
type InboxService struct {
	store storage.Store
}

var _ InboxWriter = (*InboxService)(nil)

// NewInboxService builds InboxService.
func NewInboxService(store storage.Store) *InboxService {
	return &InboxService{store: store}
}

// Create persists an in-app record and returns its ID.
func (s *InboxService) Create(ctx context.Context, rec *model.InboxRecord) (string, error) {
	if rec.UserID == "" {
		return "", fmt.Errorf("userId is required")
	}
	if rec.Title == "" {
		return "", fmt.Errorf("title is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.store.PutInboxRecord(ctx, rec); err != nil {
		return "", fmt.Errorf("store inbox record: %w", err)
	}
	return rec.ID, nil
}

// List returns a user's records, newest first, excluding expired ones.
func (s *InboxService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.InboxRecord, error) {
	records, err := s.store.ListInboxRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list inbox records: %w", err)
	}
	now := time.Now().UTC()
	visible := make([]*model.InboxRecord, 0, len(records))
	for _, rec := range records {
		if rec.Expired(now) {
			continue
		}
		if unreadOnly && rec.Read {
			continue
		}
		visible = append(visible, rec)
	}
	sort.Slice(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})
	if limit > 0 && len(visible) > limit {
		visible = visible[:limit]
	}
	return visible, nil
}

// MarkRead flags one record as read.
func (s *InboxService) MarkRead(ctx context.Context, userID, id string) error {
	rec, err := s.store.GetInboxRecord(ctx, userID, id)
	if err != nil {
		return err
	}
	if rec.Read {
		return nil
	}
	now := time.Now().UTC()
	rec.Read = true
	rec.ReadAt = &now
	return s.store.PutInboxRecord(ctx, rec)
}

// MarkAllRead flags every unread record of a user and reports how many.
func (s *InboxService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	records, err := s.store.ListInboxRecords(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	marked := 0
	for _, rec := range records {
		if rec.Read {
			continue
		}
		rec.Read = true
		readAt := now
		rec.ReadAt = &readAt
		if err := s.store.PutInboxRecord(ctx, rec); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// Delete removes one record.
func (s *InboxService) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteInboxRecord(ctx, userID, id)
}

// Stats counts a user's visible records.
func (s *InboxService) Stats(ctx context.Context, userID string) (*model.InboxStats, error) {
	records, err := s.store.ListInboxRecords(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	stats := &model.InboxStats{}
	for _, rec := range records {
		if rec.Expired(now) {
			continue
		}
		stats.Total++
		if !rec.Read {
			stats.Unread++
		}
	}
	return stats, nil
}

// CleanupExpired removes records whose own expiry has passed and reports how
// many were deleted.
func (s *InboxService) CleanupExpired(ctx context.Context) (int, error) {
	records, err := s.store.ListAllInboxRecords(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	removed := 0
	for _, rec := range records {
		if !rec.Expired(now) {
			continue
		}
		if err := s.store.DeleteInboxRecord(ctx, rec.UserID, rec.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
