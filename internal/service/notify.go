package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/devshad-01/social-task-notify/internal/model"
)

// SendRequest is the public smart-send contract. CustomTTLMinutes > 0
// overrides the resolved TTL and forces the ephemeral path regardless of
// category, bypassing all persistence.
type SendRequest struct {
	Category         string         `json:"category"`
	UserID           string         `json:"userId"`
	Title            string         `json:"title"`
	Message          string         `json:"message"`
	ActionURL        string         `json:"actionUrl"`
	Data             map[string]any `json:"data"`
	Priority         int            `json:"priority"`
	ScheduleAt       time.Time      `json:"scheduleAt"`
	GroupKey         string         `json:"groupKey"`
	Replace          bool           `json:"replace"`
	CustomTTLMinutes int            `json:"customTtlMinutes"`
}

// NotifyService routes a send to either the durable queue (persistent
// categories) or a direct push dispatch (ephemeral categories).
type NotifyService struct {
	queue *QueueService
	inbox *InboxService
	push  Transport
	log   zerolog.Logger
}

// NewNotifyService builds NotifyService.
func NewNotifyService(queue *QueueService, inbox *InboxService, push Transport, log zerolog.Logger) *NotifyService {
	return &NotifyService{queue: queue, inbox: inbox, push: push, log: log}
}

// Send resolves the category strategy and dispatches accordingly.
func (s *NotifyService) Send(ctx context.Context, req SendRequest) (*model.DeliveryResult, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("userId is required")
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	strategy := ResolveStrategy(req.Category)
	if req.CustomTTLMinutes > 0 {
		strategy = Strategy{
			Type:        DeliveryEphemeral,
			TTL:         time.Duration(req.CustomTTLMinutes) * time.Minute,
			ShouldStore: false,
		}
	}

	if strategy.Type == DeliveryPersistent {
		return s.sendPersistent(ctx, req, strategy)
	}
	return s.sendEphemeral(ctx, req, strategy)
}

// sendPersistent writes the in-app record first, so the UI reflects the
// notification even if push never succeeds, then enqueues the push work
// carrying a back-reference to the record.
func (s *NotifyService) sendPersistent(ctx context.Context, req SendRequest, strategy Strategy) (*model.DeliveryResult, error) {
	inboxID, err := s.inbox.Create(ctx, &model.InboxRecord{
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		ActionURL: req.ActionURL,
		Data:      req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("create inbox record: %w", err)
	}

	entryID, err := s.queue.Enqueue(ctx, EnqueueOptions{
		UserID:     req.UserID,
		GroupKey:   req.GroupKey,
		Title:      req.Title,
		Message:    req.Message,
		ActionURL:  req.ActionURL,
		Data:       req.Data,
		Priority:   req.Priority,
		ScheduleAt: req.ScheduleAt,
		TTL:        strategy.TTL,
		Replace:    req.Replace,
		InboxID:    inboxID,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	return &model.DeliveryResult{
		Queued:  true,
		Method:  model.DeliveryDatabase,
		EntryID: entryID,
		InboxID: inboxID,
	}, nil
}

// sendEphemeral dispatches immediately with no persistence and no retry; a
// failed ephemeral send is simply not delivered.
func (s *NotifyService) sendEphemeral(ctx context.Context, req SendRequest, strategy Strategy) (*model.DeliveryResult, error) {
	result, err := s.push.SendToUser(ctx, req.UserID, model.PushPayload{
		Title:      req.Title,
		Message:    req.Message,
		ActionURL:  req.ActionURL,
		Data:       req.Data,
		TTLSeconds: int(strategy.TTL.Seconds()),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", req.UserID).Str("category", req.Category).Msg("ephemeral send failed")
		return &model.DeliveryResult{Delivered: false, Reason: err.Error()}, nil
	}
	return &model.DeliveryResult{
		Delivered: result.Delivered,
		Method:    "push",
		Reason:    result.Reason,
	}, nil
}
