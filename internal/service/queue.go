package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// QueueConfig tunes the queue engine. Zero values fall back to the defaults
// below.
type QueueConfig struct {
	BatchSize         int
	MaxRetries        int
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
	BackoffMultiplier float64
	DefaultTTL        time.Duration
	SentRetention     time.Duration
	ExpiredRetention  time.Duration
	OpLogRetention    time.Duration
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 5 * time.Minute
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 2
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 15 * time.Minute
	}
	if c.SentRetention <= 0 {
		c.SentRetention = 30 * 24 * time.Hour
	}
	if c.ExpiredRetention <= 0 {
		c.ExpiredRetention = 24 * time.Hour
	}
	if c.OpLogRetention <= 0 {
		c.OpLogRetention = 7 * 24 * time.Hour
	}
	return c
}

// EnqueueOptions describes one unit of queue work.
type EnqueueOptions struct {
	UserID     string         `json:"userId"`
	GroupKey   string         `json:"groupKey"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	ActionURL  string         `json:"actionUrl"`
	Data       map[string]any `json:"data"`
	Priority   int            `json:"priority"`
	ScheduleAt time.Time      `json:"scheduleAt"`
	TTL        time.Duration  `json:"-"`
	Replace    bool           `json:"replace"`
	InboxID    string         `json:"inboxId"`
}

// CleanupReport summarises one retention sweep.
type CleanupReport struct {
	ExpiredMarked  int `json:"expiredMarked"`
	EntriesRemoved int `json:"entriesRemoved"`
	OpLogsPurged   int `json:"opLogsPurged"`
}

// QueueService is the durable notification queue engine. It exclusively owns
// the QueueEntry lifecycle; all status mutation goes through its transition
// methods.
type QueueService struct {
	store     storage.Store
	transport Transport
	inbox     InboxWriter
	cfg       QueueConfig
	log       zerolog.Logger

	nudge chan struct{}
	now   func() time.Time
}

// NewQueueService builds the queue engine with its collaborators injected.
func NewQueueService(store storage.Store, transport Transport, inbox InboxWriter, cfg QueueConfig, log zerolog.Logger) *QueueService {
	return &QueueService{
		store:     store,
		transport: transport,
		inbox:     inbox,
		cfg:       cfg.withDefaults(),
		log:       log,
		nudge:     make(chan struct{}, 1),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue validates and persists a new entry with status QUEUED. A due
// entry additionally nudges an out-of-band processing pass; the periodic
// tick remains the reliable path.
func (s *QueueService) Enqueue(ctx context.Context, opts EnqueueOptions) (string, error) {
	if opts.UserID == "" {
		return "", fmt.Errorf("userId is required")
	}
	if opts.Title == "" {
		return "", fmt.Errorf("title is required")
	}
	if opts.Message == "" {
		return "", fmt.Errorf("message is required")
	}
	if opts.Priority == 0 {
		opts.Priority = model.PriorityDefault
	}
	if opts.Priority < model.PriorityMin || opts.Priority > model.PriorityMax {
		return "", fmt.Errorf("priority must be between %d and %d", model.PriorityMin, model.PriorityMax)
	}

	now := s.now()
	if opts.ScheduleAt.IsZero() {
		opts.ScheduleAt = now
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	if opts.Replace && opts.GroupKey != "" {
		removed, err := s.store.DeleteLiveByGroup(ctx, opts.UserID, opts.GroupKey)
		if err != nil {
			return "", fmt.Errorf("replace group entries: %w", err)
		}
		if removed > 0 {
			s.appendLog(ctx, model.OpReplaced, "", map[string]any{
				"userId":   opts.UserID,
				"groupKey": opts.GroupKey,
				"removed":  removed,
			})
		}
	}

	entry := &model.QueueEntry{
		ID:         uuid.New().String(),
		UserID:     opts.UserID,
		GroupKey:   opts.GroupKey,
		Title:      opts.Title,
		Message:    opts.Message,
		ActionURL:  opts.ActionURL,
		Data:       opts.Data,
		Priority:   opts.Priority,
		ScheduleAt: opts.ScheduleAt,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		Status:     model.StatusQueued,
		InboxID:    opts.InboxID,
	}
	if err := s.store.PutQueueEntry(ctx, entry); err != nil {
		return "", fmt.Errorf("store queue entry: %w", err)
	}
	s.appendLog(ctx, model.OpEnqueued, entry.ID, map[string]any{
		"userId":   entry.UserID,
		"priority": entry.Priority,
	})

	if !entry.ScheduleAt.After(now) {
		s.Nudge()
	}
	return entry.ID, nil
}

// Nudge requests a best-effort out-of-band processing pass. Non-blocking; a
// pending nudge absorbs further ones.
func (s *QueueService) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// NudgeChan exposes the nudge signal to the scheduler.
func (s *QueueService) NudgeChan() <-chan struct{} {
	return s.nudge
}

// ProcessTick selects one batch of due entries and processes them
// sequentially. Failure of one entry never aborts the batch; per-entry
// errors are converted into state transitions and log entries.
func (s *QueueService) ProcessTick(ctx context.Context) (int, error) {
	due, err := s.store.SelectDueEntries(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("select due entries: %w", err)
	}
	for _, entry := range due {
		s.processEntry(ctx, entry)
	}
	return len(due), nil
}

func (s *QueueService) processEntry(ctx context.Context, entry *model.QueueEntry) {
	now := s.now()

	// TTL recheck at dispatch time; a long batch can straddle expiry.
	if now.After(entry.ExpiresAt) {
		s.markExpired(ctx, entry)
		return
	}

	entry.Status = model.StatusProcessing
	if err := s.store.PutQueueEntry(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("entry_id", entry.ID).Msg("claim entry failed")
		return
	}

	// The processor guarantees the in-app record regardless of entry
	// origin, even when the smart service already wrote one.
	if entry.InboxID == "" {
		id, err := s.inbox.Create(ctx, &model.InboxRecord{
			UserID:    entry.UserID,
			Title:     entry.Title,
			Message:   entry.Message,
			ActionURL: entry.ActionURL,
			Data:      entry.Data,
		})
		if err != nil {
			s.handleFailure(ctx, entry, fmt.Errorf("write inbox record: %w", err))
			return
		}
		entry.InboxID = id
	}

	result, err := s.transport.SendToUser(ctx, entry.UserID, model.PushPayload{
		Title:      entry.Title,
		Message:    entry.Message,
		ActionURL:  entry.ActionURL,
		Data:       entry.Data,
		TTLSeconds: remainingSeconds(now, entry.ExpiresAt),
	})
	if err != nil {
		s.handleFailure(ctx, entry, err)
		return
	}

	// Reaching the inbox counts as delivery even when push fails; the UI
	// fallback guarantees the user eventually sees it.
	sentAt := s.now()
	entry.Status = model.StatusSent
	entry.SentAt = &sentAt
	if result.Delivered {
		entry.DeliveryMethod = model.DeliveryBoth
		entry.LastError = ""
	} else {
		entry.DeliveryMethod = model.DeliveryDatabase
		entry.LastError = "push: " + result.Reason
	}
	if err := s.store.PutQueueEntry(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("entry_id", entry.ID).Msg("record sent state failed")
		return
	}
	s.appendLog(ctx, model.OpSent, entry.ID, map[string]any{
		"method": entry.DeliveryMethod,
		"reason": result.Reason,
	})
}

func (s *QueueService) handleFailure(ctx context.Context, entry *model.QueueEntry, cause error) {
	entry.RetryCount++
	entry.LastError = cause.Error()

	if entry.RetryCount > s.cfg.MaxRetries {
		failedAt := s.now()
		entry.Status = model.StatusFailed
		entry.FailedAt = &failedAt
		if err := s.store.PutQueueEntry(ctx, entry); err != nil {
			s.log.Error().Err(err).Str("entry_id", entry.ID).Msg("record failed state failed")
			return
		}
		s.appendLog(ctx, model.OpFailed, entry.ID, map[string]any{
			"retryCount": entry.RetryCount,
			"lastError":  entry.LastError,
		})
		s.log.Warn().Str("entry_id", entry.ID).Int("retries", entry.RetryCount-1).Msg("entry permanently failed")
		return
	}

	delay := s.retryDelay(entry.RetryCount)
	entry.Status = model.StatusRetry
	entry.ScheduleAt = s.now().Add(delay)
	if err := s.store.PutQueueEntry(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("entry_id", entry.ID).Msg("record retry state failed")
		return
	}
	s.appendLog(ctx, model.OpRetryScheduled, entry.ID, map[string]any{
		"retryCount": entry.RetryCount,
		"delayMs":    delay.Milliseconds(),
		"lastError":  entry.LastError,
	})
	s.log.Debug().Str("entry_id", entry.ID).Int("attempt", entry.RetryCount).Dur("delay", delay).Msg("retry scheduled")
}

// retryDelay computes the exponential backoff for the given attempt,
// capped at MaxRetryDelay. Attempt numbering starts at 1.
func (s *QueueService) retryDelay(attempt int) time.Duration {
	delay := time.Duration(float64(s.cfg.BaseRetryDelay) * math.Pow(s.cfg.BackoffMultiplier, float64(attempt-1)))
	if delay > s.cfg.MaxRetryDelay || delay <= 0 {
		delay = s.cfg.MaxRetryDelay
	}
	return delay
}

func (s *QueueService) markExpired(ctx context.Context, entry *model.QueueEntry) {
	entry.Status = model.StatusExpired
	if err := s.store.PutQueueEntry(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("entry_id", entry.ID).Msg("record expired state failed")
		return
	}
	s.appendLog(ctx, model.OpExpired, entry.ID, nil)
}

// Cancel moves a QUEUED/RETRY entry to CANCELLED. Cooperative: an entry
// already claimed into PROCESSING completes its current attempt. Safe to
// call repeatedly; a second call is a no-op returning false.
func (s *QueueService) Cancel(ctx context.Context, id string) (bool, error) {
	entry, err := s.store.GetQueueEntry(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !entry.Live() {
		return false, nil
	}
	entry.Status = model.StatusCancelled
	if err := s.store.PutQueueEntry(ctx, entry); err != nil {
		return false, fmt.Errorf("record cancelled state: %w", err)
	}
	s.appendLog(ctx, model.OpCancelled, entry.ID, nil)
	return true, nil
}

// Get returns one entry by ID.
func (s *QueueService) Get(ctx context.Context, id string) (*model.QueueEntry, error) {
	return s.store.GetQueueEntry(ctx, id)
}

// Stats aggregates queue state for operational visibility.
func (s *QueueService) Stats(ctx context.Context) (*model.QueueStats, error) {
	entries, err := s.store.ListQueueEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	stats := &model.QueueStats{
		ByStatus:   map[string]int{},
		ByPriority: map[int]int{},
	}
	sentRetries := 0
	sent := 0
	for _, entry := range entries {
		stats.Total++
		stats.ByStatus[entry.Status]++
		stats.ByPriority[entry.Priority]++
		if entry.Status == model.StatusSent {
			sent++
			sentRetries += entry.RetryCount
			switch entry.DeliveryMethod {
			case model.DeliveryBoth:
				stats.PushDelivered++
			case model.DeliveryDatabase:
				stats.DatabaseOnly++
			}
		}
	}
	if sent > 0 {
		stats.AvgSentRetry = float64(sentRetries) / float64(sent)
	}
	return stats, nil
}

// Cleanup bounds queue growth: live entries past their TTL are marked
// expired; expired entries past their retention and sent entries past the
// 30-day window are removed; old audit records are purged.
func (s *QueueService) Cleanup(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport
	entries, err := s.store.ListQueueEntries(ctx)
	if err != nil {
		return report, fmt.Errorf("list queue entries: %w", err)
	}
	now := s.now()
	for _, entry := range entries {
		switch {
		case entry.Live() && now.After(entry.ExpiresAt):
			s.markExpired(ctx, entry)
			report.ExpiredMarked++
		case entry.Status == model.StatusExpired && now.Sub(entry.ExpiresAt) > s.cfg.ExpiredRetention:
			if err := s.store.DeleteQueueEntry(ctx, entry.ID); err != nil {
				return report, fmt.Errorf("delete expired entry: %w", err)
			}
			report.EntriesRemoved++
		case entry.Status == model.StatusSent && entry.SentAt != nil && now.Sub(*entry.SentAt) > s.cfg.SentRetention:
			if err := s.store.DeleteQueueEntry(ctx, entry.ID); err != nil {
				return report, fmt.Errorf("delete sent entry: %w", err)
			}
			report.EntriesRemoved++
		}
	}
	purged, err := s.store.PurgeOpLogsBefore(ctx, now.Add(-s.cfg.OpLogRetention))
	if err != nil {
		return report, fmt.Errorf("purge op logs: %w", err)
	}
	report.OpLogsPurged = purged

	s.appendLog(ctx, model.OpCleanup, "", map[string]any{
		"expiredMarked":  report.ExpiredMarked,
		"entriesRemoved": report.EntriesRemoved,
		"opLogsPurged":   report.OpLogsPurged,
	})
	return report, nil
}

// appendLog writes an audit record; audit failures are logged, never fatal.
func (s *QueueService) appendLog(ctx context.Context, op, entryID string, data map[string]any) {
	err := s.store.AppendOpLog(ctx, &model.OpLogEntry{
		Operation: op,
		EntryID:   entryID,
		Data:      data,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("append op log failed")
	}
}

func remainingSeconds(now, expiresAt time.Time) int {
	secs := int(expiresAt.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}
