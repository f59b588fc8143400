package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// memStore is an in-memory storage.Store for engine tests.
type memStore struct {
	mu    sync.Mutex
	queue map[string]model.QueueEntry
	inbox map[string]model.InboxRecord
	subs  map[string]model.PushSubscription
	logs  []model.OpLogEntry
	seq   uint64
}

var _ storage.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		queue: map[string]model.QueueEntry{},
		inbox: map[string]model.InboxRecord{},
		subs:  map[string]model.PushSubscription{},
	}
}

func (s *memStore) PutQueueEntry(_ context.Context, entry *model.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[entry.ID] = *entry
	return nil
}

func (s *memStore) GetQueueEntry(_ context.Context, id string) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.queue[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := e
	return &copied, nil
}

func (s *memStore) DeleteQueueEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queue, id)
	return nil
}

func (s *memStore) ListQueueEntries(_ context.Context) ([]*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []*model.QueueEntry
	for _, e := range s.queue {
		copied := e
		entries = append(entries, &copied)
	}
	return entries, nil
}

func (s *memStore) SelectDueEntries(_ context.Context, now time.Time, limit int) ([]*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*model.QueueEntry
	for _, e := range s.queue {
		if !e.Live() || e.ScheduleAt.After(now) {
			continue
		}
		copied := e
		due = append(due, &copied)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ScheduleAt.Before(due[j].ScheduleAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memStore) DeleteLiveByGroup(_ context.Context, userID, groupKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.queue {
		if e.Live() && e.UserID == userID && e.GroupKey == groupKey {
			delete(s.queue, id)
			removed++
		}
	}
	return removed, nil
}

func (s *memStore) PutInboxRecord(_ context.Context, rec *model.InboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox[rec.UserID+"/"+rec.ID] = *rec
	return nil
}

func (s *memStore) GetInboxRecord(_ context.Context, userID, id string) (*model.InboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.inbox[userID+"/"+id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := r
	return &copied, nil
}

func (s *memStore) ListInboxRecords(_ context.Context, userID string) ([]*model.InboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []*model.InboxRecord
	for _, r := range s.inbox {
		if r.UserID == userID {
			copied := r
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (s *memStore) ListAllInboxRecords(_ context.Context) ([]*model.InboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []*model.InboxRecord
	for _, r := range s.inbox {
		copied := r
		records = append(records, &copied)
	}
	return records, nil
}

func (s *memStore) DeleteInboxRecord(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inbox, userID+"/"+id)
	return nil
}

func (s *memStore) SaveSubscription(_ context.Context, sub *model.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.UserID] = *sub
	return nil
}

func (s *memStore) GetSubscription(_ context.Context, userID string) (*model.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := sub
	return &copied, nil
}

func (s *memStore) DeleteSubscription(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, userID)
	return nil
}

func (s *memStore) AppendOpLog(_ context.Context, entry *model.OpLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.ID = s.seq
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *memStore) ListOpLogs(_ context.Context) ([]*model.OpLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var logs []*model.OpLogEntry
	for _, l := range s.logs {
		copied := l
		logs = append(logs, &copied)
	}
	return logs, nil
}

func (s *memStore) PurgeOpLogsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.logs[:0]
	purged := 0
	for _, l := range s.logs {
		if l.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, l)
	}
	s.logs = kept
	return purged, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) queueEntry(id string) (model.QueueEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.queue[id]
	return e, ok
}

func (s *memStore) queueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *memStore) inboxLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbox)
}

// sendOutcome scripts one fakeTransport response.
type sendOutcome struct {
	result PushResult
	err    error
}

// fakeTransport replays scripted outcomes; the last outcome repeats.
type fakeTransport struct {
	mu       sync.Mutex
	outcomes []sendOutcome
	calls    int
	payloads []model.PushPayload
}

var _ Transport = (*fakeTransport)(nil)

func (t *fakeTransport) SendToUser(_ context.Context, _ string, payload model.PushPayload) (PushResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.calls
	t.calls++
	t.payloads = append(t.payloads, payload)
	if len(t.outcomes) == 0 {
		return PushResult{Delivered: true}, nil
	}
	if idx >= len(t.outcomes) {
		idx = len(t.outcomes) - 1
	}
	return t.outcomes[idx].result, t.outcomes[idx].err
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
