package bolt

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// PutQueueEntry stores or updates a queue entry.
func (s *Store) PutQueueEntry(ctx context.Context, entry *model.QueueEntry) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Put([]byte(entry.ID), payload)
	})
}

// GetQueueEntry fetches an entry by ID.
func (s *Store) GetQueueEntry(ctx context.Context, id string) (*model.QueueEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var entry *model.QueueEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketQueue).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var e model.QueueEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, storage.ErrNotFound
	}
	return entry, nil
}

// DeleteQueueEntry removes an entry by ID.
func (s *Store) DeleteQueueEntry(ctx context.Context, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Delete([]byte(id))
	})
}

// ListQueueEntries returns all queue entries.
func (s *Store) ListQueueEntries(ctx context.Context) ([]*model.QueueEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var entries []*model.QueueEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(_, v []byte) error {
			var e model.QueueEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, &e)
			return nil
		})
	})
	return entries, err
}

// SelectDueEntries returns up to limit QUEUED/RETRY entries whose scheduleAt
// has passed, ordered by priority descending then scheduleAt ascending.
// Entries already past their TTL are still returned; the processor is the
// one that marks them expired.
func (s *Store) SelectDueEntries(ctx context.Context, now time.Time, limit int) ([]*model.QueueEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var due []*model.QueueEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(_, v []byte) error {
			var e model.QueueEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if !e.Live() || e.ScheduleAt.After(now) {
				return nil
			}
			due = append(due, &e)
			return nil
		})
	})
	if err != nil {
		return nil, err
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

// DeleteLiveByGroup removes QUEUED/RETRY entries for the (userID, groupKey)
// pair, implementing latest-wins replacement for grouped notifications.
func (s *Store) DeleteLiveByGroup(ctx context.Context, userID, groupKey string) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketQueue)
		var victims [][]byte
		if err := bkt.ForEach(func(k, v []byte) error {
			var e model.QueueEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Live() && e.UserID == userID && e.GroupKey == groupKey {
				key := make([]byte, len(k))
				copy(key, k)
				victims = append(victims, key)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range victims {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		removed = len(victims)
		return nil
	})
	return removed, err
}
