package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/devshad-01/social-task-notify/internal/model"
)

// AppendOpLog stores an audit record under a monotonic sequence key.
func (s *Store) AppendOpLog(ctx context.Context, entry *model.OpLogEntry) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketOpLog)
		id, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		entry.ID = id
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		return bkt.Put(key, payload)
	})
}

// ListOpLogs returns all audit records.
func (s *Store) ListOpLogs(ctx context.Context) ([]*model.OpLogEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var logs []*model.OpLogEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOpLog).ForEach(func(_, v []byte) error {
			var e model.OpLogEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			logs = append(logs, &e)
			return nil
		})
	})
	return logs, err
}

// PurgeOpLogsBefore deletes audit records created before the cutoff and
// reports how many were removed.
func (s *Store) PurgeOpLogsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	purged := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketOpLog)
		var victims [][]byte
		if err := bkt.ForEach(func(k, v []byte) error {
			var e model.OpLogEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.CreatedAt.Before(cutoff) {
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
		purged = len(victims)
		return nil
	})
	return purged, err
}
