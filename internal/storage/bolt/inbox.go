package bolt

import (
	"bytes"
	"context"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// Inbox records are keyed "<userID>/<recordID>" so a user's records sit in
// one contiguous key range.
func inboxKey(userID, id string) []byte {
	return []byte(userID + "/" + id)
}

// PutInboxRecord stores or updates an inbox record.
func (s *Store) PutInboxRecord(ctx context.Context, rec *model.InboxRecord) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInbox).Put(inboxKey(rec.UserID, rec.ID), payload)
	})
}

// GetInboxRecord fetches one record.
func (s *Store) GetInboxRecord(ctx context.Context, userID, id string) (*model.InboxRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var rec *model.InboxRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketInbox).Get(inboxKey(userID, id))
		if raw == nil {
			return nil
		}
		var r model.InboxRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// ListInboxRecords returns all records of one user.
func (s *Store) ListInboxRecords(ctx context.Context, userID string) ([]*model.InboxRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	prefix := []byte(userID + "/")
	var records []*model.InboxRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketInbox).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r model.InboxRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, &r)
		}
		return nil
	})
	return records, err
}

// ListAllInboxRecords returns every record across users, used by the sweeper.
func (s *Store) ListAllInboxRecords(ctx context.Context) ([]*model.InboxRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var records []*model.InboxRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInbox).ForEach(func(_, v []byte) error {
			var r model.InboxRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, &r)
			return nil
		})
	})
	return records, err
}

// DeleteInboxRecord removes one record.
func (s *Store) DeleteInboxRecord(ctx context.Context, userID, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInbox).Delete(inboxKey(userID, id))
	})
}
