package bolt

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// SaveSubscription stores a user's push subscription. The user ID is the
// key, so the latest save overwrites any earlier subscription.
func (s *Store) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSubscriptions).Put([]byte(sub.UserID), payload)
	})
}

// GetSubscription fetches the subscription of one user.
func (s *Store) GetSubscription(ctx context.Context, userID string) (*model.PushSubscription, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var sub *model.PushSubscription
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSubscriptions).Get([]byte(userID))
		if raw == nil {
			return nil
		}
		var ps model.PushSubscription
		if err := json.Unmarshal(raw, &ps); err != nil {
			return err
		}
		sub = &ps
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, storage.ErrNotFound
	}
	return sub, nil
}

// DeleteSubscription removes the subscription of one user.
func (s *Store) DeleteSubscription(ctx context.Context, userID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSubscriptions).Delete([]byte(userID))
	})
}
