package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/pushgateway"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// Non-delivery reasons reported as results, not errors.
const (
	ReasonNoSubscription = "user_offline_or_no_subscription"
	ReasonPushDisabled   = "push_disabled"
	ReasonEndpointGone   = "endpoint_gone"
)

// PushResult reports the outcome of one push attempt. Delivered=false with a
// Reason is an expected, resolved outcome; errors are reserved for transport
// failures the caller may retry.
type PushResult struct {
	Delivered bool
	Reason    string
}

// Transport sends one notification to one user's push endpoint.
type Transport interface {
	SendToUser(ctx context.Context, userID string, payload model.PushPayload) (PushResult, error)
}

// PushService looks up a user's subscription and dispatches through the push
// gateway. A nil gateway disables the push leg without failing persistent
// delivery.
type PushService struct {
	store   storage.Store
	gateway *pushgateway.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

var _ Transport = (*PushService)(nil)

// NewPushService builds PushService. gateway may be nil when VAPID keys are
// not configured; ratePerSec <= 0 disables rate limiting.
func NewPushService(store storage.Store, gateway *pushgateway.Client, ratePerSec int, log zerolog.Logger) *PushService {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	}
	return &PushService{
		store:   store,
		gateway: gateway,
		limiter: limiter,
		log:     log,
	}
}

// Enabled reports whether the push leg is configured.
func (s *PushService) Enabled() bool {
	return s.gateway != nil
}

// SendToUser delivers one payload to the user's active subscription.
//
// No subscription and a permanently dead endpoint resolve as results, not
// errors. A dead endpoint additionally deactivates the subscription so
// future sends short-circuit cheaply. Transport-level failures return an
// error and leave the subscription untouched; the caller decides whether to
// retry.
func (s *PushService) SendToUser(ctx context.Context, userID string, payload model.PushPayload) (PushResult, error) {
	if s.gateway == nil {
		return PushResult{Delivered: false, Reason: ReasonPushDisabled}, nil
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return PushResult{Delivered: false, Reason: ReasonNoSubscription}, nil
		}
		return PushResult{}, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.Active {
		return PushResult{Delivered: false, Reason: ReasonNoSubscription}, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return PushResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return PushResult{}, err
		}
	}

	err = s.gateway.Push(ctx, sub.Endpoint, body, payload.TTLSeconds)
	if err == nil {
		return PushResult{Delivered: true}, nil
	}

	if errors.Is(err, pushgateway.ErrEndpointGone) {
		s.deactivate(ctx, sub)
		return PushResult{Delivered: false, Reason: ReasonEndpointGone}, nil
	}

	var statusErr *pushgateway.StatusError
	if errors.As(err, &statusErr) {
		// Gateway rejected the payload; resolved, not retried.
		s.log.Warn().Str("user_id", userID).Int("status", statusErr.Code).Msg("push rejected by gateway")
		return PushResult{Delivered: false, Reason: statusErr.Error()}, nil
	}

	return PushResult{}, fmt.Errorf("push send: %w", err)
}

func (s *PushService) deactivate(ctx context.Context, sub *model.PushSubscription) {
	sub.Active = false
	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		s.log.Error().Err(err).Str("user_id", sub.UserID).Msg("deactivate subscription failed")
		return
	}
	s.log.Info().Str("user_id", sub.UserID).Msg("subscription deactivated: endpoint gone")
}

// SaveSubscription registers or replaces a user's push subscription.
func (s *PushService) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if sub.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	sub.Active = true
	return s.store.SaveSubscription(ctx, sub)
}

// RemoveSubscription drops a user's push subscription.
func (s *PushService) RemoveSubscription(ctx context.Context, userID string) error {
	return s.store.DeleteSubscription(ctx, userID)
}
