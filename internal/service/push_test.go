package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/pushgateway"
)

func testVAPIDKeys(t *testing.T) (public, private string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	return base64.RawURLEncoding.EncodeToString(pub),
		base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))
}

func newTestGateway(t *testing.T) *pushgateway.Client {
	t.Helper()
	pub, priv := testVAPIDKeys(t)
	gw, err := pushgateway.New(pub, priv, "mailto:ops@example.com", 2*time.Second)
	require.NoError(t, err)
	return gw
}

func saveActiveSub(t *testing.T, store *memStore, userID, endpoint string) {
	t.Helper()
	err := store.SaveSubscription(context.Background(), &model.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		Active:   true,
	})
	require.NoError(t, err)
}

func TestSendToUserPushDisabled(t *testing.T) {
	svc := NewPushService(newMemStore(), nil, 0, zerolog.Nop())
	assert.False(t, svc.Enabled())

	res, err := svc.SendToUser(context.Background(), "u1", model.PushPayload{Title: "t"})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, ReasonPushDisabled, res.Reason)
}

func TestSendToUserNoSubscription(t *testing.T) {
	svc := NewPushService(newMemStore(), newTestGateway(t), 0, zerolog.Nop())

	res, err := svc.SendToUser(context.Background(), "nobody", model.PushPayload{Title: "t"})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, ReasonNoSubscription, res.Reason)
}

func TestSendToUserInactiveSubscription(t *testing.T) {
	store := newMemStore()
	err := store.SaveSubscription(context.Background(), &model.PushSubscription{
		UserID:   "u1",
		Endpoint: "https://push.example.com/x",
		Active:   false,
	})
	require.NoError(t, err)

	svc := NewPushService(store, newTestGateway(t), 0, zerolog.Nop())
	res, err := svc.SendToUser(context.Background(), "u1", model.PushPayload{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoSubscription, res.Reason)
}

func TestSendToUserDelivers(t *testing.T) {
	var gotAuth, gotTTL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTTL = r.Header.Get("TTL")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := newMemStore()
	saveActiveSub(t, store, "u1", srv.URL+"/send/abc")
	svc := NewPushService(store, newTestGateway(t), 0, zerolog.Nop())

	res, err := svc.SendToUser(context.Background(), "u1", model.PushPayload{Title: "t", TTLSeconds: 300})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.True(t, strings.HasPrefix(gotAuth, "vapid t="), "got %q", gotAuth)
	assert.Equal(t, "300", gotTTL)
}

func TestSendToUserEndpointGoneDeactivates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	store := newMemStore()
	saveActiveSub(t, store, "u1", srv.URL+"/send/abc")
	svc := NewPushService(store, newTestGateway(t), 0, zerolog.Nop())

	res, err := svc.SendToUser(context.Background(), "u1", model.PushPayload{Title: "t"})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, ReasonEndpointGone, res.Reason)

	sub, err := store.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, sub.Active)

	// later sends short-circuit without hitting the gateway
	res, err = svc.SendToUser(context.Background(), "u1", model.PushPayload{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoSubscription, res.Reason)
}

func TestSendToUserGatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	store := newMemStore()
	saveActiveSub(t, store, "u1", srv.URL+"/send/abc")
	svc := NewPushService(store, newTestGateway(t), 0, zerolog.Nop())

	res, err := svc.SendToUser(context.Background(), "u1", model.PushPayload{Title: "t"})
	require.NoError(t, err, "a gateway rejection resolves, it is not retryable")
	assert.False(t, res.Delivered)
	assert.Contains(t, res.Reason, "413")

	sub, err := store.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, sub.Active, "rejection must not kill the subscription")
}

func TestSendToUserTransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/send/abc"
	srv.Close()

	store := newMemStore()
	saveActiveSub(t, store, "u1", endpoint)
	svc := NewPushService(store, newTestGateway(t), 0, zerolog.Nop())

	_, err := svc.SendToUser(context.Background(), "u1", model.PushPayload{Title: "t"})
	assert.Error(t, err)

	sub, err := store.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, sub.Active)
}

func TestSaveSubscription(t *testing.T) {
	store := newMemStore()
	svc := NewPushService(store, nil, 0, zerolog.Nop())
	ctx := context.Background()

	err := svc.SaveSubscription(ctx, &model.PushSubscription{Endpoint: "https://p.example.com/x"})
	assert.Error(t, err)
	err = svc.SaveSubscription(ctx, &model.PushSubscription{UserID: "u1"})
	assert.Error(t, err)

	err = svc.SaveSubscription(ctx, &model.PushSubscription{UserID: "u1", Endpoint: "https://p.example.com/x"})
	require.NoError(t, err)
	sub, err := store.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, sub.Active)

	// re-registering replaces the endpoint, one subscription per user
	err = svc.SaveSubscription(ctx, &model.PushSubscription{UserID: "u1", Endpoint: "https://p.example.com/y"})
	require.NoError(t, err)
	sub, err = store.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://p.example.com/y", sub.Endpoint)

	require.NoError(t, svc.RemoveSubscription(ctx, "u1"))
	_, err = store.GetSubscription(ctx, "u1")
	assert.Error(t, err)
}
