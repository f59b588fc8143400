package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devshad-01/social-task-notify/internal/config"
	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/service"
	"github.com/devshad-01/social-task-notify/internal/storage/bolt"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := bolt.New(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.HTTP.ReadTimeout = 5 * time.Second
	cfg.HTTP.WriteTimeout = 5 * time.Second
	cfg.Auth.Enabled = true
	cfg.Auth.Username = "admin"
	cfg.Auth.Password = "pass123"
	cfg.Auth.JWTSecret = "test-secret"

	log := zerolog.Nop()
	authSvc := service.NewAuthService(cfg)
	pushSvc := service.NewPushService(store, nil, 0, log)
	inboxSvc := service.NewInboxService(store)
	queueSvc := service.NewQueueService(store, pushSvc, inboxSvc, service.QueueConfig{}, log)
	notifySvc := service.NewNotifyService(queueSvc, inboxSvc, pushSvc, log)
	oplogSvc := service.NewOpLogService(store)

	return New(cfg, notifySvc, queueSvc, inboxSvc, pushSvc, oplogSvc, authSvc, log)
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) (*http.Response, model.BasicResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	var envelope model.BasicResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &envelope))
	}
	return resp, envelope
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	resp, envelope := doJSON(t, s, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "admin",
		"password": "pass123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, model.SuccessCode, envelope.Code)
	data := envelope.Data.(map[string]any)
	token := data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["push"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	resp, _ := doJSON(t, s, http.MethodGet, "/api/queue/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := login(t, s)

	resp, envelope := doJSON(t, s, http.MethodGet, "/api/queue/stats", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.SuccessCode, envelope.Code)

	resp, envelope = doJSON(t, s, http.MethodGet, "/auth/profile", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	profile := envelope.Data.(map[string]any)
	assert.Equal(t, "admin", profile["username"])
}

func TestEnqueueCancelLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp, envelope := doJSON(t, s, http.MethodPost, "/api/queue/enqueue", token, map[string]any{
		"userId":     "u1",
		"title":      "Task assigned",
		"message":    "check it out",
		"priority":   4,
		"scheduleAt": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, model.SuccessCode, envelope.Code)
	entryID := envelope.Data.(map[string]any)["entryId"].(string)
	require.NotEmpty(t, entryID)

	resp, envelope = doJSON(t, s, http.MethodGet, "/api/queue/entry/"+entryID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := envelope.Data.(map[string]any)
	assert.Equal(t, model.StatusQueued, entry["status"])
	assert.Equal(t, float64(4), entry["priority"])

	resp, envelope = doJSON(t, s, http.MethodPost, "/api/queue/cancel/"+entryID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, envelope.Data.(map[string]any)["cancelled"])

	resp, envelope = doJSON(t, s, http.MethodPost, "/api/queue/cancel/"+entryID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, envelope.Data.(map[string]any)["cancelled"])

	resp, _ = doJSON(t, s, http.MethodGet, "/api/queue/entry/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/queue/enqueue", token, map[string]any{
		"userId": "u1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendAndInboxEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp, envelope := doJSON(t, s, http.MethodPost, "/api/notify/send", token, map[string]any{
		"category": "TASK_ASSIGNMENT",
		"userId":   "u1",
		"title":    "New task assigned",
		"message":  "Ana assigned you a task",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, model.SuccessCode, envelope.Code)
	result := envelope.Data.(map[string]any)
	assert.Equal(t, true, result["queued"])
	inboxID := result["inboxId"].(string)
	require.NotEmpty(t, inboxID)

	resp, envelope = doJSON(t, s, http.MethodGet, "/api/inbox/u1", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := envelope.Data.([]any)
	require.Len(t, records, 1)

	resp, envelope = doJSON(t, s, http.MethodGet, "/api/inbox/u1/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := envelope.Data.(map[string]any)
	assert.Equal(t, float64(1), stats["unread"])

	resp, _ = doJSON(t, s, http.MethodPost, "/api/inbox/u1/read/"+inboxID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope = doJSON(t, s, http.MethodGet, "/api/inbox/u1/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats = envelope.Data.(map[string]any)
	assert.Equal(t, float64(0), stats["unread"])

	resp, _ = doJSON(t, s, http.MethodPost, "/api/inbox/u1/read/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubscriptionEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/subscriptions", token, map[string]any{
		"userId":   "u1",
		"endpoint": "https://push.example.com/send/abc",
		"keys":     map[string]string{"auth": "a", "p256dh": "b"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/subscriptions", token, map[string]any{
		"endpoint": "https://push.example.com/send/abc",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/subscriptions/u1", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"Bearer  abc ", "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractBearerToken(tt.header), tt.header)
	}
}

func TestParseTime(t *testing.T) {
	assert.Nil(t, parseTime(""))
	assert.Nil(t, parseTime("garbage"))

	got := parseTime("2026-03-10T12:00:00Z")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), *got)

	assert.NotNil(t, parseTime("2026-03-10 12:00:00"))
	assert.NotNil(t, parseTime("2026-03-10"))
}
