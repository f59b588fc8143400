package pushgateway

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrEndpointGone marks a permanent endpoint loss (HTTP 404/410). Retrying
// against such an endpoint is useless; the subscription should be
// deactivated.
var ErrEndpointGone = errors.New("push endpoint gone")

// StatusError is a push rejected by the gateway with a non-success status
// that is not a permanent endpoint loss.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push rejected: status %d", e.Code)
}

// Client posts notification payloads to push endpoints, authenticating with
// VAPID ES256 tokens.
type Client struct {
	http    *http.Client
	key     *ecdsa.PrivateKey
	pubKey  string
	subject string
}

// New creates a push gateway client from a VAPID keypair. The subject is the
// contact URI advertised to the gateway (mailto: or https:).
func New(publicKey, privateKey, subject string, timeout time.Duration) (*Client, error) {
	if publicKey == "" || privateKey == "" {
		return nil, fmt.Errorf("vapid keypair is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("vapid subject is required")
	}
	key, err := parseVAPIDPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		key:     key,
		pubKey:  publicKey,
		subject: subject,
	}, nil
}

// Push posts the payload to the endpoint.
//
// A nil return means the gateway accepted the notification. ErrEndpointGone
// means the endpoint is permanently dead. A *StatusError is a gateway
// rejection; any other error is a transport-level failure the caller may
// retry.
func (c *Client) Push(ctx context.Context, endpoint string, payload []byte, ttlSeconds int) error {
	token, err := c.vapidToken(endpoint)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", strconv.Itoa(ttlSeconds))
	req.Header.Set("Authorization", fmt.Sprintf("vapid t=%s, k=%s", token, c.pubKey))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrEndpointGone
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
}
