package pushgateway

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// parseVAPIDPrivateKey decodes a base64url-encoded P-256 scalar into an
// ECDSA private key, the format VAPID keypairs are exchanged in.
func parseVAPIDPrivateKey(encoded string) (*ecdsa.PrivateKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("decode vapid private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("vapid private key must be 32 bytes, got %d", len(raw))
	}
	curve := elliptic.P256()
	key := &ecdsa.PrivateKey{}
	key.Curve = curve
	key.D = new(big.Int).SetBytes(raw)
	key.X, key.Y = curve.ScalarBaseMult(raw)
	return key, nil
}

// vapidToken signs a short-lived ES256 token scoped to the endpoint origin.
func (c *Client) vapidToken(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("endpoint must be an absolute URL")
	}
	claims := jwt.MapClaims{
		"aud": parsed.Scheme + "://" + parsed.Host,
		"exp": time.Now().Add(12 * time.Hour).Unix(),
		"sub": c.subject,
	}
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(c.key)
}
