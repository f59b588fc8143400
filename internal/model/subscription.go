package model

import "time"

// SubscriptionKeys carries the client key material of a push subscription.
type SubscriptionKeys struct {
	Auth   string `json:"auth"`
	P256DH string `json:"p256dh"`
}

// PushSubscription is a user's push endpoint. One active subscription per
// user; the latest save wins. Active is flipped false when the gateway
// reports the endpoint permanently gone.
type PushSubscription struct {
	UserID    string           `json:"userId"`
	Endpoint  string           `json:"endpoint"`
	Keys      SubscriptionKeys `json:"keys"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
