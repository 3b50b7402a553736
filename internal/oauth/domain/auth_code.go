package domain

import "time"

// AuthCode is a short-lived, single-use credential binding a client, scope,
// redirect URI, and (optionally) an authenticated user. The code value itself
// is stored only as a SHA-256 fingerprint. ConsumedAt is the atomic
// single-use marker: a code is redeemed at most once, ever.
type AuthCode struct {
	ID          string
	ClientID    string
	UserID      *string
	CodeHash    string
	RedirectURI string
	Scopes      []string
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}
