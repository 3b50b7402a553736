package domain

import "time"

// AccessToken is a stored access/refresh token pair. Token values are opaque
// reference tokens persisted by SHA-256 fingerprint; validation is a store
// lookup, not signature verification. RefreshTokenHash is empty for flows
// that never issue refresh tokens (client_credentials, implicit).
//
// Invariants: token and refresh token fingerprints are globally unique across
// all time; ExpiresAt > IssuedAt; RefreshExpiresAt, when present, is not
// before ExpiresAt. Rows are never mutated after creation except to set
// Revoked.
type AccessToken struct {
	ID               string
	ClientID         string
	GrantID          int64
	UserID           *string
	TokenHash        string
	RefreshTokenHash string
	Scopes           []string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	RefreshExpiresAt *time.Time
	Revoked          bool
}

// HasRefresh reports whether this row carries a refresh token.
func (t AccessToken) HasRefresh() bool { return t.RefreshTokenHash != "" }

// TokenPair is what the token endpoint returns: the raw opaque access token
// and, for flows that allow it, the raw opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Scope        string // space-delimited
}

// TokenInfo is the validator's view of a presented access token.
type TokenInfo struct {
	ClientID     string
	UserID       *string
	Scopes       []string
	ExpiresAt    time.Time
	RemainingTTL time.Duration
}
