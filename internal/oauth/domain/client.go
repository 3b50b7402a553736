package domain

import "time"

// Client is a registered OAuth2 client. Secret holds the stored secret
// column verbatim: either a PHC argon2id hash or a legacy plaintext value,
// distinguished at verification time. RedirectURIs are the exact strings
// registered for the client; request URIs must match one of them exactly.
type Client struct {
	ID           string
	Identifier   string
	Secret       string
	ResponseType string
	RedirectURIs []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRedirectURI reports whether uri exactly matches a registered redirect
// URI. No normalization is applied beyond what registration stored.
func (c Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
