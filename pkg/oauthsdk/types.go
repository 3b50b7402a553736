// Package oauthsdk holds the RFC 6749 wire types and error values shared by
// the HTTP layer and anyone consuming the token endpoint.
package oauthsdk

// TokenResponse is the successful token-endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"` // always "bearer"
	ExpiresIn    int    `json:"expires_in"` // seconds until expiry
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"` // space-delimited
}

// ErrorResponse is the error body returned by the OAuth2 endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenTypeBearer is the only token type this server issues.
const TokenTypeBearer = "bearer"
