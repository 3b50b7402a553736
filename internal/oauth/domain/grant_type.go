package domain

// The closed set of grant type names the server understands. Any request
// naming a type outside this set is rejected before touching per-grant logic.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "token"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// GrantType is a row of the static grant_types reference table, loaded once
// at startup.
type GrantType struct {
	ID   int64
	Name string
}
