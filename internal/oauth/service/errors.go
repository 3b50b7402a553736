package service

import "errors"

// Sentinel errors returned by the services. The HTTP layer matches these with
// errors.Is and maps them onto the RFC 6749 wire errors; anything else is a
// server error. Grant failures are deliberately coarse: expired, consumed,
// and mismatched all surface as ErrInvalidGrant so callers cannot probe which
// check failed.
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrUnauthorizedClient   = errors.New("unauthorized_client")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrTokenInvalid         = errors.New("invalid_token")
)
