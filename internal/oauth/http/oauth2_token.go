package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/copperline/grantd/internal/oauth/service"
	"github.com/copperline/grantd/pkg/httpx"
	"github.com/copperline/grantd/pkg/oauthsdk"
	"github.com/copperline/grantd/pkg/slogx"
)

// TokenHandler serves POST /v1/oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	GrantService *service.GrantService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues access and refresh tokens using OAuth2 grant types (authorization_code, token, client_credentials, password, refresh_token).
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, token, client_credentials, password, refresh_token)
//	@Param			client_id		formData	string					true	"Client identifier"
//	@Param			client_secret	formData	string					true	"Client secret"
//	@Param			code			formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI (authorization_code and token grants)"
//	@Param			username		formData	string					false	"Resource owner username (password grant)"
//	@Param			password		formData	string					false	"Resource owner password (password grant)"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			scope			formData	string					false	"Space-delimited list of scopes"
//	@Success		200				{object}	oauthsdk.TokenResponse	"access_token, token_type, expires_in, refresh_token, scope"
//	@Failure		400				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/v1/oauth2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Ensure the right content-type
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		oauthsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	// 3. Hand the whole request to the grant engine; it dispatches per grant
	// type and applies client authentication uniformly.
	req := service.GrantRequest{
		GrantType:    r.Form.Get("grant_type"),
		ClientID:     r.Form.Get("client_id"),
		ClientSecret: r.Form.Get("client_secret"),
		Code:         r.Form.Get("code"),
		RedirectURI:  r.Form.Get("redirect_uri"),
		Username:     r.Form.Get("username"),
		Password:     r.Form.Get("password"),
		RefreshToken: r.Form.Get("refresh_token"),
		Scopes:       httpx.ParseSpaceDelimitedFields(r.Form.Get("scope")),
	}

	pair, err := h.GrantService.ProcessGrantRequest(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			oauthsdk.ErrInvalidRequest.WriteError(w)
		case errors.Is(err, service.ErrInvalidClient):
			oauthsdk.ErrInvalidClient.WriteError(w)
		case errors.Is(err, service.ErrInvalidGrant):
			oauthsdk.ErrInvalidGrant.WriteError(w)
		case errors.Is(err, service.ErrInvalidScope):
			oauthsdk.ErrInvalidScope.WriteError(w)
		case errors.Is(err, service.ErrUnauthorizedClient):
			oauthsdk.ErrUnauthorizedClient.WriteError(w)
		case errors.Is(err, service.ErrUnsupportedGrantType):
			oauthsdk.ErrUnsupportedGrantType.WriteError(w)
		default:
			log.Error("grant processing failed", "grant_type", req.GrantType, "err", err)
			oauthsdk.ErrServerError.WriteError(w)
		}
		return
	}

	response := oauthsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    oauthsdk.TokenTypeBearer,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		RefreshToken: pair.RefreshToken,
		Scope:        strings.TrimSpace(pair.Scope),
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}
