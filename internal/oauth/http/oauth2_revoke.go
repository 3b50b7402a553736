package http

import (
	"net/http"
	"strings"

	"github.com/copperline/grantd/internal/oauth/service"
	"github.com/copperline/grantd/pkg/httpx"
	"github.com/copperline/grantd/pkg/oauthsdk"
	"github.com/copperline/grantd/pkg/slogx"
)

// RevokeHandler serves POST /v1/oauth2/revoke following RFC 7009. The
// presented value may be an access token or a refresh token; both sides of
// the pair are revoked together. Invalid and unknown tokens still return
// 200 OK to prevent token scanning attacks.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes a previously issued token (RFC 7009)
//	@Description	The endpoint is idempotent and returns 200 OK even for invalid/unknown tokens to prevent token scanning attacks.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Success		200				"Token revoked successfully (or was already invalid)"
//	@Failure		400				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/v1/oauth2/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		oauthsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		oauthsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// Per RFC 7009 the server responds 200 OK even when the token is
	// unknown; only infrastructure failures are logged.
	if err := h.TokenService.Revoke(ctx, token); err != nil {
		log.Warn("revoke failed", "err", err)
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}
