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

// IntrospectHandler serves POST /v1/oauth2/introspect following RFC 7662. An
// invalid, expired, or revoked token answers {"active": false} rather than an
// error, so callers cannot distinguish why a token is unusable.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection Endpoint
//	@Description	Introspects an access token and returns metadata about it (RFC 7662)
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string							true	"The token to introspect"
//	@Param			token_type_hint	formData	string							false	"Hint about token type"	Enums(access_token)
//	@Success		200				{object}	oauthsdk.IntrospectionResponse	"Token introspection result"
//	@Failure		400				{object}	oauthsdk.ErrorResponse			"error, error_description"
//	@Header			200				{string}	Cache-Control					"no-store"
//	@Header			200				{string}	Pragma							"no-cache"
//	@Router			/v1/oauth2/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	info, err := h.TokenService.Validate(ctx, token)
	if err != nil {
		if !errors.Is(err, service.ErrTokenInvalid) {
			log.Error("introspection lookup failed", "err", err)
			oauthsdk.ErrServerError.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, oauthsdk.IntrospectionResponse{Active: false})
		return
	}

	response := oauthsdk.IntrospectionResponse{
		Active:    true,
		Scope:     strings.Join(info.Scopes, " "),
		ClientID:  info.ClientID,
		TokenType: oauthsdk.TokenTypeBearer,
		Exp:       info.ExpiresAt.Unix(),
	}
	if info.UserID != nil {
		response.Sub = *info.UserID
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}
