package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/copperline/grantd/internal/oauth/service"
	"github.com/copperline/grantd/pkg/httpx"
	"github.com/copperline/grantd/pkg/oauthsdk"
	"github.com/copperline/grantd/pkg/slogx"
)

// AuthorizeHandler serves POST /v1/oauth2/authorize. The resource owner's
// credentials arrive in the form body (a trusted first-party login page posts
// here); on success the caller is redirected to the registered redirect URI
// with the single-use code and any state echoed back.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Authorization Endpoint
//	@Description	Authenticates the resource owner and issues a single-use authorization code bound to the client and redirect URI.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			response_type	formData	string	true	"Must be 'code'"
//	@Param			client_id		formData	string	true	"Client identifier"
//	@Param			redirect_uri	formData	string	true	"Registered redirect URI (exact match)"
//	@Param			scope			formData	string	false	"Space-delimited list of scopes"
//	@Param			state			formData	string	false	"Opaque client state, echoed back on the redirect"
//	@Param			username		formData	string	true	"Resource owner username"
//	@Param			password		formData	string	true	"Resource owner password"
//	@Success		302				"Redirect to redirect_uri with code and state query parameters"
//	@Failure		400				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Failure		403				{object}	oauthsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/oauth2/authorize [post].
func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	req := service.AuthorizeRequest{
		ResponseType: r.Form.Get("response_type"),
		ClientID:     r.Form.Get("client_id"),
		RedirectURI:  r.Form.Get("redirect_uri"),
		Scopes:       httpx.ParseSpaceDelimitedFields(r.Form.Get("scope")),
		Username:     r.Form.Get("username"),
		Password:     r.Form.Get("password"),
	}

	res, err := h.AuthorizeService.IssueAuthorizationCode(ctx, req)
	if err != nil {
		// Client and redirect URI problems must never redirect (RFC 6749
		// section 4.1.2.1); they answer directly.
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			oauthsdk.ErrInvalidRequest.WriteError(w)
		case errors.Is(err, service.ErrInvalidClient):
			oauthsdk.ErrInvalidClient.WriteError(w)
		case errors.Is(err, service.ErrUnsupportedGrantType),
			errors.Is(err, service.ErrUnauthorizedClient):
			oauthsdk.ErrUnauthorizedClient.WriteError(w)
		case errors.Is(err, service.ErrInvalidCredentials):
			oauthsdk.ErrAccessDenied.WriteError(w)
		default:
			log.Error("authorization failed", "err", err)
			oauthsdk.ErrServerError.WriteError(w)
		}
		return
	}

	target, err := url.Parse(res.RedirectURI)
	if err != nil {
		log.Error("registered redirect uri does not parse", "err", err)
		oauthsdk.ErrServerError.WriteError(w)
		return
	}

	query := target.Query()
	query.Set("code", res.Code)
	if state := r.Form.Get("state"); state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()

	httpx.NoCache(w)
	http.Redirect(w, r, target.String(), http.StatusFound)
}
