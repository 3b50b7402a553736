package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/copperline/grantd/internal/oauth/service"
	"github.com/copperline/grantd/internal/oauth/store"
	"github.com/copperline/grantd/pkg/httpx"
	"github.com/copperline/grantd/pkg/slogx"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	GrantService     *service.GrantService
	TokenService     *service.TokenService
	AuthorizeService *service.AuthorizeService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
//
//	@title			grantd OAuth2 Grant Processing API
//	@version		0.1.0
//	@description	OAuth2 token issuance and lifecycle service. Access tokens are opaque reference tokens validated by lookup, not signature.
//
//	@contact.name	Copperline Team
//	@contact.url	https://github.com/copperline/grantd
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	// POST /token - strict rate limit (credential bearing, brute forceable)
	r.Mux.Handle("POST /v1/oauth2/token",
		httpx.Chain(&TokenHandler{GrantService: r.GrantService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /authorize - strict as well, it takes resource owner credentials
	r.Mux.Handle("POST /v1/oauth2/authorize",
		httpx.Chain(&AuthorizeHandler{AuthorizeService: r.AuthorizeService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /introspect and /revoke - resource servers call these per request
	r.Mux.Handle("POST /v1/oauth2/introspect",
		httpx.Chain(&IntrospectHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/oauth2/revoke",
		httpx.Chain(&RevokeHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
