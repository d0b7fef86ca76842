package http

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/herdwatch/herdwatch/api/docs" // Swagger docs
	"github.com/herdwatch/herdwatch/internal/herdwatch/metrics"
	"github.com/herdwatch/herdwatch/internal/herdwatch/service"
	"github.com/herdwatch/herdwatch/internal/herdwatch/store"
	"github.com/herdwatch/herdwatch/pkg/httpx"
	"github.com/herdwatch/herdwatch/pkg/slogx"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Store          store.Store
	SessionsPinger store.Pinger // nil when sessions live in Store
	Gate           *service.RequestGate
	AuthService    *service.AuthService
	AccountService *service.AccountService
	Metrics        *metrics.Metrics

	Cookie    CookieConfig
	AccessTTL time.Duration
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	v := newValidator()

	r.registerAuth(&AuthHandler{
		AuthService: r.AuthService,
		Cookie:      r.Cookie,
		AccessTTL:   r.AccessTTL,
		validate:    v,
	})
	r.registerUsers(&UsersHandler{
		AccountService: r.AccountService,
		validate:       v,
	})
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			HerdWatch API
//	@version		0.1.0
//	@description	Accounts, sessions and role-based access for the HerdWatch livestock-health app.
//
//	@contact.name	HerdWatch Team
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured runs authentication before the per-account rate limit so the
// limiter can key on the account.
func (r *Router) secured(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		AuthnMiddleware(r.Gate),
		httpx.RateLimitByAccount(limit),
	)
}

func (r *Router) registerAuth(h *AuthHandler) {
	// Credential endpoints: strict, by IP plus the email being tried.
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /auth/logout", r.secured(h.HandleLogout, httpx.ModerateLimit))
	r.Mux.Handle("POST /auth/logout-all", r.secured(h.HandleLogoutAll, httpx.ModerateLimit))
	r.Mux.Handle("POST /auth/password", r.secured(h.HandleChangePassword, httpx.StrictLimit))
	r.Mux.Handle("GET /auth/me", r.secured(h.HandleMe, httpx.LenientLimit))
}

func (r *Router) registerUsers(h *UsersHandler) {
	r.Mux.Handle("GET /users/me", r.secured(h.HandleGetMe, httpx.LenientLimit))
	r.Mux.Handle("PUT /users/me", r.secured(h.HandleUpdateMe, httpx.ModerateLimit))

	r.Mux.Handle("GET /users", r.secured(h.HandleList, httpx.ModerateLimit))
	r.Mux.Handle("GET /users/{id}", r.secured(h.HandleGet, httpx.ModerateLimit))
	r.Mux.Handle("PUT /users/{id}/verification", r.secured(h.HandleVerification, httpx.ModerateLimit))

	r.Mux.Handle("GET /vets/farmers", r.secured(h.HandleListFarmers, httpx.ModerateLimit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Store, r.SessionsPinger),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", r.Metrics.Handler())
}
