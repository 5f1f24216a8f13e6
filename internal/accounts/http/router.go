package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/service"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
	"github.com/aussiebroadwan/clipshare/pkg/httpx"
	"github.com/aussiebroadwan/clipshare/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/clipshare/api/accounts" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

const usersPrefix = "/api/v1/users"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     httpx.AccessVerifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	registry     *prometheus.Registry
	metrics      *httpMetrics

	store          store.Store
	AuthService    *service.AuthService
	ProfileService *service.ProfileService
	Cookies        CookieConfig
	MaxUploadBytes int64
	Limits         httpx.RateLimits

	// Media serves uploaded files under /media/. Only set for the local
	// asset host; S3 assets are served by the bucket.
	Media http.Handler
}

func NewRouter(
	verifier httpx.AccessVerifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	registry *prometheus.Registry,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		registry:     registry,
		metrics:      newHTTPMetrics(registry),
		store:        st,
		Limits:       httpx.DefaultRateLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerSystem()
	r.registerMedia()

	r.Mux.Handle("GET /swagger/",
		httpx.Chain(httpSwagger.Handler(),
			httpx.RateLimitBy(r.Limits.Public, httpx.IPKey),
		),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Clipshare Accounts API
//	@version		0.1.0
//	@description	Account registration, login and session management for clipshare.
//	@description
//	@description				Access tokens are accepted from the accessToken cookie or an Authorization header.
//	@description				Refresh tokens are single use; every refresh returns a new pair.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/clipshare
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern with request metrics labelled by name.
func (r *Router) handle(pattern, name string, h http.Handler, mws ...httpx.Middleware) {
	r.Mux.Handle(pattern, r.metrics.instrument(name, httpx.Chain(h, mws...)))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		Auth:           r.AuthService,
		Profile:        r.ProfileService,
		Cookies:        r.Cookies,
		MaxUploadBytes: r.MaxUploadBytes,
	}
	authn := httpx.AuthnMiddleware(r.verifier)

	// Public credential endpoints. Login is bucketed per IP and account name
	r.handle("POST "+usersPrefix+"/register", "register", http.HandlerFunc(h.Register),
		httpx.RateLimitBy(r.Limits.Credentials, httpx.IPKey),
	)
	r.handle("POST "+usersPrefix+"/login", "login", http.HandlerFunc(h.Login),
		httpx.RateLimitBy(r.Limits.Credentials, httpx.JSONFieldKey("username", "email")),
	)
	r.handle("POST "+usersPrefix+"/refresh-token", "refresh_token", http.HandlerFunc(h.RefreshToken),
		httpx.RateLimitBy(r.Limits.Credentials, httpx.IPKey),
	)

	// Authenticated writes, bucketed per user
	r.handle("POST "+usersPrefix+"/logout", "logout", http.HandlerFunc(h.Logout),
		authn,
		httpx.RateLimitBy(r.Limits.Writes, httpx.SubjectKey),
	)
	r.handle("POST "+usersPrefix+"/change-password", "change_password", http.HandlerFunc(h.ChangePassword),
		authn,
		httpx.RateLimitBy(r.Limits.Credentials, httpx.SubjectKey),
	)
	r.handle("PATCH "+usersPrefix+"/update-account", "update_account", http.HandlerFunc(h.UpdateAccount),
		authn,
		httpx.RateLimitBy(r.Limits.Writes, httpx.SubjectKey),
	)
	r.handle("PATCH "+usersPrefix+"/avatar", "update_avatar", http.HandlerFunc(h.UpdateAvatar),
		authn,
		httpx.RateLimitBy(r.Limits.Writes, httpx.SubjectKey),
	)
	r.handle("PATCH "+usersPrefix+"/cover-image", "update_cover_image", http.HandlerFunc(h.UpdateCoverImage),
		authn,
		httpx.RateLimitBy(r.Limits.Writes, httpx.SubjectKey),
	)

	// Authenticated read, bucketed per user
	r.handle("GET "+usersPrefix+"/current-user", "current_user", http.HandlerFunc(h.CurrentUser),
		authn,
		httpx.RateLimitBy(r.Limits.Reads, httpx.SubjectKey),
	)
}

func (r *Router) registerSystem() {
	// Health checks share the read budget per IP
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitBy(r.Limits.Reads, httpx.IPKey),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitBy(r.Limits.Reads, httpx.IPKey),
		),
	)
	r.Mux.Handle("GET /metrics",
		promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry}),
	)
}

func (r *Router) registerMedia() {
	if r.Media == nil {
		return
	}
	r.Mux.Handle("GET /media/",
		httpx.Chain(http.StripPrefix("/media", r.Media),
			httpx.RateLimitBy(r.Limits.Public, httpx.IPKey),
		),
	)
}
