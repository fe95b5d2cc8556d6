package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/keyport/keyport/internal/handler"
	"github.com/keyport/keyport/internal/middleware"
	"github.com/keyport/keyport/internal/web"
)

// Routes holds the handlers and middleware settings the router mounts.
type Routes struct {
	Logger *slog.Logger

	Health   *handler.HealthHandler
	Metrics  http.Handler
	Pages    *handler.PageHandler
	Auth     *handler.AuthHandler
	Activity *handler.ActivityHandler
	RPC      *handler.RPCHandler

	Sessions  middleware.SessionSource
	Callbacks middleware.CallbackRememberer

	// TrustProxy rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	Security  middleware.SecurityConfig
	CORS      middleware.CORSConfig
	RateLimit middleware.RateLimitConfig
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	if rt.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(rt.Logger, "/healthz", "/readyz", "/metrics"))
	r.Use(middleware.Recoverer(rt.Logger))
	r.Use(middleware.Security(rt.Security))
	r.Use(middleware.CORS(rt.CORS))
	r.Use(middleware.MaxBodySize(rt.Security.MaxRequestBodySize))
	r.Use(middleware.LoadSession(rt.Sessions, rt.Logger))

	// Probes and metrics (no session required)
	r.Get("/healthz", rt.Health.Healthz)
	r.Get("/readyz", rt.Health.Readyz)
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}

	// Static scripts for the pages
	r.Handle(web.AssetsPrefix+"*", web.Assets())

	// Pages
	r.Get("/auth", rt.Pages.Login)
	r.With(middleware.RequirePage(rt.Callbacks, rt.Logger)).Get("/", rt.Pages.Home)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitIP(rt.RateLimit))
				r.Post("/passkey/registration", rt.Auth.BeginRegistration)
				r.Post("/passkey/assertion", rt.Auth.BeginAssertion)
				r.Post("/signup", rt.Auth.SignUp)
				r.Post("/signin", rt.Auth.SignIn)
			})
			r.Post("/signout", rt.Auth.SignOut)
			r.With(middleware.RequireSession).Get("/session", rt.Auth.Session)
		})

		r.Post("/activity", rt.Activity.Post)

		r.With(middleware.RequireSession, middleware.RateLimitUser(rt.RateLimit)).
			Post("/rpc", rt.RPC.Request)
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}
