package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/handlers"
	"github.com/hmarchena/gatewarden/internal/middleware"
	pkghttp "github.com/hmarchena/gatewarden/pkg/http"
)

// Handlers bundles everything SetupRoutes wires into the router.
type Handlers struct {
	Gateway       *middleware.Gateway
	Query         *handlers.QueryHandler
	Tokens        *handlers.TokenHandler
	Admin         *handlers.AdminHandler
	Session       *auth.SessionValidator
	Health        http.HandlerFunc
	RequestLogger func(http.Handler) http.Handler
	IPConfig      *pkghttp.IPConfig
}

// SetupRoutes builds the full router: the gateway-protected query surface and
// the session-protected management surface.
func SetupRoutes(h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// No chi RealIP here: it rewrites RemoteAddr from forwarding headers
	// without any trust check, which would let a blocked client pick its own
	// address. Client IPs come only from ExtractClientIP, which honors
	// forwarding headers solely behind a trusted proxy.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	if h.RequestLogger != nil {
		r.Use(h.RequestLogger)
	}

	r.Get("/health", h.Health)

	// Query surface: every request passes the four-stage admission pipeline.
	r.Group(func(r chi.Router) {
		r.Use(h.Gateway.Admit)
		r.Handle("/v1/query", http.HandlerFunc(h.Query.Forward))
		r.Handle("/v1/query/*", http.HandlerFunc(h.Query.Forward))
	})

	// Management surface: JWT sessions plus a volumetric backstop. Quotas do
	// not apply here.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(middleware.DefaultManagementRateLimit(), h.IPConfig))
		r.Use(auth.SessionMiddleware(h.Session))

		r.Route("/v1/tokens", func(r chi.Router) {
			r.Post("/", h.Tokens.Issue)
			r.Get("/", h.Tokens.List)
			r.Delete("/{id}", h.Tokens.Revoke)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))

			r.Post("/blocks", h.Admin.CreateBlock)
			r.Get("/blocks", h.Admin.ListBlocks)
			r.Get("/events", h.Admin.ListEvents)
			r.Post("/events/{id}/resolve", h.Admin.ResolveEvent)
			r.Get("/attacks", h.Admin.ListAttacks)
		})
	})

	return r
}
