package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openbill/openbill/internal/auth"
	authv1 "github.com/openbill/openbill/internal/http/auth"
	customerv1 "github.com/openbill/openbill/internal/http/customer"
	invoicev1 "github.com/openbill/openbill/internal/http/invoice"
	mw "github.com/openbill/openbill/internal/http/middleware"
	publicv1 "github.com/openbill/openbill/internal/http/public"
	templatev1 "github.com/openbill/openbill/internal/http/template"
	"github.com/openbill/openbill/internal/ratelimit"
)

// Per-user caps for authenticated routes. The email-send cap is tighter
// and applied inside the invoice handler on that route only.
const (
	apiLimit  = 30
	apiWindow = 15 * time.Minute
)

func New(
	authV1 *authv1.Handler,
	invoicesV1 *invoicev1.Handler,
	customersV1 *customerv1.Handler,
	templatesV1 *templatev1.Handler,
	publicV1 *publicv1.Handler,
	tokens *auth.Tokens,
	limiter *ratelimit.Limiter,
	origins []string,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			authV1.Routes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(tokens))
			r.Use(mw.RequireOrigin(origins))

			r.Route("/me", authV1.ProfileRoutes)

			r.Route("/invoices", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				r.Use(mw.RateLimit(limiter, "invoices", apiLimit, apiWindow))
				invoicesV1.Routes(r)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				r.Use(mw.RateLimit(limiter, "customers", apiLimit, apiWindow))
				customersV1.Routes(r)
			})

			r.Route("/templates", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				r.Use(mw.RateLimit(limiter, "templates", apiLimit, apiWindow))
				templatesV1.Routes(r)
			})
		})
	})

	// Token-addressed pages and the payment webhook stay outside the
	// authenticated tree.
	publicV1.Routes(router)

	return router
}
