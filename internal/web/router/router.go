// Package router assembles the chi route tree for the API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trellisdata/trellis/internal/web/auth"
	"github.com/trellisdata/trellis/internal/web/handlers"
	"github.com/trellisdata/trellis/internal/web/middleware"
	"github.com/trellisdata/trellis/internal/web/ratelimit"
	"github.com/trellisdata/trellis/internal/web/response"
)

// Dependencies carries everything the route tree needs.
type Dependencies struct {
	Auth        *handlers.AuthHandler
	Collections *handlers.CollectionHandler
	Fields      *handlers.FieldHandler
	Rows        *handlers.RowHandler
	AuthService *auth.Service
	Limiter     ratelimit.Limiter
	Logger      *zap.Logger
}

// New builds the route tree. The auth endpoints are public; everything under
// /api requires a bearer token.
func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	if deps.Limiter != nil {
		r.Use(middleware.RateLimit(deps.Limiter, deps.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", deps.Auth.Register)
		r.Post("/login", deps.Auth.Login)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.AuthService))

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", deps.Collections.List)
			r.Post("/", deps.Collections.Create)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", deps.Collections.Get)
				r.Patch("/", deps.Collections.Update)
				r.Post("/trash", deps.Collections.Trash)
				r.Post("/restore", deps.Collections.Restore)

				r.Route("/fields", func(r chi.Router) {
					r.Post("/", deps.Fields.Create)
					r.Patch("/{fieldID}", deps.Fields.Update)
					r.Post("/{fieldID}/trash", deps.Fields.Trash)
					r.Post("/{fieldID}/restore", deps.Fields.Restore)
				})

				r.Route("/rows", func(r chi.Router) {
					r.Get("/", deps.Rows.List)
					r.Post("/", deps.Rows.Create)
					r.Get("/{id}", deps.Rows.Get)
					r.Patch("/{id}", deps.Rows.Update)
					r.Post("/{id}/trash", deps.Rows.Trash)
					r.Post("/{id}/restore", deps.Rows.Restore)
				})
			})
		})
	})

	return r
}
