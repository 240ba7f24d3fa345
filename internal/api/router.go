package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/collabdesk/engine/internal/api/handlers"
	mw "github.com/collabdesk/engine/internal/api/middleware"
)

type Dependencies struct {
	HMACSecret           []byte
	AuthHandler          *handlers.AuthHandler
	UsersHandler         *handlers.UsersHandler
	CollaboratorsHandler *handlers.CollaboratorsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS())
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := handlers.NewHealthHandler()
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	r.Route("/api/v1", func(api chi.Router) {
		// Public routes
		api.Post("/auth/login", dep.AuthHandler.Login)
		api.Post("/users", dep.UsersHandler.Create)

		// Protected routes
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			protected.Post("/auth/logout", dep.AuthHandler.Logout)
			protected.Get("/users", dep.UsersHandler.List)

			protected.Route("/collaborators", func(cr chi.Router) {
				cr.Get("/", dep.CollaboratorsHandler.List)
				cr.Post("/", dep.CollaboratorsHandler.Create)
				cr.Post("/upload", dep.CollaboratorsHandler.Upload)
				cr.Put("/{id}", dep.CollaboratorsHandler.Update)
				cr.Delete("/{id}", dep.CollaboratorsHandler.Delete)
			})
		})
	})

	return r
}
