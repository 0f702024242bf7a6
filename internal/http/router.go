package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/maksimzayats/fastdjango/internal/auth"
	"github.com/maksimzayats/fastdjango/internal/http/handlers"
	"github.com/maksimzayats/fastdjango/internal/middleware"
	"github.com/maksimzayats/fastdjango/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	userHandler *handlers.UserHandler,
	jwtService *auth.JWTService,
	userRepo repo.UserRepo,
	throttler *middleware.Throttler,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	authMW := middleware.Auth(jwtService, userRepo)

	r.Route("/v1/users", func(r chi.Router) {
		r.Post("/", userHandler.HandleCreateUser)

		// Token endpoints are unauthenticated and IP-throttled.
		r.Group(func(r chi.Router) {
			r.Use(throttler.ByIP)
			r.Post("/me/token", userHandler.HandleIssueToken)
			r.Post("/me/token/refresh", userHandler.HandleRefreshToken)
		})

		// Revocation requires a valid JWT and is throttled per IP and per
		// user. IP throttling runs before authentication, user throttling
		// after.
		r.Group(func(r chi.Router) {
			r.Use(throttler.ByIP)
			r.Use(authMW)
			r.Use(throttler.ByUser)
			r.Post("/me/token/revoke", userHandler.HandleRevokeToken)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Get("/me", userHandler.HandleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Use(middleware.RequireStaff)
			r.Get("/{id}", userHandler.HandleGetUser)
		})
	})

	return r
}
