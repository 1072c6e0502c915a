package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/authz"
	"github.com/wardenhq/warden/internal/privilege"
	"github.com/wardenhq/warden/internal/resource"
	"github.com/wardenhq/warden/internal/role"
	"github.com/wardenhq/warden/internal/transport/middleware"
	"github.com/wardenhq/warden/internal/transport/swagger"
	"github.com/wardenhq/warden/internal/user"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth      *auth.Handler
	User      *user.Handler
	Role      *role.Handler
	Privilege *privilege.Handler
	Resource  *resource.Handler
}

// RegisterAllRoutes wires every endpoint onto the router. Management
// endpoints sit behind the admin role gate; resource endpoints are open
// to any authenticated caller, the engine applies per-resource role
// checks itself.
func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, handlers Handlers, gate *authz.Gate, adminRole string, lg *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(lg))
	router.Use(middleware.LoggingMiddleware(lg))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", handlers.Auth.Login)
			sr.Post("/logout", handlers.Auth.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(handlers.Auth.AuthMiddleware)

			pr.Route("/resources/{resource}", func(rr chi.Router) {
				rr.Get("/", handlers.Resource.List)
				rr.Post("/", handlers.Resource.Create)
				rr.Get("/options", handlers.Resource.Options)
				rr.Get("/{id}", handlers.Resource.Get)
				rr.Put("/{id}", handlers.Resource.Update)
				rr.Delete("/{id}", handlers.Resource.Delete)
			})

			// Management routes behind the admin role
			pr.Group(func(mr chi.Router) {
				mr.Use(gate.RequireRole(adminRole))

				mr.Route("/users", func(ur chi.Router) {
					ur.Get("/", handlers.User.List)
					ur.Post("/", handlers.User.Create)
					ur.Get("/{id}", handlers.User.Get)
					ur.Put("/{id}", handlers.User.Update)
					ur.Delete("/{id}", handlers.User.Delete)
					ur.Post("/{id}/suspend", handlers.User.Suspend)
					ur.Post("/{id}/unsuspend", handlers.User.Unsuspend)
					ur.Post("/{id}/logout-all", handlers.User.LogoutAll)
					ur.Post("/{id}/two-factor/reset", handlers.User.ResetTwoFactor)
					ur.Delete("/{id}/roles/{roleID}", handlers.User.RemoveRole)
				})

				mr.Route("/roles", func(rr chi.Router) {
					rr.Get("/", handlers.Role.List)
					rr.Post("/", handlers.Role.Create)
					rr.Get("/{id}", handlers.Role.Get)
					rr.Put("/{id}", handlers.Role.Update)
					rr.Delete("/{id}", handlers.Role.Delete)
					rr.Put("/{id}/privileges/{privilegeID}", handlers.Role.AttachPrivilege)
					rr.Delete("/{id}/privileges/{privilegeID}", handlers.Role.DetachPrivilege)
				})

				mr.Route("/privileges", func(pvr chi.Router) {
					pvr.Get("/", handlers.Privilege.List)
					pvr.Post("/", handlers.Privilege.Create)
					pvr.Post("/purge", handlers.Privilege.Purge)
					pvr.Get("/{id}", handlers.Privilege.Get)
					pvr.Put("/{id}", handlers.Privilege.Update)
					pvr.Delete("/{id}", handlers.Privilege.Delete)
				})
			})
		})
	})
}
