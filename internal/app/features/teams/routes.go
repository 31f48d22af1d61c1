// internal/app/features/teams/routes.go
package teams

import (
	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the teams subrouter. Registration is public (the
// registration_open flag is the gate); roster views and late member
// additions are admin-only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.HandleRegister)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Get("/", h.HandleList)
		r.Get("/{teamID}", h.HandleGet)
		r.Post("/{teamID}/members", h.HandleAddMember)
	})
	return r
}
