// internal/app/features/canteen/routes.go
package canteen

import (
	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the canteen-station subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleStaff, auth.RoleAdmin))

	r.Post("/check", h.HandleCheck)
	r.Post("/distribute", h.HandleDistribute)
	return r
}
