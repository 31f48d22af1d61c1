// internal/app/features/gate/routes.go
package gate

import (
	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the gate-station subrouter. Both roles may scan;
// admins sometimes run a gate from the same device they manage with.
// The status lookup is read-only and stays open so display boards can
// poll it without a session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/status/{token}", h.HandleStatus)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleStaff, auth.RoleAdmin))
		r.Post("/scan", h.HandleScan)
	})
	return r
}
