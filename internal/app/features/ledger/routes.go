// internal/app/features/ledger/routes.go
package ledger

import (
	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the admin reporting subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin))

	r.Get("/checkins", h.HandleCheckins)
	r.Get("/food", h.HandleFood)
	return r
}
