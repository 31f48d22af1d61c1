// internal/app/features/events/routes.go
package events

import (
	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the admin event-management subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin))

	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Get("/{eventID}", h.HandleGet)
	r.Post("/{eventID}/active", h.HandleSetActive)
	r.Post("/{eventID}/registration", h.HandleSetRegistration)
	return r
}
