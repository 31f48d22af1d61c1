// internal/app/features/events/handler.go
package events

import (
	"context"
	"errors"
	"net/http"

	eventstore "github.com/dalemusser/gatecheck/internal/app/store/events"
	teamstore "github.com/dalemusser/gatecheck/internal/app/store/teams"
	"github.com/dalemusser/gatecheck/internal/app/system/httpjson"
	"github.com/dalemusser/gatecheck/internal/app/system/inputval"
	"github.com/dalemusser/gatecheck/internal/app/system/limits"
	"github.com/dalemusser/gatecheck/internal/app/system/sanitize"
	"github.com/dalemusser/gatecheck/internal/app/system/timeouts"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns the admin-facing event endpoints: creating events,
// toggling the active and registration flags, and reading stats.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// NewHandler constructs an events Handler bound to the given Mongo
// database and logger.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:  db,
		Log: logger,
	}
}

type createRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// eventResponse is the admin view of an event. It includes the canteen
// token, which the model itself never serializes; admins need it once
// to configure canteen station scanners.
type eventResponse struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	Active           bool              `json:"active"`
	RegistrationOpen bool              `json:"registration_open"`
	CanteenToken     string            `json:"canteen_token,omitempty"`
	Stats            models.EventStats `json:"stats"`
}

func toResponse(ev models.Event, includeToken bool) eventResponse {
	resp := eventResponse{
		ID:               ev.ID.Hex(),
		Name:             ev.Name,
		Slug:             ev.Slug,
		Active:           ev.Active,
		RegistrationOpen: ev.RegistrationOpen,
		Stats:            ev.Stats,
	}
	if includeToken {
		resp.CanteenToken = ev.CanteenToken
	}
	return resp
}

// HandleCreate handles POST /events. The new event starts active with
// registration open, and a fresh canteen token is issued for it.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpjson.Decode(w, r, limits.MaxScanBodySize, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	name := sanitize.Text(req.Name)
	if !inputval.IsValidName(name) {
		httpjson.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !inputval.IsValidSlug(req.Slug) {
		httpjson.Error(w, http.StatusBadRequest, "slug must be lowercase letters, digits, and hyphens")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ev, err := eventstore.New(h.DB).Create(ctx, name, req.Slug)
	if err != nil {
		if errors.Is(err, eventstore.ErrDuplicateSlug) {
			httpjson.Error(w, http.StatusConflict, "an event with this slug already exists")
			return
		}
		h.Log.Error("event create failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not create event")
		return
	}

	h.Log.Info("event created",
		zap.String("event_id", ev.ID.Hex()),
		zap.String("slug", ev.Slug))

	httpjson.Write(w, http.StatusCreated, toResponse(ev, true))
}

// HandleList handles GET /events.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	evs, err := eventstore.New(h.DB).List(ctx, 200)
	if err != nil {
		h.Log.Error("event list failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not list events")
		return
	}

	out := make([]eventResponse, 0, len(evs))
	for _, ev := range evs {
		out = append(out, toResponse(ev, false))
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"events": out})
}

// HandleGet handles GET /events/{eventID}. The stats block carries the
// atomically maintained counters; checked_in_now is recomputed from the
// rosters so operators can spot drift.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ev, err := eventstore.New(h.DB).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, eventstore.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "event not found")
			return
		}
		h.Log.Error("event get failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not load event")
		return
	}

	live, err := teamstore.New(h.DB).CountCheckedIn(ctx, id)
	if err != nil {
		h.Log.Error("checked-in count failed",
			zap.String("event_id", id.Hex()),
			zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not load event")
		return
	}

	resp := struct {
		eventResponse
		CheckedInNow int64 `json:"checked_in_now"`
	}{toResponse(ev, true), live}
	httpjson.Write(w, http.StatusOK, resp)
}

type flagRequest struct {
	Value bool `json:"value"`
}

// HandleSetActive handles POST /events/{eventID}/active. Deactivating
// an event makes every food scan against it ineligible; check-in scans
// are unaffected.
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, "active", eventstore.New(h.DB).SetActive)
}

// HandleSetRegistration handles POST /events/{eventID}/registration.
// Closing registration stops new team sign-ups without touching
// check-in or food scanning.
func (h *Handler) HandleSetRegistration(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, "registration_open", eventstore.New(h.DB).SetRegistrationOpen)
}

func (h *Handler) setFlag(w http.ResponseWriter, r *http.Request, name string, set func(context.Context, primitive.ObjectID, bool) error) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var req flagRequest
	if err := httpjson.Decode(w, r, limits.MaxScanBodySize, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := set(ctx, id, req.Value); err != nil {
		if errors.Is(err, eventstore.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "event not found")
			return
		}
		h.Log.Error("event flag update failed",
			zap.String("event_id", id.Hex()),
			zap.String("flag", name),
			zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not update event")
		return
	}

	h.Log.Info("event flag updated",
		zap.String("event_id", id.Hex()),
		zap.String("flag", name),
		zap.Bool("value", req.Value))

	httpjson.Write(w, http.StatusOK, map[string]any{name: req.Value})
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "eventID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid event id")
		return primitive.NilObjectID, false
	}
	return id, true
}
