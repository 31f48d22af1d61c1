// internal/app/features/gate/handler.go
package gate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/engine"
	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/dalemusser/gatecheck/internal/app/system/httpjson"
	"github.com/dalemusser/gatecheck/internal/app/system/limits"
	"github.com/dalemusser/gatecheck/internal/app/system/timeouts"
	"github.com/dalemusser/gatecheck/internal/app/system/token"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler owns the gate-station endpoints: the check-in scan and the
// read-only member status lookup.
type Handler struct {
	Engine *engine.Engine
	Log    *zap.Logger
}

// NewHandler constructs a gate Handler over the scan engine.
func NewHandler(eng *engine.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		Engine: eng,
		Log:    logger,
	}
}

type scanRequest struct {
	EventID string `json:"event_id"`
	Token   string `json:"token"`
}

type scanResponse struct {
	Status      string  `json:"status"`
	MemberName  string  `json:"member_name,omitempty"`
	TeamName    string  `json:"team_name,omitempty"`
	CheckInTime *string `json:"check_in_time,omitempty"`
	Warning     string  `json:"warning,omitempty"`
}

// HandleScan handles POST /gate/scan.
//
// Rescans of a checked-in token come back 200 with status
// "already_checked_in" and the original check-in time; the gate UI
// shows them as a warning, not an error. Unknown tokens are 404,
// tokens for another event 409.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.CurrentActor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign-in required")
		return
	}

	var req scanRequest
	if err := httpjson.Decode(w, r, limits.MaxScanBodySize, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid event id")
		return
	}
	if !token.IsMemberToken(req.Token) {
		httpjson.Error(w, http.StatusBadRequest, "token is not a member token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Engine.CheckIn(ctx, eventID, req.Token, engine.Actor{ID: actor.ID, Name: actor.Name})
	if err != nil && res.Status == "" {
		h.Log.Error("check-in scan failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "scan failed, try again")
		return
	}

	resp := scanResponse{
		Status:     string(res.Status),
		MemberName: res.Member.Name,
		TeamName:   res.Team.Name,
	}
	if res.CheckInTime != nil {
		resp.CheckInTime = formatTime(res.CheckInTime)
	}
	if err != nil {
		// The transition landed but an auxiliary write (counter or
		// ledger) did not. The scan outcome stands; the station sees
		// the degradation instead of a silent swallow.
		h.Log.Error("check-in completed with degraded bookkeeping", zap.Error(err))
		resp.Warning = "scan recorded, but bookkeeping is degraded"
	}

	switch res.Status {
	case engine.CheckInSuccess, engine.CheckInAlreadyCheckedIn:
		httpjson.Write(w, http.StatusOK, resp)
	case engine.CheckInNotFound:
		httpjson.Write(w, http.StatusNotFound, resp)
	case engine.CheckInWrongEvent:
		httpjson.Write(w, http.StatusConflict, resp)
	default:
		httpjson.Error(w, http.StatusInternalServerError, "scan failed, try again")
	}
}

type statusResponse struct {
	IsCheckedIn bool    `json:"is_checked_in"`
	CheckInTime *string `json:"check_in_time,omitempty"`
	MemberName  string  `json:"member_name"`
	TeamName    string  `json:"team_name"`
}

// HandleStatus handles GET /gate/status/{token}. Read-only; writes no
// ledger row, so display boards can poll it freely.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	if !token.IsMemberToken(tok) {
		httpjson.Error(w, http.StatusBadRequest, "token is not a member token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, err := h.Engine.Status(ctx, tok)
	if err != nil {
		if errors.Is(err, engine.ErrMemberNotFound) {
			httpjson.Error(w, http.StatusNotFound, "no member owns this token")
			return
		}
		h.Log.Error("status lookup failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not load status")
		return
	}

	httpjson.Write(w, http.StatusOK, statusResponse{
		IsCheckedIn: st.IsCheckedIn,
		CheckInTime: formatTime(st.CheckInTime),
		MemberName:  st.MemberName,
		TeamName:    st.TeamName,
	})
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
