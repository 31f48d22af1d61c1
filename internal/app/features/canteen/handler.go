// internal/app/features/canteen/handler.go
package canteen

import (
	"context"
	"net/http"

	"github.com/dalemusser/gatecheck/internal/app/engine"
	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/dalemusser/gatecheck/internal/app/system/httpjson"
	"github.com/dalemusser/gatecheck/internal/app/system/limits"
	"github.com/dalemusser/gatecheck/internal/app/system/sanitize"
	"github.com/dalemusser/gatecheck/internal/app/system/timeouts"
	"github.com/dalemusser/gatecheck/internal/app/system/token"
	"go.uber.org/zap"
)

// Handler owns the canteen-station endpoints. A station is bound to an
// event by its canteen token; each scan presents that token together
// with the member's token.
type Handler struct {
	Engine *engine.Engine
	Log    *zap.Logger
}

// NewHandler constructs a canteen Handler over the scan engine.
func NewHandler(eng *engine.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		Engine: eng,
		Log:    logger,
	}
}

type scanRequest struct {
	CanteenToken string `json:"canteen_token"`
	Token        string `json:"token"`
	Meal         string `json:"meal,omitempty"`
}

type decisionResponse struct {
	Eligible    bool   `json:"eligible"`
	Reason      string `json:"reason,omitempty"`
	Distributed bool   `json:"distributed"`
	MemberName  string `json:"member_name,omitempty"`
	TeamName    string `json:"team_name,omitempty"`
	EventName   string `json:"event_name,omitempty"`
	Warning     string `json:"warning,omitempty"`
}

// HandleCheck handles POST /canteen/check: evaluates eligibility
// without distributing. Both eligible and ineligible decisions are 200;
// the decision is the payload, not an HTTP failure.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	req, actor, ok := h.decodeScan(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	dec, err := h.Engine.Evaluate(ctx, req.CanteenToken, req.Token, actor)
	h.writeDecision(w, dec, false, err)
}

// HandleDistribute handles POST /canteen/distribute: evaluates and,
// when eligible, records the hand-out. Repeated distributions to the
// same member are allowed and each one lands in the scan history;
// portion policy is the operators' call, not the engine's.
func (h *Handler) HandleDistribute(w http.ResponseWriter, r *http.Request) {
	req, actor, ok := h.decodeScan(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	// When the engine returns an eligible decision the hand-out itself
	// landed; a non-nil error alongside it is degraded bookkeeping only.
	dec, err := h.Engine.DistributeFood(ctx, req.CanteenToken, req.Token, sanitize.Text(req.Meal), actor)
	h.writeDecision(w, dec, dec.Eligible, err)
}

func (h *Handler) decodeScan(w http.ResponseWriter, r *http.Request) (scanRequest, engine.Actor, bool) {
	a, ok := auth.CurrentActor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign-in required")
		return scanRequest{}, engine.Actor{}, false
	}

	var req scanRequest
	if err := httpjson.Decode(w, r, limits.MaxScanBodySize, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return scanRequest{}, engine.Actor{}, false
	}

	// Reject garbage tokens before they reach storage. A syntactically
	// valid but unknown canteen token still flows through the engine so
	// the rejection lands in the food ledger.
	if !token.IsCanteenToken(req.CanteenToken) && req.CanteenToken != "" {
		httpjson.Error(w, http.StatusBadRequest, "canteen_token is not a canteen token")
		return scanRequest{}, engine.Actor{}, false
	}
	if !token.IsMemberToken(req.Token) {
		httpjson.Error(w, http.StatusBadRequest, "token is not a member token")
		return scanRequest{}, engine.Actor{}, false
	}

	return req, engine.Actor{ID: a.ID, Name: a.Name}, true
}

func (h *Handler) writeDecision(w http.ResponseWriter, dec engine.Decision, distributed bool, err error) {
	if err != nil && !dec.Eligible && dec.Reason == "" {
		h.Log.Error("canteen scan failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "scan failed, try again")
		return
	}

	resp := decisionResponse{
		Eligible:    dec.Eligible,
		Reason:      dec.Reason,
		Distributed: distributed,
		MemberName:  dec.Member.Name,
		TeamName:    dec.Team.Name,
		EventName:   dec.Event.Name,
	}
	if err != nil {
		h.Log.Error("canteen scan completed with degraded bookkeeping", zap.Error(err))
		resp.Warning = "scan recorded, but bookkeeping is degraded"
	}
	httpjson.Write(w, http.StatusOK, resp)
}
