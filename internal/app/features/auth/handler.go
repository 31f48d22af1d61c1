// internal/app/features/auth/handler.go
package auth

import (
	"net/http"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/dalemusser/gatecheck/internal/app/system/httpjson"
	"github.com/dalemusser/gatecheck/internal/app/system/inputval"
	"github.com/dalemusser/gatecheck/internal/app/system/limits"
	"github.com/dalemusser/gatecheck/internal/app/system/ratelimit"
	"github.com/dalemusser/gatecheck/internal/app/system/sanitize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler signs staff devices in and out.
//
// There are no per-user accounts: gate and canteen stations share an
// access key per role, distributed out of band before the event. A
// device presents the key once together with a display name ("Gate 3",
// "Canteen North"); the name ends up on every ledger row the device
// writes, so operators can trace a scan back to a station.
type Handler struct {
	AdminKeyHash string // bcrypt hash, blank disables the role
	StaffKeyHash string
	Limiter      *ratelimit.Limiter
	Log          *zap.Logger
}

// NewHandler constructs the auth Handler with the configured key hashes.
func NewHandler(adminKeyHash, staffKeyHash string, logger *zap.Logger) *Handler {
	return &Handler{
		AdminKeyHash: adminKeyHash,
		StaffKeyHash: staffKeyHash,
		Limiter:      ratelimit.New(10, time.Minute),
		Log:          logger,
	}
}

type loginRequest struct {
	AccessKey  string `json:"access_key"`
	DeviceName string `json:"device_name"`
}

type loginResponse struct {
	ActorID    string `json:"actor_id"`
	DeviceName string `json:"device_name"`
	Role       string `json:"role"`
}

// HandleLogin handles POST /auth/login.
//
// The access key is compared against the admin hash first, then the
// staff hash. Mismatches get a flat 401 with no hint about which role
// the key was close to.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r)
	if !h.Limiter.Allow(ip) {
		h.Log.Warn("login rate limited", zap.String("ip", ip))
		httpjson.Error(w, http.StatusTooManyRequests, "too many sign-in attempts, wait a minute")
		return
	}

	var req loginRequest
	if err := httpjson.Decode(w, r, limits.MaxScanBodySize, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	deviceName := sanitize.Text(req.DeviceName)
	if !inputval.IsValidName(deviceName) {
		httpjson.Error(w, http.StatusBadRequest, "device_name is required")
		return
	}
	if req.AccessKey == "" {
		httpjson.Error(w, http.StatusBadRequest, "access_key is required")
		return
	}

	role := h.matchRole(req.AccessKey)
	if role == "" {
		h.Log.Warn("login failed",
			zap.String("ip", ip),
			zap.String("device_name", deviceName))
		httpjson.Error(w, http.StatusUnauthorized, "invalid access key")
		return
	}

	actor := auth.Actor{
		ID:   uuid.NewString(),
		Name: deviceName,
		Role: role,
	}
	if err := auth.SignIn(w, r, actor); err != nil {
		h.Log.Error("session save failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not establish session")
		return
	}
	h.Limiter.Reset(ip)

	h.Log.Info("device signed in",
		zap.String("actor_id", actor.ID),
		zap.String("device_name", actor.Name),
		zap.String("role", actor.Role))

	httpjson.Write(w, http.StatusOK, loginResponse{
		ActorID:    actor.ID,
		DeviceName: actor.Name,
		Role:       actor.Role,
	})
}

func (h *Handler) matchRole(key string) string {
	if h.AdminKeyHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(h.AdminKeyHash), []byte(key)) == nil {
		return auth.RoleAdmin
	}
	if h.StaffKeyHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(h.StaffKeyHash), []byte(key)) == nil {
		return auth.RoleStaff
	}
	return ""
}

// HandleLogout handles POST /auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if a, ok := auth.CurrentActor(r); ok {
		h.Log.Info("device signed out",
			zap.String("actor_id", a.ID),
			zap.String("device_name", a.Name))
	}
	if err := auth.SignOut(w, r); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "could not clear session")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// HandleMe handles GET /auth/me: the current session's actor.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.CurrentActor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign-in required")
		return
	}
	httpjson.Write(w, http.StatusOK, loginResponse{
		ActorID:    a.ID,
		DeviceName: a.Name,
		Role:       a.Role,
	})
}
