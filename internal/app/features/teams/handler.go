// internal/app/features/teams/handler.go
package teams

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	eventstore "github.com/dalemusser/gatecheck/internal/app/store/events"
	teamstore "github.com/dalemusser/gatecheck/internal/app/store/teams"
	"github.com/dalemusser/gatecheck/internal/app/system/httpjson"
	"github.com/dalemusser/gatecheck/internal/app/system/inputval"
	"github.com/dalemusser/gatecheck/internal/app/system/limits"
	"github.com/dalemusser/gatecheck/internal/app/system/sanitize"
	"github.com/dalemusser/gatecheck/internal/app/system/timeouts"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxTeamSize caps the roster of a single registration.
const MaxTeamSize = 10

// Handler owns team registration and the admin roster views.
//
// Registration is the one public write surface: anyone with the event
// slug can register a team while the event's registration window is
// open. Everything else is admin-only.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// NewHandler constructs a teams Handler bound to the given Mongo
// database and logger.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:  db,
		Log: logger,
	}
}

type memberRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Affiliation string `json:"affiliation"`
	RollID      string `json:"roll_id"`
}

type registerRequest struct {
	EventSlug string          `json:"event_slug"`
	TeamName  string          `json:"team_name"`
	LeadName  string          `json:"lead_name"`
	LeadEmail string          `json:"lead_email"`
	Members   []memberRequest `json:"members"`
}

// memberTokenView pairs a member with the scan token issued at
// registration. Tokens appear exactly here and in the admin roster
// view; organizers forward them to participants out of band.
type memberTokenView struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type registerResponse struct {
	TeamID   string            `json:"team_id"`
	TeamName string            `json:"team_name"`
	EventID  string            `json:"event_id"`
	Members  []memberTokenView `json:"members"`
}

// HandleRegister handles POST /teams/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(w, r, limits.MaxRegistrationBodySize, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	teamName := sanitize.Text(req.TeamName)
	leadName := sanitize.Text(req.LeadName)
	switch {
	case !inputval.IsValidSlug(req.EventSlug):
		httpjson.Error(w, http.StatusBadRequest, "event_slug is required")
		return
	case !inputval.IsValidName(teamName):
		httpjson.Error(w, http.StatusBadRequest, "team_name is required")
		return
	case !inputval.IsValidName(leadName):
		httpjson.Error(w, http.StatusBadRequest, "lead_name is required")
		return
	case !inputval.IsValidEmail(req.LeadEmail):
		httpjson.Error(w, http.StatusBadRequest, "lead_email is not a valid address")
		return
	case len(req.Members) == 0:
		httpjson.Error(w, http.StatusBadRequest, "at least one member is required")
		return
	case len(req.Members) > MaxTeamSize:
		httpjson.Error(w, http.StatusBadRequest, "too many members")
		return
	}

	members := make([]models.Member, 0, len(req.Members))
	for _, m := range req.Members {
		name := sanitize.Text(m.Name)
		if !inputval.IsValidName(name) {
			httpjson.Error(w, http.StatusBadRequest, "every member needs a name")
			return
		}
		if !inputval.IsValidEmail(m.Email) {
			httpjson.Error(w, http.StatusBadRequest, "member email is not a valid address")
			return
		}
		members = append(members, models.Member{
			Name:        name,
			Email:       m.Email,
			Affiliation: sanitize.Text(m.Affiliation),
			RollID:      sanitize.Text(m.RollID),
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	evStore := eventstore.New(h.DB)
	ev, err := evStore.GetBySlug(ctx, req.EventSlug)
	if err != nil {
		if errors.Is(err, eventstore.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "event not found")
			return
		}
		h.Log.Error("event lookup failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not register team")
		return
	}
	if !ev.RegistrationOpen {
		httpjson.Error(w, http.StatusConflict, "registration is closed for this event")
		return
	}

	team, err := teamstore.New(h.DB).Create(ctx, models.Team{
		EventID:   ev.ID,
		Name:      teamName,
		LeadName:  leadName,
		LeadEmail: req.LeadEmail,
		Members:   members,
	})
	if err != nil {
		if errors.Is(err, teamstore.ErrDuplicateTeam) {
			httpjson.Error(w, http.StatusConflict, "a team with this name or lead email is already registered")
			return
		}
		h.Log.Error("team create failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not register team")
		return
	}

	// The registration counters are advisory; a failed bump is logged
	// and the registration still stands.
	if err := evStore.IncrementStat(ctx, ev.ID, eventstore.StatTeamsRegistered, 1); err != nil {
		h.Log.Error("team counter bump failed", zap.String("event_id", ev.ID.Hex()), zap.Error(err))
	}
	if err := evStore.IncrementStat(ctx, ev.ID, eventstore.StatMembersRegistered, int64(len(team.Members))); err != nil {
		h.Log.Error("member counter bump failed", zap.String("event_id", ev.ID.Hex()), zap.Error(err))
	}

	h.Log.Info("team registered",
		zap.String("event_id", ev.ID.Hex()),
		zap.String("team_id", team.ID.Hex()),
		zap.String("team_name", team.Name),
		zap.Int("members", len(team.Members)))

	httpjson.Write(w, http.StatusCreated, registerResponse{
		TeamID:   team.ID.Hex(),
		TeamName: team.Name,
		EventID:  ev.ID.Hex(),
		Members:  tokenViews(team.Members),
	})
}

type addMemberRequest struct {
	memberRequest
}

// HandleAddMember handles POST /teams/{teamID}/members (admin). Late
// additions bypass the registration window but still respect the team
// size cap.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.teamID(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := httpjson.Decode(w, r, limits.MaxScanBodySize, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	name := sanitize.Text(req.Name)
	if !inputval.IsValidName(name) {
		httpjson.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !inputval.IsValidEmail(req.Email) {
		httpjson.Error(w, http.StatusBadRequest, "email is not a valid address")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	store := teamstore.New(h.DB)
	team, err := store.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, teamstore.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "team not found")
			return
		}
		h.Log.Error("team lookup failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not add member")
		return
	}
	if len(team.Members) >= MaxTeamSize {
		httpjson.Error(w, http.StatusConflict, "team is full")
		return
	}

	member, err := store.AddMember(ctx, teamID, models.Member{
		Name:        name,
		Email:       req.Email,
		Affiliation: sanitize.Text(req.Affiliation),
		RollID:      sanitize.Text(req.RollID),
	})
	if err != nil {
		if errors.Is(err, teamstore.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "team not found")
			return
		}
		h.Log.Error("add member failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not add member")
		return
	}

	if err := eventstore.New(h.DB).IncrementStat(ctx, team.EventID, eventstore.StatMembersRegistered, 1); err != nil {
		h.Log.Error("member counter bump failed", zap.String("event_id", team.EventID.Hex()), zap.Error(err))
	}

	h.Log.Info("member added",
		zap.String("team_id", teamID.Hex()),
		zap.String("member_name", member.Name))

	httpjson.Write(w, http.StatusCreated, memberTokenView{
		Name:  member.Name,
		Email: member.Email,
		Token: member.Token,
	})
}

// rosterMember is the admin roster view of one member, including the
// live check-in state and food scan history.
type rosterMember struct {
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Affiliation string            `json:"affiliation,omitempty"`
	RollID      string            `json:"roll_id,omitempty"`
	Token       string            `json:"token"`
	IsCheckedIn bool              `json:"is_checked_in"`
	CheckInTime *string           `json:"check_in_time,omitempty"`
	FoodScans   []models.FoodScan `json:"food_scans,omitempty"`
}

type rosterResponse struct {
	TeamID    string         `json:"team_id"`
	EventID   string         `json:"event_id"`
	Name      string         `json:"name"`
	LeadName  string         `json:"lead_name"`
	LeadEmail string         `json:"lead_email"`
	Members   []rosterMember `json:"members"`
}

// HandleGet handles GET /teams/{teamID} (admin).
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.teamID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	team, err := teamstore.New(h.DB).GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, teamstore.ErrNotFound) {
			httpjson.Error(w, http.StatusNotFound, "team not found")
			return
		}
		h.Log.Error("team get failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not load team")
		return
	}

	httpjson.Write(w, http.StatusOK, toRoster(team))
}

// HandleList handles GET /teams?event_id=…&limit=…&offset=… (admin).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	eventID, err := primitive.ObjectIDFromHex(query.Get(r, "event_id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "event_id query parameter is required")
		return
	}
	limit, offset := pageParams(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ts, err := teamstore.New(h.DB).ListByEvent(ctx, eventID, limit, offset)
	if err != nil {
		h.Log.Error("team list failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not list teams")
		return
	}

	out := make([]rosterResponse, 0, len(ts))
	for _, team := range ts {
		out = append(out, toRoster(team))
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"teams": out})
}

func (h *Handler) teamID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "teamID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid team id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func tokenViews(members []models.Member) []memberTokenView {
	out := make([]memberTokenView, 0, len(members))
	for _, m := range members {
		out = append(out, memberTokenView{Name: m.Name, Email: m.Email, Token: m.Token})
	}
	return out
}

func toRoster(team models.Team) rosterResponse {
	members := make([]rosterMember, 0, len(team.Members))
	for _, m := range team.Members {
		rm := rosterMember{
			Name:        m.Name,
			Email:       m.Email,
			Affiliation: m.Affiliation,
			RollID:      m.RollID,
			Token:       m.Token,
			IsCheckedIn: m.IsCheckedIn,
			FoodScans:   m.FoodScans,
		}
		if m.CheckInTime != nil {
			s := m.CheckInTime.UTC().Format("2006-01-02T15:04:05.000Z07:00")
			rm.CheckInTime = &s
		}
		members = append(members, rm)
	}
	return rosterResponse{
		TeamID:    team.ID.Hex(),
		EventID:   team.EventID.Hex(),
		Name:      team.Name,
		LeadName:  team.LeadName,
		LeadEmail: team.LeadEmail,
		Members:   members,
	}
}

func pageParams(r *http.Request) (limit, offset int64) {
	limit = 50
	if n, err := strconv.ParseInt(query.Get(r, "limit"), 10, 64); err == nil && n > 0 && n <= 200 {
		limit = n
	}
	if n, err := strconv.ParseInt(query.Get(r, "offset"), 10, 64); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}
