// internal/app/features/ledger/handler.go
package ledger

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/store/checkinlog"
	"github.com/dalemusser/gatecheck/internal/app/store/foodlog"
	"github.com/dalemusser/gatecheck/internal/app/system/httpjson"
	"github.com/dalemusser/gatecheck/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns the reporting endpoints over the two scan ledgers.
// Reads only; nothing here can alter a ledger row.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// NewHandler constructs a ledger Handler bound to the given Mongo
// database and logger.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:  db,
		Log: logger,
	}
}

// HandleCheckins handles GET /ledger/checkins.
//
// Filters: event_id, team_id, token, outcome, start, end (RFC 3339),
// limit, offset. Rows come back newest first with a total count for
// the filter.
func (h *Handler) HandleCheckins(w http.ResponseWriter, r *http.Request) {
	filter := checkinlog.QueryFilter{
		Token:   query.Get(r, "token"),
		Outcome: query.Get(r, "outcome"),
	}
	var ok bool
	if filter.EventID, ok = objectIDParam(w, r, "event_id"); !ok {
		return
	}
	if filter.TeamID, ok = objectIDParam(w, r, "team_id"); !ok {
		return
	}
	if filter.StartTime, ok = timeParam(w, r, "start"); !ok {
		return
	}
	if filter.EndTime, ok = timeParam(w, r, "end"); !ok {
		return
	}
	filter.Limit, filter.Offset = pageParams(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	store := checkinlog.New(h.DB)
	entries, err := store.Query(ctx, filter)
	if err != nil {
		h.Log.Error("check-in ledger query failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not query ledger")
		return
	}
	total, err := store.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("check-in ledger count failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not query ledger")
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// HandleFood handles GET /ledger/food.
//
// Same filters as the check-in ledger plus meal and eligible.
func (h *Handler) HandleFood(w http.ResponseWriter, r *http.Request) {
	filter := foodlog.QueryFilter{
		Token: query.Get(r, "token"),
		Meal:  query.Get(r, "meal"),
	}
	var ok bool
	if filter.EventID, ok = objectIDParam(w, r, "event_id"); !ok {
		return
	}
	if filter.TeamID, ok = objectIDParam(w, r, "team_id"); !ok {
		return
	}
	if filter.StartTime, ok = timeParam(w, r, "start"); !ok {
		return
	}
	if filter.EndTime, ok = timeParam(w, r, "end"); !ok {
		return
	}
	if v := query.Get(r, "eligible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "eligible must be true or false")
			return
		}
		filter.Eligible = &b
	}
	filter.Limit, filter.Offset = pageParams(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	store := foodlog.New(h.DB)
	entries, err := store.Query(ctx, filter)
	if err != nil {
		h.Log.Error("food ledger query failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not query ledger")
		return
	}
	total, err := store.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("food ledger count failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not query ledger")
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func objectIDParam(w http.ResponseWriter, r *http.Request, name string) (*primitive.ObjectID, bool) {
	v := query.Get(r, name)
	if v == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(v)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, name+" is not a valid id")
		return nil, false
	}
	return &id, true
}

func timeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	v := query.Get(r, name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, name+" must be an RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}

func pageParams(r *http.Request) (limit, offset int64) {
	limit = 100
	if n, err := strconv.ParseInt(query.Get(r, "limit"), 10, 64); err == nil && n > 0 && n <= 500 {
		limit = n
	}
	if n, err := strconv.ParseInt(query.Get(r, "offset"), 10, 64); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}
