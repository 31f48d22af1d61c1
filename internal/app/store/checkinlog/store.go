// internal/app/store/checkinlog/store.go
package checkinlog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Entry-scan outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomeAlreadyCheckedIn = "already_checked_in"
	OutcomeNotFound         = "not_found"
	OutcomeWrongEvent       = "wrong_event"
	OutcomeStorageError     = "storage_error"
)

// Entry is one row of the entry-scan ledger: a record of one check-in
// attempt, whatever its outcome.
//
// Rows are append-only and denormalized on purpose: member name, email
// and team name are copied in as strings at scan time so the row stays
// meaningful even if the team or member is later edited or removed.
// Event and team ids are weak references (nullable for failed lookups),
// never ownership.
type Entry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	EventID *primitive.ObjectID `bson:"event_id,omitempty" json:"event_id,omitempty"`
	TeamID  *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`

	// Snapshot of who was scanned (placeholders when unresolved)
	Token       string `bson:"token" json:"token"`
	MemberName  string `bson:"member_name,omitempty" json:"member_name,omitempty"`
	MemberEmail string `bson:"member_email,omitempty" json:"member_email,omitempty"`
	TeamName    string `bson:"team_name,omitempty" json:"team_name,omitempty"`

	// Outcome
	Outcome string `bson:"outcome" json:"outcome"`
	Reason  string `bson:"reason,omitempty" json:"reason,omitempty"`

	// Who scanned
	ActorID   string `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	ActorName string `bson:"actor_name,omitempty" json:"actor_name,omitempty"`
}

// QueryFilter defines filters for querying the entry-scan ledger.
type QueryFilter struct {
	EventID   *primitive.ObjectID
	TeamID    *primitive.ObjectID
	Token     string
	Outcome   string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store is the append-only entry-scan ledger. It exposes no update or
// delete operations; rows written here are permanent.
type Store struct {
	c *mongo.Collection
}

// New creates a new check-in ledger Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("checkin_log")}
}

// EnsureIndexes creates indexes for the ledger's query surface.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "token", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log appends one entry unconditionally. It fails only when storage is
// unavailable, and that failure surfaces to the caller; it is never
// swallowed.
func (s *Store) Log(ctx context.Context, e Entry) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// Query retrieves ledger rows matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	query := buildQuery(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []Entry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByFilter returns the number of rows matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.EventID != nil {
		query["event_id"] = filter.EventID
	}
	if filter.TeamID != nil {
		query["team_id"] = filter.TeamID
	}
	if filter.Token != "" {
		query["token"] = filter.Token
	}
	if filter.Outcome != "" {
		query["outcome"] = filter.Outcome
	}
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}
