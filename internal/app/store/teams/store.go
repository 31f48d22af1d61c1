// internal/app/store/teams/store.go
package teams

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/system/token"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound       = errors.New("team not found")
	ErrMemberNotFound = errors.New("no member owns this token")
	ErrDuplicateTeam  = errors.New("a team with this name or lead already exists for the event")
)

// Store manages team aggregates. Members live inside their team
// document; the member scan token is the only external lookup key.
type Store struct {
	c *mongo.Collection
}

// New creates a new teams Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("teams")}
}

// EnsureIndexes creates the uniqueness indexes for team aggregates.
// The multikey index on members.token enforces global token uniqueness
// across every team and event.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "name_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_teams_event_name").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "lead_email_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_teams_event_lead").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "members.token", Value: 1}},
			Options: options.Index().SetName("idx_teams_member_token").SetUnique(true),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a team and issues a scan token for every member.
// Token issue happens exactly here, once per member; tokens are never
// reissued afterward. Check-in state always starts false.
func (s *Store) Create(ctx context.Context, t models.Team) (models.Team, error) {
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.NameCI = text.Fold(t.Name)
	t.LeadEmailCI = text.Fold(t.LeadEmail)
	t.CreatedAt = now
	t.UpdatedAt = now
	for i := range t.Members {
		t.Members[i].Token = token.NewMemberToken()
		t.Members[i].IsCheckedIn = false
		t.Members[i].CheckInTime = nil
		t.Members[i].FoodScans = nil
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Team{}, ErrDuplicateTeam
		}
		return models.Team{}, err
	}
	return t, nil
}

// AddMember appends one member to an existing team, issuing its token.
// Returns the stored member including the issued token.
func (s *Store) AddMember(ctx context.Context, teamID primitive.ObjectID, m models.Member) (models.Member, error) {
	m.Token = token.NewMemberToken()
	m.IsCheckedIn = false
	m.CheckInTime = nil
	m.FoodScans = nil

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": teamID},
		bson.M{
			"$push": bson.M{"members": m},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Member{}, ErrDuplicateTeam
		}
		return models.Member{}, err
	}
	if res.MatchedCount == 0 {
		return models.Member{}, ErrNotFound
	}
	return m, nil
}

// GetByID retrieves a team by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Team, error) {
	var t models.Team
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Team{}, ErrNotFound
		}
		return models.Team{}, err
	}
	return t, nil
}

// GetByMemberToken resolves a member scan token to its owning team and
// the member that holds it. Read-only and side-effect-free.
func (s *Store) GetByMemberToken(ctx context.Context, memberToken string) (models.Team, models.Member, error) {
	var t models.Team
	err := s.c.FindOne(ctx, bson.M{"members.token": memberToken}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Team{}, models.Member{}, ErrMemberNotFound
		}
		return models.Team{}, models.Member{}, err
	}
	for _, m := range t.Members {
		if m.Token == memberToken {
			return t, m, nil
		}
	}
	// A document matched on members.token but the member is gone from
	// the decoded copy; treat as not found rather than guessing.
	return models.Team{}, models.Member{}, ErrMemberNotFound
}

// CheckInMember attempts the single NOT_CHECKED_IN → CHECKED_IN
// transition for the member holding the token.
//
// The update filter matches only while is_checked_in is still false, so
// the whole step is one conditional write inside MongoDB: of any number
// of concurrent callers, exactly one matches and flips the flag. The
// returned bool reports whether *this* call performed the transition.
// Callers that lose the race re-read the member to obtain the original
// check-in time.
func (s *Store) CheckInMember(ctx context.Context, memberToken string, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"members": bson.M{"$elemMatch": bson.M{
			"token":         memberToken,
			"is_checked_in": false,
		}}},
		bson.M{"$set": bson.M{
			"members.$.is_checked_in": true,
			"members.$.check_in_time": at.UTC(),
			"updated_at":              time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// AppendFoodScan appends one entry to the member's food scan history.
// The filter re-asserts is_checked_in at write time so a distribution
// can never land on a member whose check-in has not happened.
// The history is append-only; nothing in the application removes or
// rewrites entries.
func (s *Store) AppendFoodScan(ctx context.Context, memberToken string, scan models.FoodScan) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"members": bson.M{"$elemMatch": bson.M{
			"token":         memberToken,
			"is_checked_in": true,
		}}},
		bson.M{"$push": bson.M{"members.$.food_scans": scan}},
	)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// ListByEvent returns an event's teams, newest first.
func (s *Store) ListByEvent(ctx context.Context, eventID primitive.ObjectID, limit, offset int64) ([]models.Team, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cur, err := s.c.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ts []models.Team
	if err := cur.All(ctx, &ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// CountCheckedIn counts members with is_checked_in true across an
// event's teams. Used to verify (and rebuild) the event's derived
// total_checked_in counter; scan decisions never call this.
func (s *Store) CountCheckedIn(ctx context.Context, eventID primitive.ObjectID) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventID}}},
		{{Key: "$unwind", Value: "$members"}},
		{{Key: "$match", Value: bson.M{"members.is_checked_in": true}}},
		{{Key: "$count", Value: "n"}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var out []struct {
		N int64 `bson:"n"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].N, nil
}

// Rollup holds per-event totals recomputed from the roster documents.
type Rollup struct {
	Teams     int64 `bson:"teams"`
	Members   int64 `bson:"members"`
	CheckedIn int64 `bson:"checked_in"`
}

// Rollup recomputes an event's registration and check-in totals from
// the teams collection itself. Scan decisions never read the derived
// event counters; this exists so they can be rebuilt when they drift.
func (s *Store) Rollup(ctx context.Context, eventID primitive.ObjectID) (Rollup, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventID}}},
		{{Key: "$project", Value: bson.M{
			"members": bson.M{"$size": bson.M{"$ifNull": bson.A{"$members", bson.A{}}}},
			"checked_in": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$members", bson.A{}}},
				"as":    "m",
				"cond":  "$$m.is_checked_in",
			}}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":        nil,
			"teams":      bson.M{"$sum": 1},
			"members":    bson.M{"$sum": "$members"},
			"checked_in": bson.M{"$sum": "$checked_in"},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return Rollup{}, err
	}
	defer cur.Close(ctx)

	var out []Rollup
	if err := cur.All(ctx, &out); err != nil {
		return Rollup{}, err
	}
	if len(out) == 0 {
		return Rollup{}, nil
	}
	return out[0], nil
}
