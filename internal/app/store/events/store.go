// internal/app/store/events/store.go
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/system/token"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Stat counter field names accepted by IncrementStat.
const (
	StatCheckedIn         = "total_checked_in"
	StatFoodDistributed   = "total_food_distributed"
	StatTeamsRegistered   = "total_teams_registered"
	StatMembersRegistered = "total_members_registered"
)

var (
	ErrNotFound      = errors.New("event not found")
	ErrDuplicateSlug = errors.New("an event with this slug already exists")
)

// Store manages event documents.
type Store struct {
	c *mongo.Collection
}

// New creates a new events Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("events")}
}

// EnsureIndexes creates the unique slug and canteen token indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("idx_events_slug").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "canteen_token", Value: 1}},
			Options: options.Index().SetName("idx_events_canteen_token").SetUnique(true),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new event with a freshly issued canteen token.
// New events start active with registration open.
func (s *Store) Create(ctx context.Context, name, slug string) (models.Event, error) {
	now := time.Now().UTC()
	ev := models.Event{
		ID:               primitive.NewObjectID(),
		Name:             name,
		Slug:             slug,
		Active:           true,
		RegistrationOpen: true,
		CanteenToken:     token.NewCanteenToken(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := s.c.InsertOne(ctx, ev); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Event{}, ErrDuplicateSlug
		}
		return models.Event{}, err
	}
	return ev, nil
}

// GetByID retrieves an event by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Event, error) {
	var ev models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, err
	}
	return ev, nil
}

// GetBySlug retrieves an event by its slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Event, error) {
	var ev models.Event
	if err := s.c.FindOne(ctx, bson.M{"slug": slug}).Decode(&ev); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, err
	}
	return ev, nil
}

// GetByCanteenToken resolves a canteen token to its event.
// Read-only; this is how a canteen scan identifies which event it serves.
func (s *Store) GetByCanteenToken(ctx context.Context, canteenToken string) (models.Event, error) {
	var ev models.Event
	if err := s.c.FindOne(ctx, bson.M{"canteen_token": canteenToken}).Decode(&ev); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, err
	}
	return ev, nil
}

// SetActive flips the event's active flag.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	return s.setFlag(ctx, id, "active", active)
}

// SetRegistrationOpen flips the event's registration window flag.
func (s *Store) SetRegistrationOpen(ctx context.Context, id primitive.ObjectID, open bool) error {
	return s.setFlag(ctx, id, "registration_open", open)
}

func (s *Store) setFlag(ctx context.Context, id primitive.ObjectID, field string, v bool) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{field: v, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementStat applies a single atomic $inc to one of the event's
// stat counters. There is no read-modify-write: the document is never
// fetched, so concurrent increments cannot lose updates.
func (s *Store) IncrementStat(ctx context.Context, id primitive.ObjectID, stat string, delta int64) error {
	switch stat {
	case StatCheckedIn, StatFoodDistributed, StatTeamsRegistered, StatMembersRegistered:
	default:
		return fmt.Errorf("unknown stat counter %q", stat)
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"stats." + stat: delta}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns events sorted by creation time, newest first.
func (s *Store) List(ctx context.Context, limit int64) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var evs []models.Event
	if err := cur.All(ctx, &evs); err != nil {
		return nil, err
	}
	return evs, nil
}

// SetStats overwrites the event's derived counters in one update.
// Only reconciliation calls this; the scan paths never write whole
// stats, they $inc single fields.
func (s *Store) SetStats(ctx context.Context, id primitive.ObjectID, stats models.EventStats) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"stats": stats, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
