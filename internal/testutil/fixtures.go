// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/system/token"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateEvent creates an active event with registration open.
// Returns the created event including its generated canteen token.
func (f *Fixtures) CreateEvent(ctx context.Context, name, slug string) models.Event {
	f.t.Helper()

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
	if _, err := f.db.Collection("events").InsertOne(ctx, ev); err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}
	return ev
}

// CreateInactiveEvent creates an event with the active flag off.
func (f *Fixtures) CreateInactiveEvent(ctx context.Context, name, slug string) models.Event {
	f.t.Helper()

	ev := f.CreateEvent(ctx, name, slug)
	_, err := f.db.Collection("events").UpdateOne(ctx,
		bson.M{"_id": ev.ID},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		f.t.Fatalf("failed to deactivate test event: %v", err)
	}
	ev.Active = false
	return ev
}

// CreateTeam creates a team for the event with n members, issuing a
// member token for each. Members start not checked in.
func (f *Fixtures) CreateTeam(ctx context.Context, eventID primitive.ObjectID, name string, n int) models.Team {
	f.t.Helper()

	now := time.Now().UTC()
	team := models.Team{
		ID:          primitive.NewObjectID(),
		EventID:     eventID,
		Name:        name,
		NameCI:      text.Fold(name),
		LeadName:    name + " Lead",
		LeadEmail:   text.Fold(name) + "-lead@test.com",
		LeadEmailCI: text.Fold(name) + "-lead@test.com",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := 0; i < n; i++ {
		team.Members = append(team.Members, models.Member{
			Name:  name + " Member " + string(rune('A'+i)),
			Email: text.Fold(name) + "-m" + string(rune('a'+i)) + "@test.com",
			Token: token.NewMemberToken(),
		})
	}
	if _, err := f.db.Collection("teams").InsertOne(ctx, team); err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}
	return team
}

// CheckInMember marks one of the team's members as checked in directly
// in the database, for tests that need a pre-checked-in member.
func (f *Fixtures) CheckInMember(ctx context.Context, memberToken string) time.Time {
	f.t.Helper()

	at := time.Now().UTC().Truncate(time.Millisecond)
	res, err := f.db.Collection("teams").UpdateOne(ctx,
		bson.M{"members.token": memberToken},
		bson.M{"$set": bson.M{
			"members.$.is_checked_in": true,
			"members.$.check_in_time": at,
		}},
	)
	if err != nil || res.ModifiedCount != 1 {
		f.t.Fatalf("failed to check in test member %s: %v", memberToken, err)
	}
	return at
}
