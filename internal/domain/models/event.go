// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventStats holds running totals for an event.
//
// These are derived counters maintained by atomic $inc updates; the
// source of truth for membership state is the teams collection and the
// scan ledgers. If a counter ever drifts (for example after a crash
// between a check-in and its increment) it can be rebuilt from those
// without affecting scan correctness, which never reads the counters.
type EventStats struct {
	TotalCheckedIn         int64 `bson:"total_checked_in" json:"total_checked_in"`
	TotalFoodDistributed   int64 `bson:"total_food_distributed" json:"total_food_distributed"`
	TotalTeamsRegistered   int64 `bson:"total_teams_registered" json:"total_teams_registered"`
	TotalMembersRegistered int64 `bson:"total_members_registered" json:"total_members_registered"`
}

// Event represents one gathering that teams register for and check in at.
//
// CanteenToken identifies *which* event a canteen scanner belongs to;
// it lives in a separate token namespace from member tokens and the two
// are never interchangeable.
type Event struct {
	ID               primitive.ObjectID `bson:"_id" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Slug             string             `bson:"slug" json:"slug"`
	Active           bool               `bson:"active" json:"active"`
	RegistrationOpen bool               `bson:"registration_open" json:"registration_open"`
	CanteenToken     string             `bson:"canteen_token" json:"-"`

	Stats EventStats `bson:"stats" json:"stats"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
