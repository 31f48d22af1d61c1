// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FoodScan is one append-only entry in a member's food scan history.
// Entries are never deduplicated; the engine enforces eligibility, not
// meal count limits.
type FoodScan struct {
	At        time.Time `bson:"at" json:"at"`
	Meal      string    `bson:"meal" json:"meal"`
	Eligible  bool      `bson:"eligible" json:"eligible"`
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
	ActorID   string    `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	ActorName string    `bson:"actor_name,omitempty" json:"actor_name,omitempty"`
}

// Member is owned by its Team document and is never independently
// addressable; the scan token is its only external lookup key.
//
// Invariants:
//   - Token is generated once at creation and never changes. It is
//     globally unique across all teams and events (unique multikey
//     index on members.token).
//   - CheckInTime is set iff IsCheckedIn is true, and once true a
//     member never reverts to unchecked through this application.
type Member struct {
	Name        string `bson:"name" json:"name"`
	Email       string `bson:"email" json:"email"`
	Affiliation string `bson:"affiliation,omitempty" json:"affiliation,omitempty"`
	RollID      string `bson:"roll_id,omitempty" json:"roll_id,omitempty"`

	Token string `bson:"token" json:"-"`

	IsCheckedIn bool       `bson:"is_checked_in" json:"is_checked_in"`
	CheckInTime *time.Time `bson:"check_in_time,omitempty" json:"check_in_time,omitempty"`

	FoodScans []FoodScan `bson:"food_scans,omitempty" json:"food_scans,omitempty"`
}

// Team is the aggregate root that owns its members as an embedded,
// ordered list. Uniqueness within an event: one team per name
// (case-insensitive) and one team per lead email.
type Team struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	EventID primitive.ObjectID `bson:"event_id" json:"event_id"`

	Name   string `bson:"name" json:"name"`
	NameCI string `bson:"name_ci" json:"-"`

	LeadName    string `bson:"lead_name" json:"lead_name"`
	LeadEmail   string `bson:"lead_email" json:"lead_email"`
	LeadEmailCI string `bson:"lead_email_ci" json:"-"`

	Members []Member `bson:"members" json:"members"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
