// internal/app/engine/engine.go

// Package engine is the check-in / food-eligibility core.
//
// It owns the scan-time semantics: resolving tokens, the single
// NOT_CHECKED_IN → CHECKED_IN transition per member, the eligibility
// decision for food scans, the append-only scan ledgers, and the
// derived event counters.
//
// Handlers hold no shared in-process state; every coordination point
// is an atomic MongoDB operation. The one serialization point in the
// whole core is the conditional write inside teams.CheckInMember.
package engine

import (
	"github.com/dalemusser/gatecheck/internal/app/store/checkinlog"
	"github.com/dalemusser/gatecheck/internal/app/store/events"
	"github.com/dalemusser/gatecheck/internal/app/store/foodlog"
	"github.com/dalemusser/gatecheck/internal/app/store/teams"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Actor is the verified staff identity performing a scan. It arrives
// from the session layer already authenticated; the engine trusts it
// and only records it.
type Actor struct {
	ID   string
	Name string
}

// Engine wires the stores behind the scan operations.
type Engine struct {
	events     *events.Store
	teams      *teams.Store
	checkinLog *checkinlog.Store
	foodLog    *foodlog.Store
	log        *zap.Logger
}

// New builds an Engine over the given database.
func New(db *mongo.Database, logger *zap.Logger) *Engine {
	return &Engine{
		events:     events.New(db),
		teams:      teams.New(db),
		checkinLog: checkinlog.New(db),
		foodLog:    foodlog.New(db),
		log:        logger,
	}
}
