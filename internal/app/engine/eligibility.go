// internal/app/engine/eligibility.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/store/events"
	"github.com/dalemusser/gatecheck/internal/app/store/foodlog"
	"github.com/dalemusser/gatecheck/internal/app/store/teams"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	"go.uber.org/zap"
)

// Decision is the result of one food-eligibility evaluation.
// When Eligible is false, Reason carries one of the foodlog.Reason*
// codes; Event/Team/Member are populated as far as resolution got.
type Decision struct {
	Eligible bool
	Reason   string
	Event    models.Event
	Team     models.Team
	Member   models.Member
}

// Evaluate decides whether the member holding memberToken may receive
// food at the canteen identified by canteenToken. Pure decision: it
// never mutates member or event state; its only write is the food
// ledger row that mirrors the decision.
//
// Checks run in a fixed order and the first failure wins:
// canteen token resolves → event active → member token resolves →
// member belongs to the event → member is checked in.
func (e *Engine) Evaluate(ctx context.Context, canteenToken, memberToken string, actor Actor) (Decision, error) {
	dec, err := e.evaluate(ctx, canteenToken, memberToken)
	if err != nil {
		return Decision{}, e.recordFood(ctx, e.foodEntry(dec, memberToken, "", false, actor), err)
	}
	return dec, e.recordFood(ctx, e.foodEntry(dec, memberToken, "", false, actor), nil)
}

// DistributeFood re-evaluates eligibility and, when eligible, appends
// one entry to the member's food scan history and bumps the event's
// food counter. History entries are never deduplicated: the engine
// enforces eligibility, not meal count limits.
func (e *Engine) DistributeFood(ctx context.Context, canteenToken, memberToken, meal string, actor Actor) (Decision, error) {
	dec, err := e.evaluate(ctx, canteenToken, memberToken)
	if err != nil {
		return Decision{}, e.recordFood(ctx, e.foodEntry(dec, memberToken, meal, false, actor), err)
	}
	if !dec.Eligible {
		return dec, e.recordFood(ctx, e.foodEntry(dec, memberToken, meal, false, actor), nil)
	}

	scan := models.FoodScan{
		At:        time.Now().UTC(),
		Meal:      meal,
		Eligible:  true,
		ActorID:   actor.ID,
		ActorName: actor.Name,
	}
	if err := e.teams.AppendFoodScan(ctx, memberToken, scan); err != nil {
		// Checked-in state never reverts, so a failed append here is a
		// storage problem, not a lost eligibility race.
		ferr := fmt.Errorf("append food scan: %w", err)
		entry := e.foodEntry(dec, memberToken, meal, false, actor)
		entry.Reason = foodlog.ReasonStorageError
		return Decision{}, e.recordFood(ctx, entry, ferr)
	}

	var incErr error
	if err := e.events.IncrementStat(ctx, dec.Event.ID, events.StatFoodDistributed, 1); err != nil {
		e.log.Error("total_food_distributed increment failed after distribution",
			zap.String("event_id", dec.Event.ID.Hex()),
			zap.String("token", memberToken),
			zap.Error(err))
		incErr = fmt.Errorf("increment total_food_distributed: %w", err)
	}

	return dec, e.recordFood(ctx, e.foodEntry(dec, memberToken, meal, true, actor), incErr)
}

// evaluate runs the ordered checks without touching the ledger.
func (e *Engine) evaluate(ctx context.Context, canteenToken, memberToken string) (Decision, error) {
	ev, err := e.events.GetByCanteenToken(ctx, canteenToken)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return Decision{Reason: foodlog.ReasonInvalidCanteenToken}, nil
		}
		return Decision{}, fmt.Errorf("resolve canteen token: %w", err)
	}

	if !ev.Active {
		return Decision{Reason: foodlog.ReasonEventInactive, Event: ev}, nil
	}

	team, member, err := e.teams.GetByMemberToken(ctx, memberToken)
	if err != nil {
		if errors.Is(err, teams.ErrMemberNotFound) {
			return Decision{Reason: foodlog.ReasonMemberNotFound, Event: ev}, nil
		}
		return Decision{}, fmt.Errorf("resolve member token: %w", err)
	}

	if team.EventID != ev.ID {
		return Decision{Reason: foodlog.ReasonWrongEvent, Event: ev, Team: team, Member: member}, nil
	}

	if !member.IsCheckedIn {
		return Decision{Reason: foodlog.ReasonNotCheckedIn, Event: ev, Team: team, Member: member}, nil
	}

	return Decision{Eligible: true, Event: ev, Team: team, Member: member}, nil
}

// foodEntry builds the denormalized ledger row mirroring a decision.
func (e *Engine) foodEntry(dec Decision, memberToken, meal string, distributed bool, actor Actor) foodlog.Entry {
	entry := foodlog.Entry{
		Token:       memberToken,
		Eligible:    dec.Eligible,
		Reason:      dec.Reason,
		Meal:        meal,
		Distributed: distributed,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
	}
	if !dec.Event.ID.IsZero() {
		id := dec.Event.ID
		entry.EventID = &id
	}
	if !dec.Team.ID.IsZero() {
		id := dec.Team.ID
		entry.TeamID = &id
		entry.TeamName = dec.Team.Name
	}
	if dec.Member.Token != "" {
		entry.MemberName = dec.Member.Name
		entry.MemberEmail = dec.Member.Email
	}
	return entry
}

// recordFood appends the food ledger row, merging a primary-operation
// error the same way recordCheckin does.
func (e *Engine) recordFood(ctx context.Context, entry foodlog.Entry, primaryErr error) error {
	if primaryErr != nil && entry.Reason == "" {
		entry.Reason = foodlog.ReasonStorageError
	}
	if err := e.foodLog.Log(ctx, entry); err != nil {
		e.log.Error("food-scan ledger append failed",
			zap.String("token", entry.Token),
			zap.Bool("eligible", entry.Eligible),
			zap.Error(err))
		if primaryErr != nil {
			return primaryErr
		}
		return fmt.Errorf("food-scan ledger append: %w", err)
	}

	e.log.Info("food scan",
		zap.String("token", entry.Token),
		zap.Bool("eligible", entry.Eligible),
		zap.String("reason", entry.Reason),
		zap.Bool("distributed", entry.Distributed),
		zap.String("actor_id", entry.ActorID))
	return primaryErr
}
