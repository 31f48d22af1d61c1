// internal/app/engine/checkin.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/store/checkinlog"
	"github.com/dalemusser/gatecheck/internal/app/store/events"
	"github.com/dalemusser/gatecheck/internal/app/store/teams"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CheckInStatus classifies the outcome of one check-in attempt.
type CheckInStatus string

const (
	// CheckInSuccess: this call performed the transition. At most one
	// Success ever exists per member, under any concurrency.
	CheckInSuccess CheckInStatus = "success"
	// CheckInAlreadyCheckedIn: the member was checked in before this
	// call (possibly by a concurrent scan that won the race). A normal
	// idempotent result, not a fault.
	CheckInAlreadyCheckedIn CheckInStatus = "already_checked_in"
	// CheckInNotFound: no member owns the token.
	CheckInNotFound CheckInStatus = "not_found"
	// CheckInWrongEvent: the token is valid but its team belongs to a
	// different event than this gate. A business-rule rejection, not an
	// authentication failure.
	CheckInWrongEvent CheckInStatus = "wrong_event"
)

// CheckInResult carries the outcome of a check-in attempt. Member and
// Team are populated whenever the token resolved; CheckInTime is the
// member's recorded time for both Success and AlreadyCheckedIn.
type CheckInResult struct {
	Status      CheckInStatus
	Team        models.Team
	Member      models.Member
	CheckInTime *time.Time
}

// CheckIn records physical attendance for the member holding the token
// at the event the calling gate serves.
//
// Every attempt, whatever its outcome, lands exactly one row in the
// entry-scan ledger before CheckIn returns. If the ledger append fails
// after the state transition already landed, the outcome is still
// returned together with the error; a missing audit row is surfaced,
// never hidden.
func (e *Engine) CheckIn(ctx context.Context, eventID primitive.ObjectID, memberToken string, actor Actor) (CheckInResult, error) {
	entry := checkinlog.Entry{
		EventID:   &eventID,
		Token:     memberToken,
		ActorID:   actor.ID,
		ActorName: actor.Name,
	}

	team, member, err := e.teams.GetByMemberToken(ctx, memberToken)
	if err != nil {
		if errors.Is(err, teams.ErrMemberNotFound) {
			res := CheckInResult{Status: CheckInNotFound}
			entry.Outcome = checkinlog.OutcomeNotFound
			return res, e.recordCheckin(ctx, entry, nil)
		}
		entry.Outcome = checkinlog.OutcomeStorageError
		entry.Reason = err.Error()
		return CheckInResult{}, e.recordCheckin(ctx, entry, fmt.Errorf("resolve member token: %w", err))
	}

	entry.TeamID = &team.ID
	entry.TeamName = team.Name
	entry.MemberName = member.Name
	entry.MemberEmail = member.Email

	if team.EventID != eventID {
		res := CheckInResult{Status: CheckInWrongEvent, Team: team, Member: member}
		entry.Outcome = checkinlog.OutcomeWrongEvent
		entry.Reason = "wrong-event"
		return res, e.recordCheckin(ctx, entry, nil)
	}

	if member.IsCheckedIn {
		res := CheckInResult{
			Status:      CheckInAlreadyCheckedIn,
			Team:        team,
			Member:      member,
			CheckInTime: member.CheckInTime,
		}
		entry.Outcome = checkinlog.OutcomeAlreadyCheckedIn
		return res, e.recordCheckin(ctx, entry, nil)
	}

	// The conditional write. Only one concurrent caller can flip
	// is_checked_in from false to true; everyone else falls through to
	// the re-read below even if the read above was stale.
	now := time.Now().UTC()
	landed, err := e.teams.CheckInMember(ctx, memberToken, now)
	if err != nil {
		entry.Outcome = checkinlog.OutcomeStorageError
		entry.Reason = err.Error()
		return CheckInResult{}, e.recordCheckin(ctx, entry, fmt.Errorf("check-in write: %w", err))
	}

	if !landed {
		// Lost the race: some other scan performed the transition
		// between our read and our write. Re-read for the real time.
		_, fresh, rerr := e.teams.GetByMemberToken(ctx, memberToken)
		if rerr != nil {
			entry.Outcome = checkinlog.OutcomeStorageError
			entry.Reason = rerr.Error()
			return CheckInResult{}, e.recordCheckin(ctx, entry, fmt.Errorf("re-read after lost check-in race: %w", rerr))
		}
		res := CheckInResult{
			Status:      CheckInAlreadyCheckedIn,
			Team:        team,
			Member:      fresh,
			CheckInTime: fresh.CheckInTime,
		}
		entry.Outcome = checkinlog.OutcomeAlreadyCheckedIn
		return res, e.recordCheckin(ctx, entry, nil)
	}

	member.IsCheckedIn = true
	member.CheckInTime = &now
	res := CheckInResult{
		Status:      CheckInSuccess,
		Team:        team,
		Member:      member,
		CheckInTime: &now,
	}
	entry.Outcome = checkinlog.OutcomeSuccess

	// Counter is a derived view; a failed increment leaves it behind
	// but never invalidates the check-in that already landed. The error
	// still surfaces to the caller, who owns retry policy.
	var incErr error
	if err := e.events.IncrementStat(ctx, eventID, events.StatCheckedIn, 1); err != nil {
		e.log.Error("total_checked_in increment failed after successful check-in",
			zap.String("event_id", eventID.Hex()),
			zap.String("token", memberToken),
			zap.Error(err))
		incErr = fmt.Errorf("increment total_checked_in: %w", err)
	}

	return res, e.recordCheckin(ctx, entry, incErr)
}

// recordCheckin appends the ledger row for one attempt and merges any
// error from the primary operation with a ledger failure. The primary
// error wins when both exist; the ledger failure is then at least
// visible in the log.
func (e *Engine) recordCheckin(ctx context.Context, entry checkinlog.Entry, primaryErr error) error {
	if err := e.checkinLog.Log(ctx, entry); err != nil {
		e.log.Error("entry-scan ledger append failed",
			zap.String("token", entry.Token),
			zap.String("outcome", entry.Outcome),
			zap.Error(err))
		if primaryErr != nil {
			return primaryErr
		}
		return fmt.Errorf("entry-scan ledger append: %w", err)
	}

	e.log.Info("entry scan",
		zap.String("token", entry.Token),
		zap.String("outcome", entry.Outcome),
		zap.String("actor_id", entry.ActorID))
	return primaryErr
}
