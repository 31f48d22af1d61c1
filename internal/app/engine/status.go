// internal/app/engine/status.go
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/store/teams"
)

// ErrMemberNotFound is returned by Status when no member owns the token.
var ErrMemberNotFound = teams.ErrMemberNotFound

// MemberStatus is the read-only check-in view for display surfaces.
type MemberStatus struct {
	IsCheckedIn bool
	CheckInTime *time.Time
	MemberName  string
	TeamName    string
}

// Status reports a member's current check-in state. Read-only; no
// ledger row is written for status lookups.
func (e *Engine) Status(ctx context.Context, memberToken string) (MemberStatus, error) {
	team, member, err := e.teams.GetByMemberToken(ctx, memberToken)
	if err != nil {
		if errors.Is(err, teams.ErrMemberNotFound) {
			return MemberStatus{}, ErrMemberNotFound
		}
		return MemberStatus{}, err
	}
	return MemberStatus{
		IsCheckedIn: member.IsCheckedIn,
		CheckInTime: member.CheckInTime,
		MemberName:  member.Name,
		TeamName:    team.Name,
	}, nil
}
