package teams_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	teamsfeature "github.com/dalemusser/gatecheck/internal/app/features/teams"
	teamstore "github.com/dalemusser/gatecheck/internal/app/store/teams"
	"github.com/dalemusser/gatecheck/internal/app/system/token"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	"github.com/dalemusser/gatecheck/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func registerBody(slug, teamName string, memberEmails ...string) string {
	var members []string
	for i, email := range memberEmails {
		members = append(members,
			`{"name":"Member `+string(rune('A'+i))+`","email":"`+email+`"}`)
	}
	return `{"event_slug":"` + slug + `","team_name":"` + teamName +
		`","lead_name":"Lead","lead_email":"lead-` + teamName + `@test.com","members":[` +
		strings.Join(members, ",") + `]}`
}

func TestHandleRegister(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ev := fx.CreateEvent(ctx, "Gathering", "gathering")

	h := teamsfeature.NewHandler(db, zap.NewNop())

	req := testutil.NewJSONRequest(t, "POST", "/teams/register",
		registerBody("gathering", "Rocketeers", "a@test.com", "b@test.com"))
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp struct {
		TeamID  string `json:"team_id"`
		EventID string `json:"event_id"`
		Members []struct {
			Name  string `json:"name"`
			Token string `json:"token"`
		} `json:"members"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.EventID != ev.ID.Hex() {
		t.Errorf("event_id: got %s, want %s", resp.EventID, ev.ID.Hex())
	}
	if len(resp.Members) != 2 {
		t.Fatalf("members: got %d, want 2", len(resp.Members))
	}
	for _, m := range resp.Members {
		if !token.IsMemberToken(m.Token) {
			t.Errorf("member %s: token %q is not a member token", m.Name, m.Token)
		}
	}

	// Registration counters were bumped.
	var got models.Event
	if err := db.Collection("events").FindOne(ctx, bson.M{"_id": ev.ID}).Decode(&got); err != nil {
		t.Fatalf("load event: %v", err)
	}
	if got.Stats.TotalTeamsRegistered != 1 {
		t.Errorf("total_teams_registered: got %d, want 1", got.Stats.TotalTeamsRegistered)
	}
	if got.Stats.TotalMembersRegistered != 2 {
		t.Errorf("total_members_registered: got %d, want 2", got.Stats.TotalMembersRegistered)
	}
}

func TestHandleRegister_RegistrationClosed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ev := fx.CreateEvent(ctx, "Closed", "closed")
	if _, err := db.Collection("events").UpdateOne(ctx,
		bson.M{"_id": ev.ID},
		bson.M{"$set": bson.M{"registration_open": false}},
	); err != nil {
		t.Fatalf("close registration: %v", err)
	}

	h := teamsfeature.NewHandler(db, zap.NewNop())
	req := testutil.NewJSONRequest(t, "POST", "/teams/register",
		registerBody("closed", "Latecomers", "late@test.com"))
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestHandleRegister_DuplicateTeamName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateEvent(ctx, "Gathering", "gathering")

	h := teamsfeature.NewHandler(db, zap.NewNop())

	// The unique index enforces the duplicate; create it as EnsureSchema would.
	if err := teamstore.New(db).EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	req := testutil.NewJSONRequest(t, "POST", "/teams/register",
		registerBody("gathering", "Rocketeers", "a@test.com"))
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first register: got %d", rec.Code)
	}

	req = testutil.NewJSONRequest(t, "POST", "/teams/register",
		registerBody("gathering", "Rocketeers", "c@test.com"))
	rec = httptest.NewRecorder()
	h.HandleRegister(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: got %d, want %d (body %s)", rec.Code, http.StatusConflict, rec.Body.String())
	}
}

func TestHandleRegister_UnknownEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := teamsfeature.NewHandler(db, zap.NewNop())

	req := testutil.NewJSONRequest(t, "POST", "/teams/register",
		registerBody("no-such-event", "Ghosts", "g@test.com"))
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleAddMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ev := fx.CreateEvent(ctx, "Gathering", "gathering")
	team := fx.CreateTeam(ctx, ev.ID, "Rocketeers", 2)

	h := teamsfeature.NewHandler(db, zap.NewNop())

	req := testutil.NewJSONRequest(t, "POST", "/teams/"+team.ID.Hex()+"/members",
		`{"name":"New Member","email":"new@test.com"}`)
	req = testutil.WithChiURLParam(req, "teamID", team.ID.Hex())
	rec := httptest.NewRecorder()
	h.HandleAddMember(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !token.IsMemberToken(resp.Token) {
		t.Errorf("token %q is not a member token", resp.Token)
	}

	var got models.Team
	if err := db.Collection("teams").FindOne(ctx, bson.M{"_id": team.ID}).Decode(&got); err != nil {
		t.Fatalf("load team: %v", err)
	}
	if len(got.Members) != 3 {
		t.Errorf("members: got %d, want 3", len(got.Members))
	}
}

func TestHandleGet_Roster(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ev := fx.CreateEvent(ctx, "Gathering", "gathering")
	team := fx.CreateTeam(ctx, ev.ID, "Rocketeers", 2)
	fx.CheckInMember(ctx, team.Members[0].Token)

	h := teamsfeature.NewHandler(db, zap.NewNop())

	req := httptest.NewRequest("GET", "/teams/"+team.ID.Hex(), nil)
	req = testutil.WithChiURLParam(req, "teamID", team.ID.Hex())
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Members []struct {
			Token       string  `json:"token"`
			IsCheckedIn bool    `json:"is_checked_in"`
			CheckInTime *string `json:"check_in_time"`
		} `json:"members"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Members) != 2 {
		t.Fatalf("members: got %d, want 2", len(resp.Members))
	}
	if !resp.Members[0].IsCheckedIn || resp.Members[0].CheckInTime == nil {
		t.Error("first member should be checked in with a timestamp")
	}
	if resp.Members[1].IsCheckedIn {
		t.Error("second member should not be checked in")
	}
}
