package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/engine"
	"github.com/dalemusser/gatecheck/internal/app/store/checkinlog"
	"github.com/dalemusser/gatecheck/internal/app/store/events"
	"github.com/dalemusser/gatecheck/internal/app/store/foodlog"
	"github.com/dalemusser/gatecheck/internal/app/store/teams"
	"github.com/dalemusser/gatecheck/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testActor() engine.Actor {
	return engine.Actor{ID: testutil.NewObjectIDHex(), Name: "Gate Staff"}
}

func TestCheckIn_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 2)
	tok := team.Members[0].Token

	res, err := eng.CheckIn(ctx, ev.ID, tok, testActor())
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if res.Status != engine.CheckInSuccess {
		t.Fatalf("status: got %q, want %q", res.Status, engine.CheckInSuccess)
	}
	if res.CheckInTime == nil {
		t.Fatal("expected CheckInTime to be set on success")
	}
	if !res.Member.IsCheckedIn {
		t.Error("expected returned member to be checked in")
	}

	// State persisted
	_, m, err := teams.New(db).GetByMemberToken(ctx, tok)
	if err != nil {
		t.Fatalf("GetByMemberToken failed: %v", err)
	}
	if !m.IsCheckedIn || m.CheckInTime == nil {
		t.Errorf("persisted member state: is_checked_in=%v check_in_time=%v", m.IsCheckedIn, m.CheckInTime)
	}

	// Counter incremented
	got, err := events.New(db).GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Stats.TotalCheckedIn != 1 {
		t.Errorf("total_checked_in: got %d, want 1", got.Stats.TotalCheckedIn)
	}

	// Exactly one ledger row
	n, err := checkinlog.New(db).CountByFilter(ctx, checkinlog.QueryFilter{Token: tok})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("ledger rows: got %d, want 1", n)
	}
}

func TestCheckIn_IdempotentRescan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 1)
	tok := team.Members[0].Token

	first, err := eng.CheckIn(ctx, ev.ID, tok, testActor())
	if err != nil {
		t.Fatalf("first CheckIn failed: %v", err)
	}
	if first.Status != engine.CheckInSuccess {
		t.Fatalf("first status: got %q, want success", first.Status)
	}

	second, err := eng.CheckIn(ctx, ev.ID, tok, testActor())
	if err != nil {
		t.Fatalf("second CheckIn failed: %v", err)
	}
	if second.Status != engine.CheckInAlreadyCheckedIn {
		t.Fatalf("second status: got %q, want %q", second.Status, engine.CheckInAlreadyCheckedIn)
	}
	if second.CheckInTime == nil || !second.CheckInTime.Equal(*first.CheckInTime) {
		t.Errorf("rescan time: got %v, want original %v", second.CheckInTime, first.CheckInTime)
	}

	// Counter unchanged by the duplicate
	got, err := events.New(db).GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Stats.TotalCheckedIn != 1 {
		t.Errorf("total_checked_in after rescan: got %d, want 1", got.Stats.TotalCheckedIn)
	}
}

func TestCheckIn_ConcurrentExactlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 1)
	tok := team.Members[0].Token

	const n = 32
	results := make([]engine.CheckInResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = eng.CheckIn(ctx, ev.ID, tok, testActor())
		}(i)
	}
	close(start)
	wg.Wait()

	var successes int
	var successTime *time.Time
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d failed: %v", i, errs[i])
		}
		switch results[i].Status {
		case engine.CheckInSuccess:
			successes++
			successTime = results[i].CheckInTime
		case engine.CheckInAlreadyCheckedIn:
		default:
			t.Fatalf("call %d: unexpected status %q", i, results[i].Status)
		}
	}
	if successes != 1 {
		t.Fatalf("successes: got %d, want exactly 1", successes)
	}

	// Every duplicate carries the winner's timestamp
	for i := 0; i < n; i++ {
		if results[i].Status != engine.CheckInAlreadyCheckedIn {
			continue
		}
		if results[i].CheckInTime == nil || !results[i].CheckInTime.Equal(*successTime) {
			t.Errorf("call %d: duplicate time %v differs from success time %v",
				i, results[i].CheckInTime, successTime)
		}
	}

	// Ledger saw every attempt
	rows, err := checkinlog.New(db).CountByFilter(ctx, checkinlog.QueryFilter{Token: tok})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if rows != n {
		t.Errorf("ledger rows: got %d, want %d", rows, n)
	}

	// Counter settled at exactly 1
	got, err := events.New(db).GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Stats.TotalCheckedIn != 1 {
		t.Errorf("total_checked_in: got %d, want 1", got.Stats.TotalCheckedIn)
	}
}

func TestCheckIn_TokenNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")

	res, err := eng.CheckIn(ctx, ev.ID, "mem_00000000000000000000000000000000", testActor())
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if res.Status != engine.CheckInNotFound {
		t.Fatalf("status: got %q, want %q", res.Status, engine.CheckInNotFound)
	}

	// The failed lookup still produced a ledger row with placeholders
	rows, err := checkinlog.New(db).Query(ctx, checkinlog.QueryFilter{
		Token: "mem_00000000000000000000000000000000",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ledger rows: got %d, want 1", len(rows))
	}
	if rows[0].Outcome != checkinlog.OutcomeNotFound {
		t.Errorf("outcome: got %q, want %q", rows[0].Outcome, checkinlog.OutcomeNotFound)
	}
	if rows[0].MemberName != "" {
		t.Errorf("expected empty member snapshot for unresolved token, got %q", rows[0].MemberName)
	}
}

func TestCheckIn_WrongEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e1 := fx.CreateEvent(ctx, "DevFest", "devfest")
	e2 := fx.CreateEvent(ctx, "HackNight", "hacknight")
	team := fx.CreateTeam(ctx, e1.ID, "Rocket", 1)
	tok := team.Members[0].Token

	res, err := eng.CheckIn(ctx, e2.ID, tok, testActor())
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if res.Status != engine.CheckInWrongEvent {
		t.Fatalf("status: got %q, want %q", res.Status, engine.CheckInWrongEvent)
	}

	// Member state unchanged
	_, m, err := teams.New(db).GetByMemberToken(ctx, tok)
	if err != nil {
		t.Fatalf("GetByMemberToken failed: %v", err)
	}
	if m.IsCheckedIn || m.CheckInTime != nil {
		t.Errorf("member mutated by wrong-event scan: is_checked_in=%v", m.IsCheckedIn)
	}

	// One ledger row with the wrong-event reason
	rows, err := checkinlog.New(db).Query(ctx, checkinlog.QueryFilter{Token: tok})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Outcome != checkinlog.OutcomeWrongEvent || rows[0].Reason != "wrong-event" {
		t.Errorf("ledger row: got %+v, want one wrong_event row with reason wrong-event", rows)
	}
}

func TestEvaluate_ReasonOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	active := fx.CreateEvent(ctx, "DevFest", "devfest")
	inactive := fx.CreateInactiveEvent(ctx, "Old", "old")
	other := fx.CreateEvent(ctx, "HackNight", "hacknight")

	team := fx.CreateTeam(ctx, active.ID, "Rocket", 2)
	unchecked := team.Members[0].Token
	checked := team.Members[1].Token
	fx.CheckInMember(ctx, checked)

	cases := []struct {
		name         string
		canteenToken string
		memberToken  string
		eligible     bool
		reason       string
	}{
		{"invalid canteen token", "cant_00000000000000000000000000000000", checked, false, foodlog.ReasonInvalidCanteenToken},
		{"inactive event", inactive.CanteenToken, checked, false, foodlog.ReasonEventInactive},
		{"member not found", active.CanteenToken, "mem_00000000000000000000000000000000", false, foodlog.ReasonMemberNotFound},
		{"wrong event", other.CanteenToken, checked, false, foodlog.ReasonWrongEvent},
		{"not checked in", active.CanteenToken, unchecked, false, foodlog.ReasonNotCheckedIn},
		{"eligible", active.CanteenToken, checked, true, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := eng.Evaluate(ctx, tc.canteenToken, tc.memberToken, testActor())
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if dec.Eligible != tc.eligible {
				t.Errorf("eligible: got %v, want %v", dec.Eligible, tc.eligible)
			}
			if dec.Reason != tc.reason {
				t.Errorf("reason: got %q, want %q", dec.Reason, tc.reason)
			}
		})
	}

	// Six evaluations, six food ledger rows
	n, err := foodlog.New(db).CountByFilter(ctx, foodlog.QueryFilter{})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != int64(len(cases)) {
		t.Errorf("food ledger rows: got %d, want %d", n, len(cases))
	}
}

func TestEvaluate_DoesNotMutate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 1)
	tok := team.Members[0].Token
	fx.CheckInMember(ctx, tok)

	if _, err := eng.Evaluate(ctx, ev.CanteenToken, tok, testActor()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	_, m, err := teams.New(db).GetByMemberToken(ctx, tok)
	if err != nil {
		t.Fatalf("GetByMemberToken failed: %v", err)
	}
	if len(m.FoodScans) != 0 {
		t.Errorf("Evaluate appended %d food scans; it must not mutate member state", len(m.FoodScans))
	}

	got, err := events.New(db).GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Stats.TotalFoodDistributed != 0 {
		t.Errorf("total_food_distributed: got %d, want 0", got.Stats.TotalFoodDistributed)
	}
}

func TestDistributeFood_NotCheckedIn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 1)
	tok := team.Members[0].Token

	dec, err := eng.DistributeFood(ctx, ev.CanteenToken, tok, "lunch", testActor())
	if err != nil {
		t.Fatalf("DistributeFood failed: %v", err)
	}
	if dec.Eligible {
		t.Fatal("expected ineligible for member who has not checked in")
	}
	if dec.Reason != foodlog.ReasonNotCheckedIn {
		t.Errorf("reason: got %q, want %q", dec.Reason, foodlog.ReasonNotCheckedIn)
	}

	// No history entry appended
	_, m, err := teams.New(db).GetByMemberToken(ctx, tok)
	if err != nil {
		t.Fatalf("GetByMemberToken failed: %v", err)
	}
	if len(m.FoodScans) != 0 {
		t.Errorf("food scans appended for ineligible member: %d", len(m.FoodScans))
	}
}

func TestDistributeFood_AfterCheckIn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 1)
	tok := team.Members[0].Token

	if res, err := eng.CheckIn(ctx, ev.ID, tok, testActor()); err != nil || res.Status != engine.CheckInSuccess {
		t.Fatalf("CheckIn: status=%v err=%v", res.Status, err)
	}

	dec, err := eng.DistributeFood(ctx, ev.CanteenToken, tok, "lunch", testActor())
	if err != nil {
		t.Fatalf("DistributeFood failed: %v", err)
	}
	if !dec.Eligible {
		t.Fatalf("expected eligible, got reason %q", dec.Reason)
	}

	// One history entry with the meal label
	_, m, err := teams.New(db).GetByMemberToken(ctx, tok)
	if err != nil {
		t.Fatalf("GetByMemberToken failed: %v", err)
	}
	if len(m.FoodScans) != 1 {
		t.Fatalf("food scans: got %d, want 1", len(m.FoodScans))
	}
	if m.FoodScans[0].Meal != "lunch" || !m.FoodScans[0].Eligible {
		t.Errorf("food scan entry: %+v", m.FoodScans[0])
	}

	// Counter incremented once
	got, err := events.New(db).GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Stats.TotalFoodDistributed != 1 {
		t.Errorf("total_food_distributed: got %d, want 1", got.Stats.TotalFoodDistributed)
	}

	// Ledger row marked distributed
	rows, err := foodlog.New(db).Query(ctx, foodlog.QueryFilter{Token: tok})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 1 || !rows[0].Distributed || rows[0].Meal != "lunch" {
		t.Errorf("food ledger rows: %+v", rows)
	}
}

func TestDistributeFood_MultipleDistributionsAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 1)
	tok := team.Members[0].Token
	fx.CheckInMember(ctx, tok)

	for _, meal := range []string{"breakfast", "lunch", "lunch", "dinner"} {
		dec, err := eng.DistributeFood(ctx, ev.CanteenToken, tok, meal, testActor())
		if err != nil {
			t.Fatalf("DistributeFood(%s) failed: %v", meal, err)
		}
		if !dec.Eligible {
			t.Fatalf("DistributeFood(%s): unexpectedly ineligible (%s)", meal, dec.Reason)
		}
	}

	_, m, err := teams.New(db).GetByMemberToken(ctx, tok)
	if err != nil {
		t.Fatalf("GetByMemberToken failed: %v", err)
	}
	if len(m.FoodScans) != 4 {
		t.Errorf("food scans: got %d, want 4 (history is never deduplicated)", len(m.FoodScans))
	}

	got, err := events.New(db).GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Stats.TotalFoodDistributed != 4 {
		t.Errorf("total_food_distributed: got %d, want 4", got.Stats.TotalFoodDistributed)
	}
}

func TestStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 2)

	st, err := eng.Status(ctx, team.Members[0].Token)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.IsCheckedIn || st.CheckInTime != nil {
		t.Errorf("fresh member status: %+v", st)
	}

	at := fx.CheckInMember(ctx, team.Members[1].Token)
	st, err = eng.Status(ctx, team.Members[1].Token)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.IsCheckedIn || st.CheckInTime == nil || !st.CheckInTime.Equal(at) {
		t.Errorf("checked-in status: got %+v, want checked in at %v", st, at)
	}

	if _, err := eng.Status(ctx, "mem_00000000000000000000000000000000"); err != engine.ErrMemberNotFound {
		t.Errorf("unknown token: got err %v, want ErrMemberNotFound", err)
	}
}

func TestCounterConsistency_Eventual(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	var tokens []string
	for i, name := range []string{"Rocket", "Comet", "Meteor"} {
		team := fx.CreateTeam(ctx, ev.ID, name, 3)
		for j := range team.Members {
			// Duplicate some tokens in the workload
			tokens = append(tokens, team.Members[j].Token)
			if (i+j)%2 == 0 {
				tokens = append(tokens, team.Members[j].Token)
			}
		}
	}

	var wg sync.WaitGroup
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			_, _ = eng.CheckIn(ctx, ev.ID, tok, testActor())
		}(tok)
	}
	wg.Wait()

	checkedIn, err := teams.New(db).CountCheckedIn(ctx, ev.ID)
	if err != nil {
		t.Fatalf("CountCheckedIn failed: %v", err)
	}
	got, err := events.New(db).GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if checkedIn != 9 {
		t.Errorf("members checked in: got %d, want 9", checkedIn)
	}
	if got.Stats.TotalCheckedIn != checkedIn {
		t.Errorf("total_checked_in %d != actual checked-in members %d", got.Stats.TotalCheckedIn, checkedIn)
	}
}

func TestLedgerCompleteness(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	other := fx.CreateEvent(ctx, "HackNight", "hacknight")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 1)
	tok := team.Members[0].Token

	// A mix of outcomes against the same token
	attempts := 0
	if _, err := eng.CheckIn(ctx, other.ID, tok, testActor()); err != nil { // wrong event
		t.Fatalf("CheckIn: %v", err)
	}
	attempts++
	if _, err := eng.CheckIn(ctx, ev.ID, tok, testActor()); err != nil { // success
		t.Fatalf("CheckIn: %v", err)
	}
	attempts++
	for i := 0; i < 3; i++ { // duplicates
		if _, err := eng.CheckIn(ctx, ev.ID, tok, testActor()); err != nil {
			t.Fatalf("CheckIn: %v", err)
		}
		attempts++
	}

	rows, err := checkinlog.New(db).CountByFilter(ctx, checkinlog.QueryFilter{Token: tok})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if rows != int64(attempts) {
		t.Errorf("ledger rows: got %d, want %d (one per attempt, any outcome)", rows, attempts)
	}

	eid := ev.ID
	byOutcome, err := checkinlog.New(db).Query(ctx, checkinlog.QueryFilter{
		EventID: &eid,
		Outcome: checkinlog.OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byOutcome) != 1 {
		t.Errorf("success rows for event: got %d, want 1", len(byOutcome))
	}
}

func TestCheckIn_DenormalizedSnapshotSurvivesEdit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	eng := engine.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev := fx.CreateEvent(ctx, "DevFest", "devfest")
	team := fx.CreateTeam(ctx, ev.ID, "Rocket", 1)
	tok := team.Members[0].Token
	wantName := team.Members[0].Name

	if _, err := eng.CheckIn(ctx, ev.ID, tok, testActor()); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	// Delete the team; the ledger row must keep its snapshot.
	if _, err := db.Collection("teams").DeleteOne(ctx, bson.M{"_id": team.ID}); err != nil {
		t.Fatalf("delete team: %v", err)
	}

	rows, err := checkinlog.New(db).Query(ctx, checkinlog.QueryFilter{Token: tok})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ledger rows: got %d, want 1", len(rows))
	}
	if rows[0].MemberName != wantName || rows[0].TeamName != "Rocket" {
		t.Errorf("snapshot after deletion: name=%q team=%q", rows[0].MemberName, rows[0].TeamName)
	}
}
