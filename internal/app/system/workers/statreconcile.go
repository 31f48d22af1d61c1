// internal/app/system/workers/statreconcile.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/store/events"
	"github.com/dalemusser/gatecheck/internal/app/store/foodlog"
	"github.com/dalemusser/gatecheck/internal/app/store/teams"
	"github.com/dalemusser/gatecheck/internal/app/system/timeouts"
	"github.com/dalemusser/gatecheck/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// StatReconciler is a background worker that rebuilds each event's
// derived counters from the rosters and the food ledger. The counters
// are advisory (scan decisions never read them) but they drift if the
// process dies between a scan write and its $inc, so they get repaired
// periodically rather than trusted forever.
type StatReconciler struct {
	events   *events.Store
	teams    *teams.Store
	foodlog  *foodlog.Store
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStatReconciler creates a reconciliation worker over the given
// database. interval is how often a full pass runs (e.g. 5 minutes).
func NewStatReconciler(db *mongo.Database, logger *zap.Logger, interval time.Duration) *StatReconciler {
	return &StatReconciler{
		events:   events.New(db),
		teams:    teams.New(db),
		foodlog:  foodlog.New(db),
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background reconciliation loop.
func (w *StatReconciler) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("stat reconciler started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *StatReconciler) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("stat reconciler stopped")
}

func (w *StatReconciler) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.ReconcileAll()
		}
	}
}

// ReconcileAll runs one full pass over every event. Exported so a
// startup hook or an admin task can force a pass outside the ticker.
func (w *StatReconciler) ReconcileAll() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	defer cancel()

	evs, err := w.events.List(ctx, 1000)
	if err != nil {
		w.log.Error("stat reconcile: list events failed", zap.Error(err))
		return
	}

	repaired := 0
	for _, ev := range evs {
		changed, err := w.reconcileEvent(ctx, ev)
		if err != nil {
			w.log.Error("stat reconcile failed",
				zap.String("event", ev.Slug), zap.Error(err))
			continue
		}
		if changed {
			repaired++
		}
	}

	if repaired > 0 {
		w.log.Info("stat reconcile repaired drift", zap.Int("events", repaired))
	}
}

func (w *StatReconciler) reconcileEvent(ctx context.Context, ev models.Event) (bool, error) {
	roll, err := w.teams.Rollup(ctx, ev.ID)
	if err != nil {
		return false, err
	}
	distributed, err := w.foodlog.CountDistributed(ctx, ev.ID)
	if err != nil {
		return false, err
	}

	want := models.EventStats{
		TotalCheckedIn:         roll.CheckedIn,
		TotalFoodDistributed:   distributed,
		TotalTeamsRegistered:   roll.Teams,
		TotalMembersRegistered: roll.Members,
	}
	if want == ev.Stats {
		return false, nil
	}

	// A scan can land between the rollup reads and this write, making
	// the repaired value itself slightly stale. That is acceptable for
	// advisory counters; the next pass converges again.
	if err := w.events.SetStats(ctx, ev.ID, want); err != nil {
		return false, err
	}
	w.log.Info("event counters rebuilt",
		zap.String("event", ev.Slug),
		zap.Int64("checked_in", want.TotalCheckedIn),
		zap.Int64("food_distributed", want.TotalFoodDistributed),
		zap.Int64("teams", want.TotalTeamsRegistered),
		zap.Int64("members", want.TotalMembersRegistered))
	return true, nil
}
