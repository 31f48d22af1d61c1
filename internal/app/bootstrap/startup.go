// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/gatecheck/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// statReconciler runs for the life of the process; Shutdown stops it.
var statReconciler *workers.StatReconciler

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// It also starts the background worker that rebuilds each event's
// advisory counters from the rosters and ledgers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	statReconciler = workers.NewStatReconciler(
		deps.GateCheckMongoDatabase, logger, 5*time.Minute)
	statReconciler.Start()

	logger.Info("gatecheck ready",
		zap.String("env", coreCfg.Env),
		zap.String("database", appCfg.MongoDatabase))
	return nil
}
