// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/gatecheck/internal/app/store/checkinlog"
	"github.com/dalemusser/gatecheck/internal/app/store/events"
	"github.com/dalemusser/gatecheck/internal/app/store/foodlog"
	"github.com/dalemusser/gatecheck/internal/app/store/teams"
	"github.com/dalemusser/gatecheck/internal/app/system/timeouts"
	"github.com/dalemusser/gatecheck/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection and verifies it with a
// ping before the rest of startup proceeds.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		logger.Error("MongoDB ping failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		GateCheckMongoClient:   client,
		GateCheckMongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema attaches collection validators and creates the indexes
// each store depends on. Every step is idempotent; errors are
// aggregated so any problem is visible and startup can fail fast.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.GateCheckMongoDatabase

	var problems []string
	if err := validators.EnsureAll(ctx, db); err != nil {
		problems = append(problems, "validators: "+err.Error())
	}
	if err := events.New(db).EnsureIndexes(ctx); err != nil {
		problems = append(problems, "events: "+err.Error())
	}
	if err := teams.New(db).EnsureIndexes(ctx); err != nil {
		problems = append(problems, "teams: "+err.Error())
	}
	if err := checkinlog.New(db).EnsureIndexes(ctx); err != nil {
		problems = append(problems, "checkin_log: "+err.Error())
	}
	if err := foodlog.New(db).EnsureIndexes(ctx); err != nil {
		problems = append(problems, "food_log: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}

	logger.Info("schema ensured")
	return nil
}
