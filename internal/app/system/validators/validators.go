// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("events", eventsSchema())
	ensure("teams", teamsSchema())

	// The ledgers are append-only; validators guard the shape of new rows.
	ensure("checkin_log", checkinLogSchema())
	ensure("food_log", foodLogSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func eventsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "slug", "active", "registration_open", "canteen_token"},
			"properties": bson.M{
				"name":              bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"slug":              bson.M{"bsonType": "string", "minLength": 1, "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
				"active":            bson.M{"bsonType": "bool"},
				"registration_open": bson.M{"bsonType": "bool"},
				"canteen_token":     bson.M{"bsonType": "string", "pattern": "^cant_[0-9a-f]{32}$"},
				"stats": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"total_checked_in":         bson.M{"bsonType": bson.A{"long", "int"}},
						"total_food_distributed":   bson.M{"bsonType": bson.A{"long", "int"}},
						"total_teams_registered":   bson.M{"bsonType": bson.A{"long", "int"}},
						"total_members_registered": bson.M{"bsonType": bson.A{"long", "int"}},
					},
				},
				"created_at": bson.M{"bsonType": "date"},
				"updated_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func teamsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"event_id", "name", "name_ci", "members"},
			"properties": bson.M{
				"event_id": bson.M{"bsonType": "objectId"},
				"name":     bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":  bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},

				"lead_name":     bson.M{"bsonType": "string"},
				"lead_email":    bson.M{"bsonType": "string"},
				"lead_email_ci": bson.M{"bsonType": "string"},

				"members": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"name", "email", "token", "is_checked_in"},
						"properties": bson.M{
							"name":          bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
							"email":         bson.M{"bsonType": "string", "minLength": 3},
							"affiliation":   bson.M{"bsonType": "string"},
							"roll_id":       bson.M{"bsonType": "string"},
							"token":         bson.M{"bsonType": "string", "pattern": "^mem_[0-9a-f]{32}$"},
							"is_checked_in": bson.M{"bsonType": "bool"},
							"check_in_time": bson.M{"bsonType": "date"},
						},
					},
				},

				"created_at": bson.M{"bsonType": "date"},
				"updated_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func checkinLogSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"timestamp", "token", "outcome"},
			"properties": bson.M{
				"timestamp": bson.M{"bsonType": "date"},
				"event_id":  bson.M{"bsonType": "objectId"},
				"team_id":   bson.M{"bsonType": "objectId"},

				"token":        bson.M{"bsonType": "string", "minLength": 1},
				"member_name":  bson.M{"bsonType": "string"},
				"member_email": bson.M{"bsonType": "string"},
				"team_name":    bson.M{"bsonType": "string"},

				"outcome": bson.M{"enum": bson.A{
					"success", "already_checked_in", "not_found", "wrong_event", "storage_error",
				}},
				"reason": bson.M{"bsonType": "string"},

				"actor_id":   bson.M{"bsonType": "string"},
				"actor_name": bson.M{"bsonType": "string"},
			},
		},
	}
}

func foodLogSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"timestamp", "token", "eligible", "distributed"},
			"properties": bson.M{
				"timestamp": bson.M{"bsonType": "date"},
				"event_id":  bson.M{"bsonType": "objectId"},
				"team_id":   bson.M{"bsonType": "objectId"},

				"token":        bson.M{"bsonType": "string", "minLength": 1},
				"member_name":  bson.M{"bsonType": "string"},
				"member_email": bson.M{"bsonType": "string"},
				"team_name":    bson.M{"bsonType": "string"},

				"eligible": bson.M{"bsonType": "bool"},
				"reason": bson.M{"enum": bson.A{
					"invalid-canteen-token", "event-inactive", "member-not-found",
					"wrong-event", "not-checked-in", "storage-error",
				}},
				"meal":        bson.M{"bsonType": "string"},
				"distributed": bson.M{"bsonType": "bool"},

				"actor_id":   bson.M{"bsonType": "string"},
				"actor_name": bson.M{"bsonType": "string"},
			},
		},
	}
}
