// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/gatecheck/internal/app/engine"
	authfeature "github.com/dalemusser/gatecheck/internal/app/features/auth"
	canteenfeature "github.com/dalemusser/gatecheck/internal/app/features/canteen"
	eventsfeature "github.com/dalemusser/gatecheck/internal/app/features/events"
	gatefeature "github.com/dalemusser/gatecheck/internal/app/features/gate"
	healthfeature "github.com/dalemusser/gatecheck/internal/app/features/health"
	ledgerfeature "github.com/dalemusser/gatecheck/internal/app/features/ledger"
	teamsfeature "github.com/dalemusser/gatecheck/internal/app/features/teams"
	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// GateCheck is a JSON API. The router mounts the station-facing scan
// surfaces (gate, canteen), the admin surfaces (events, teams, ledger),
// and the shared plumbing (health, auth).
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Session cookies carry the signed-in staff actor between scans.
	// Secure cookies are enabled in production mode.
	auth.InitSessionStore(appCfg.SessionKey, coreCfg.Env == "prod")

	db := deps.GateCheckMongoDatabase
	eng := engine.New(db, logger)

	r := chi.NewRouter()

	// Global auth middleware: loads the staff Actor into context if a
	// session exists. Handlers read it via auth.CurrentActor(r).
	r.Use(auth.LoadActor)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.GateCheckMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Staff device sign-in/out
	authHandler := authfeature.NewHandler(appCfg.AdminKeyHash, appCfg.StaffKeyHash, logger)
	r.Mount("/auth", authfeature.Routes(authHandler))

	// Event administration
	eventsHandler := eventsfeature.NewHandler(db, logger)
	r.Mount("/events", eventsfeature.Routes(eventsHandler))

	// Team registration and roster views
	teamsHandler := teamsfeature.NewHandler(db, logger)
	r.Mount("/teams", teamsfeature.Routes(teamsHandler))

	// Gate stations: check-in scans and member status
	gateHandler := gatefeature.NewHandler(eng, logger)
	r.Mount("/gate", gatefeature.Routes(gateHandler))

	// Canteen stations: eligibility checks and food distribution
	canteenHandler := canteenfeature.NewHandler(eng, logger)
	r.Mount("/canteen", canteenfeature.Routes(canteenHandler))

	// Scan ledgers (admin reporting)
	ledgerHandler := ledgerfeature.NewHandler(db, logger)
	r.Mount("/ledger", ledgerfeature.Routes(ledgerHandler))

	return r, nil
}
