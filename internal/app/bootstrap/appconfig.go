// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig is where everything specific to GateCheck lives: the Mongo
// connection, the session cookie, and the access keys staff devices use
// to sign in at gate and canteen stations.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max pooled connections
	MongoMinPoolSize uint64 // Min pooled connections

	// Session management configuration
	SessionKey string // Secret key for signing session cookies (must be strong in production)

	// Access keys for staff device sign-in, stored as bcrypt hashes.
	// A blank hash disables that role's sign-in entirely.
	AdminKeyHash string // bcrypt hash of the admin access key
	StaffKeyHash string // bcrypt hash of the gate/canteen staff access key
}
