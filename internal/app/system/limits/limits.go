// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON API.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxScanBodySize bounds scan and sign-in payloads, which carry a
	// token and a little metadata.
	MaxScanBodySize = 4 << 10 // 4 KB

	// MaxRegistrationBodySize bounds team registration payloads, which
	// carry a full member roster.
	MaxRegistrationBodySize = 256 << 10 // 256 KB
)
