// internal/app/system/sanitize/sanitize.go

// Package sanitize cleans roster input strings before storage.
//
// Team and member names end up in ledger snapshots and JSON responses
// consumed by staff devices; stripping markup at the door keeps stored
// data display-safe everywhere downstream.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict strips all HTML; names and affiliations are plain text.
var strict = bluemonday.StrictPolicy()

// Text returns the input with any HTML removed and whitespace trimmed.
func Text(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
