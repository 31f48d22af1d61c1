// internal/app/system/inputval/inputval.go

// Package inputval validates user-supplied fields before they reach
// the stores.
package inputval

import (
	"strings"
)

// Field length caps. Registration payloads come from public forms, so
// every free-text field is bounded.
const (
	MaxNameLen  = 120
	MaxEmailLen = 254
	MaxSlugLen  = 64
)

// IsValidEmail reports whether s looks like a deliverable address.
// Single-label domains are accepted (useful for dev/test environments);
// display-name forms like "Name <a@b>" are not.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > MaxEmailLen {
		return false
	}
	if strings.ContainsAny(s, " <>\t") {
		return false
	}

	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]

	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(domain, "..") {
		return false
	}
	return true
}

// IsValidSlug reports whether s is usable as an event slug: lowercase
// letters, digits, and interior hyphens.
func IsValidSlug(s string) bool {
	if s == "" || len(s) > MaxSlugLen {
		return false
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// IsValidName reports whether s is acceptable as a display name
// (event, team, member, or device name).
func IsValidName(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && len(s) <= MaxNameLen
}
