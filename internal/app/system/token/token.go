// internal/app/system/token/token.go

// Package token generates and classifies the opaque scan tokens used
// throughout the application.
//
// Two namespaces exist and must never be interchangeable:
//
//   - member tokens ("mem_…") identify one member for entry and food
//     scans; issued exactly once when the member is added to a team.
//   - canteen tokens ("cant_…") identify which event a canteen scanner
//     belongs to, not who is being scanned.
//
// Tokens carry no sequence or embedded identity: the payload is
// cryptographically random, so valid tokens cannot be enumerated or
// predicted from previously issued ones.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	memberPrefix  = "mem_"
	canteenPrefix = "cant_"

	// randLen is the number of random bytes per token (32 hex chars).
	randLen = 16
)

// NewMemberToken returns a fresh member scan token.
// Panics if the system's cryptographic random number generator fails.
func NewMemberToken() string {
	return memberPrefix + randomHex()
}

// NewCanteenToken returns a fresh canteen token for an event.
// Panics if the system's cryptographic random number generator fails.
func NewCanteenToken() string {
	return canteenPrefix + randomHex()
}

// IsMemberToken reports whether the string is shaped like a member token.
// This is a namespace check only; it says nothing about whether the
// token resolves to a member.
func IsMemberToken(s string) bool {
	return strings.HasPrefix(s, memberPrefix) && len(s) == len(memberPrefix)+randLen*2
}

// IsCanteenToken reports whether the string is shaped like a canteen token.
func IsCanteenToken(s string) bool {
	return strings.HasPrefix(s, canteenPrefix) && len(s) == len(canteenPrefix)+randLen*2
}

func randomHex() string {
	b := make([]byte, randLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
