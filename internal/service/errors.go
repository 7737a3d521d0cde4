package service

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials covers unknown email, disabled account and wrong
	// password alike; callers must not be able to tell which one happened.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidOrExpiredToken covers every refresh/reset token failure mode:
	// unknown, revoked, expired, malformed, lost rotation race.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	ErrAccountNotActive = errors.New("account is not active")
	ErrHashingFailure   = errors.New("password hashing failure")
)

// ValidationError carries every violated rule at once so the client can show
// them all in one round trip.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// SecureCompare is a timing-safe string equality check. A length mismatch
// returns false instead of erroring; ConstantTimeCompare already refuses to
// compare unequal lengths, so the short-circuit leaks nothing secret.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
