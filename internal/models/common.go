package models

const (
	// MwClaimsKey is the echo context key under which the bearer middleware
	// stores verified access-token claims.
	MwClaimsKey = "auth_claims"
)
