package models

import "time"

// RefreshTokenRecord is the persisted form of an opaque refresh token.
// HashedToken is SHA-256 of the raw value; the raw value is never stored.
type RefreshTokenRecord struct {
	TokenID     string     `json:"token_id"`
	UserID      string     `json:"user_id"`
	HashedToken string     `json:"-"`
	ExpiresAt   time.Time  `json:"expires_at"`
	DeviceInfo  string     `json:"device_info"`
	IPAddress   string     `json:"ip_address"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Valid reports whether the record is usable: not revoked and not expired.
func (r *RefreshTokenRecord) Valid(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

type UserMetadata struct {
	DeviceInfo string `json:"device_info"`
	IPAddress  string `json:"ip_address"`
}
