package models

import "time"

// User is the persistence-layer account row. The reset_token_* fields hold at
// most one active password-reset token; issuing a new one overwrites the prior.
type User struct {
	ID            string     `json:"id"`
	CompanyID     string     `json:"company_id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Roles         []string   `json:"roles"`
	IsActive      bool       `json:"is_active"`
	EmailVerified bool       `json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"-"`

	ResetTokenHash       *string    `json:"-"`
	ResetTokenExpiry     *time.Time `json:"-"`
	ResetTokenDeviceInfo *string    `json:"-"`
	ResetTokenIPAddress  *string    `json:"-"`
}

// PublicUser is the profile shape returned to clients.
type PublicUser struct {
	ID            string   `json:"id"`
	CompanyID     string   `json:"company_id"`
	Email         string   `json:"email"`
	Roles         []string `json:"roles"`
	EmailVerified bool     `json:"email_verified"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		CompanyID:     u.CompanyID,
		Email:         u.Email,
		Roles:         u.Roles,
		EmailVerified: u.EmailVerified,
	}
}
