package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/slotbook/slotbook/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrTokenNotFound = errors.New("refresh token not found")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiry time.Time, meta models.UserMetadata) error
	ClearResetToken(ctx context.Context, id string) error
	ClearExpiredResetTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

type RefreshTokenRepository interface {
	CreateToken(ctx context.Context, record models.RefreshTokenRecord) error
	// GetActiveTokenByHash returns the record matching hash that is neither
	// revoked nor expired at now, or ErrTokenNotFound.
	GetActiveTokenByHash(ctx context.Context, hash string, now time.Time) (*models.RefreshTokenRecord, error)
	TouchToken(ctx context.Context, tokenID string, at time.Time) error
	// RevokeToken sets revoked_at if it is still null. The returned bool
	// reports whether this call performed the revocation.
	RevokeToken(ctx context.Context, tokenID string, at time.Time) (bool, error)
	// RotateToken atomically revokes oldTokenID and inserts next. It returns
	// false when the old record was already revoked by a concurrent rotation;
	// in that case next is not inserted.
	RotateToken(ctx context.Context, oldTokenID string, next models.RefreshTokenRecord) (bool, error)
	RevokeAllUserTokens(ctx context.Context, userID string, at time.Time) (int64, error)
	ListActiveUserTokens(ctx context.Context, userID string, now time.Time) ([]models.RefreshTokenRecord, error)
	DeleteExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

type Storage interface {
	UserRepository
	RefreshTokenRepository
}
