package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/storage"
)

const userColumns = `id, company_id, email, password_hash, roles, is_active, email_verified,
	last_login_at, created_at, deleted_at,
	reset_token_hash, reset_token_expiry, reset_token_device_info, reset_token_ip_address`

type UserRepository struct {
	db storage.DBTX
}

func NewUserRepository(db storage.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetResetToken(
	ctx context.Context,
	id, tokenHash string,
	expiry time.Time,
	meta models.UserMetadata,
) error {
	query := `UPDATE users SET reset_token_hash = $2, reset_token_expiry = $3,
		reset_token_device_info = $4, reset_token_ip_address = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, tokenHash, expiry, meta.DeviceInfo, meta.IPAddress)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id string) error {
	query := `UPDATE users SET reset_token_hash = NULL, reset_token_expiry = NULL,
		reset_token_device_info = NULL, reset_token_ip_address = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to clear reset token: %w", err)
	}
	return nil
}

func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE users SET reset_token_hash = NULL, reset_token_expiry = NULL,
		reset_token_device_info = NULL, reset_token_ip_address = NULL
		WHERE reset_token_expiry IS NOT NULL AND reset_token_expiry < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired reset tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var (
		user        models.User
		lastLogin   sql.NullTime
		deletedAt   sql.NullTime
		resetHash   sql.NullString
		resetExpiry sql.NullTime
		resetDevice sql.NullString
		resetIP     sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.CompanyID,
		&user.Email,
		&user.PasswordHash,
		pq.Array(&user.Roles),
		&user.IsActive,
		&user.EmailVerified,
		&lastLogin,
		&user.CreatedAt,
		&deletedAt,
		&resetHash,
		&resetExpiry,
		&resetDevice,
		&resetIP,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	if deletedAt.Valid {
		user.DeletedAt = &deletedAt.Time
	}
	if resetHash.Valid {
		user.ResetTokenHash = &resetHash.String
	}
	if resetExpiry.Valid {
		user.ResetTokenExpiry = &resetExpiry.Time
	}
	if resetDevice.Valid {
		user.ResetTokenDeviceInfo = &resetDevice.String
	}
	if resetIP.Valid {
		user.ResetTokenIPAddress = &resetIP.String
	}

	return &user, nil
}
