package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/storage"
)

const tokenColumns = `token_id, user_id, hashed_token, expires_at, device_info, ip_address,
	last_used_at, revoked_at, created_at`

type RefreshTokenRepository struct {
	db storage.DBTX
}

func NewRefreshTokenRepository(db storage.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) CreateToken(ctx context.Context, record models.RefreshTokenRecord) error {
	query := `INSERT INTO refresh_tokens (token_id, user_id, hashed_token, expires_at, device_info, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		record.TokenID,
		record.UserID,
		record.HashedToken,
		record.ExpiresAt,
		record.DeviceInfo,
		record.IPAddress,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) GetActiveTokenByHash(
	ctx context.Context,
	hash string,
	now time.Time,
) (*models.RefreshTokenRecord, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens
		WHERE hashed_token = $1 AND revoked_at IS NULL AND expires_at > $2`
	record, err := scanToken(r.db.QueryRowContext(ctx, query, hash, now))
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *RefreshTokenRepository) TouchToken(ctx context.Context, tokenID string, at time.Time) error {
	query := `UPDATE refresh_tokens SET last_used_at = $2 WHERE token_id = $1`
	if _, err := r.db.ExecContext(ctx, query, tokenID, at); err != nil {
		return fmt.Errorf("failed to touch refresh token: %w", err)
	}
	return nil
}

// RevokeToken is the single conditional state transition that rotation and
// sign-out rely on: only the caller that flips revoked_at from NULL wins.
func (r *RefreshTokenRepository) RevokeToken(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	query := `UPDATE refresh_tokens SET revoked_at = $2 WHERE token_id = $1 AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, tokenID, at)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *RefreshTokenRepository) RevokeAllUserTokens(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (r *RefreshTokenRepository) ListActiveUserTokens(
	ctx context.Context,
	userID string,
	now time.Time,
) ([]models.RefreshTokenRecord, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list user tokens: %w", err)
	}
	defer rows.Close()

	var records []models.RefreshTokenRecord
	for rows.Next() {
		record, err := scanTokenRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

func (r *RefreshTokenRepository) DeleteExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1 OR revoked_at IS NOT NULL`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func scanToken(row *sql.Row) (*models.RefreshTokenRecord, error) {
	var (
		record     models.RefreshTokenRecord
		lastUsedAt sql.NullTime
		revokedAt  sql.NullTime
	)
	err := row.Scan(
		&record.TokenID,
		&record.UserID,
		&record.HashedToken,
		&record.ExpiresAt,
		&record.DeviceInfo,
		&record.IPAddress,
		&lastUsedAt,
		&revokedAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if lastUsedAt.Valid {
		record.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		record.RevokedAt = &revokedAt.Time
	}
	return &record, nil
}

func scanTokenRows(rows *sql.Rows) (*models.RefreshTokenRecord, error) {
	var (
		record     models.RefreshTokenRecord
		lastUsedAt sql.NullTime
		revokedAt  sql.NullTime
	)
	err := rows.Scan(
		&record.TokenID,
		&record.UserID,
		&record.HashedToken,
		&record.ExpiresAt,
		&record.DeviceInfo,
		&record.IPAddress,
		&lastUsedAt,
		&revokedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan refresh token: %w", err)
	}
	if lastUsedAt.Valid {
		record.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		record.RevokedAt = &revokedAt.Time
	}
	return &record, nil
}
