package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/storage"
	"github.com/slotbook/slotbook/internal/util"
)

// RefreshService owns the opaque refresh-token lifecycle. Raw tokens are
// high-entropy random strings handed to the client once; only their SHA-256
// digest is persisted.
type RefreshService struct {
	tokens storage.RefreshTokenRepository
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewRefreshService(
	tokens storage.RefreshTokenRepository,
	cfg *util.TokenConfig,
	log *zap.SugaredLogger,
) *RefreshService {
	return &RefreshService{
		tokens: tokens,
		ttl:    cfg.RefreshTTL,
		log:    log,
	}
}

// GenerateToken returns a fresh opaque token and its persisted digest.
func GenerateToken() (raw, hash string, err error) {
	buf := make([]byte, util.RawTokenLength)
	if _, err = rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

// HashToken is the shared one-way mapping from raw token to stored column,
// used for both refresh and password-reset tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (rs *RefreshService) Issue(
	ctx context.Context,
	userID string,
	meta models.UserMetadata,
) (*models.RefreshTokenRecord, string, error) {
	raw, hash, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	record := models.RefreshTokenRecord{
		TokenID:     uuid.NewString(),
		UserID:      userID,
		HashedToken: hash,
		ExpiresAt:   now.Add(rs.ttl),
		DeviceInfo:  meta.DeviceInfo,
		IPAddress:   meta.IPAddress,
		CreatedAt:   now,
	}

	if err := rs.tokens.CreateToken(ctx, record); err != nil {
		return nil, "", fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return &record, raw, nil
}

// Validate resolves a presented raw token to its live record. The lookup is
// already by digest; the explicit timing-safe compare afterwards is defense
// in depth against hash-lookup side channels.
func (rs *RefreshService) Validate(ctx context.Context, rawToken string) (*models.RefreshTokenRecord, error) {
	now := time.Now().UTC()
	hash := HashToken(rawToken)

	record, err := rs.tokens.GetActiveTokenByHash(ctx, hash, now)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if !SecureCompare(record.HashedToken, hash) {
		return nil, ErrInvalidOrExpiredToken
	}

	if err := rs.tokens.TouchToken(ctx, record.TokenID, now); err != nil {
		rs.log.Warnw("failed to update token last_used_at", "token_id", record.TokenID, "error", err)
	}

	return record, nil
}

// Rotate replaces old with a brand new record in one atomic step. Exactly one
// of any set of concurrent callers presenting the same token succeeds; the
// rest get ErrInvalidOrExpiredToken and no new record is created for them.
func (rs *RefreshService) Rotate(
	ctx context.Context,
	old *models.RefreshTokenRecord,
	meta models.UserMetadata,
) (*models.RefreshTokenRecord, string, error) {
	raw, hash, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	next := models.RefreshTokenRecord{
		TokenID:     uuid.NewString(),
		UserID:      old.UserID,
		HashedToken: hash,
		ExpiresAt:   now.Add(rs.ttl),
		DeviceInfo:  meta.DeviceInfo,
		IPAddress:   meta.IPAddress,
		CreatedAt:   now,
	}

	rotated, err := rs.tokens.RotateToken(ctx, old.TokenID, next)
	if err != nil {
		return nil, "", fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !rotated {
		rs.log.Warnw("refresh token replay lost rotation race",
			"token_id", old.TokenID, "user_id", old.UserID)
		return nil, "", ErrInvalidOrExpiredToken
	}

	return &next, raw, nil
}

// Revoke soft-deletes a record. Idempotent: revoking an already-revoked or
// unknown token is not an error.
func (rs *RefreshService) Revoke(ctx context.Context, tokenID string) error {
	if _, err := rs.tokens.RevokeToken(ctx, tokenID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser kills every live session, e.g. after a password reset.
func (rs *RefreshService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	revoked, err := rs.tokens.RevokeAllUserTokens(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return revoked, nil
}

func (rs *RefreshService) ListSessions(ctx context.Context, userID string) ([]models.RefreshTokenRecord, error) {
	records, err := rs.tokens.ListActiveUserTokens(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return records, nil
}

// RevokeSession revokes one of the caller's own sessions by id. Unknown or
// foreign token ids report ErrInvalidOrExpiredToken.
func (rs *RefreshService) RevokeSession(ctx context.Context, userID, tokenID string) error {
	records, err := rs.ListSessions(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.TokenID == tokenID {
			return rs.Revoke(ctx, tokenID)
		}
	}
	return ErrInvalidOrExpiredToken
}
