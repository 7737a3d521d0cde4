package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/storage"
	"github.com/slotbook/slotbook/internal/util"
)

// ResetThrottle guards against reset-mail flooding for one account.
type ResetThrottle interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

// ResetService issues and consumes single-use password-reset tokens. The raw
// token is a codec-signed JWT handed out in the mailed link; only its SHA-256
// digest and expiry live on the user row, so issuing a new token implicitly
// invalidates the previous one.
type ResetService struct {
	tokens    *TokenService
	passwords *PasswordService
	refresh   *RefreshService
	users     storage.UserRepository
	throttle  ResetThrottle
	mailer    Mailer
	ttl       time.Duration
	linkBase  string
	log       *zap.SugaredLogger
}

func NewResetService(
	tokens *TokenService,
	passwords *PasswordService,
	refresh *RefreshService,
	users storage.UserRepository,
	throttle ResetThrottle,
	mailer Mailer,
	tokenCfg *util.TokenConfig,
	resetCfg *util.ResetConfig,
	log *zap.SugaredLogger,
) *ResetService {
	return &ResetService{
		tokens:    tokens,
		passwords: passwords,
		refresh:   refresh,
		users:     users,
		throttle:  throttle,
		mailer:    mailer,
		ttl:       tokenCfg.ResetTTL,
		linkBase:  resetCfg.LinkBaseURL,
		log:       log,
	}
}

// RequestReset starts the forgot-password flow. Unknown and inactive accounts
// return nil just like known ones, so the endpoint cannot be used to probe
// for registered emails. Only a mail delivery failure is surfaced.
func (s *ResetService) RequestReset(ctx context.Context, email string, meta models.UserMetadata) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.log.Infow("password reset requested for unknown email", "ip", meta.IPAddress)
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		s.log.Infow("password reset requested for inactive account", "user_id", user.ID)
		return nil
	}

	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, user.ID)
		if err != nil {
			// Fail open: a broken throttle must not block legitimate resets.
			s.log.Warnw("reset throttle unavailable", "error", err)
		} else if !allowed {
			s.log.Infow("password reset throttled", "user_id", user.ID)
			return nil
		}
	}

	rawToken, err := s.tokens.CreateResetToken(user)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	expiry := time.Now().UTC().Add(s.ttl)
	if err := s.users.SetResetToken(ctx, user.ID, HashToken(rawToken), expiry, meta); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := s.linkBase + "?token=" + rawToken
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}

	return nil
}

// VerifyToken runs both independent checks: the JWT's own signature/expiry
// and the hash+expiry stored on the user row. They can drift (clock skew, a
// row overwritten by a newer request), and either failing rejects.
func (s *ResetService) VerifyToken(ctx context.Context, rawToken string) (*models.User, error) {
	claims, err := s.tokens.VerifyResetToken(rawToken)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInvalidOrExpiredToken
	}
	if user.ResetTokenHash == nil || user.ResetTokenExpiry == nil {
		return nil, ErrInvalidOrExpiredToken
	}
	if user.ResetTokenExpiry.Before(time.Now().UTC()) {
		return nil, ErrInvalidOrExpiredToken
	}
	if !SecureCompare(*user.ResetTokenHash, HashToken(rawToken)) {
		return nil, ErrInvalidOrExpiredToken
	}

	return user, nil
}

// ResetPassword completes the flow: verify, update the hash, consume the
// token, revoke every live session. Consumption failure after a committed
// password change is a warning, never a rollback.
func (s *ResetService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	user, err := s.VerifyToken(ctx, rawToken)
	if err != nil {
		return err
	}

	if violations := s.passwords.ValidateStrength(newPassword); len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	newHash, err := s.passwords.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.users.ClearResetToken(ctx, user.ID); err != nil {
		s.log.Warnw("failed to consume reset token after password change",
			"user_id", user.ID, "error", err)
	}

	if revoked, err := s.refresh.RevokeAllForUser(ctx, user.ID); err != nil {
		s.log.Warnw("failed to revoke sessions after password change",
			"user_id", user.ID, "error", err)
	} else if revoked > 0 {
		s.log.Infow("revoked sessions after password change",
			"user_id", user.ID, "count", revoked)
	}

	s.mailer.NotifyPasswordChanged(ctx, user.Email)

	return nil
}
