package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/storage"
)

// AuthService composes the credential verifier, the token codec and the
// refresh store into the sign-in / refresh / sign-out flows.
type AuthService struct {
	passwords *PasswordService
	tokens    *TokenService
	refresh   *RefreshService
	users     storage.UserRepository
	log       *zap.SugaredLogger
}

func NewAuthService(
	passwords *PasswordService,
	tokens *TokenService,
	refresh *RefreshService,
	users storage.UserRepository,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		passwords: passwords,
		tokens:    tokens,
		refresh:   refresh,
		users:     users,
		log:       log,
	}
}

type SignInResult struct {
	AccessToken  string
	RefreshToken string
	User         models.PublicUser
}

// SignIn returns the same ErrInvalidCredentials for unknown email, disabled
// account and wrong password so the endpoint cannot enumerate accounts.
func (a *AuthService) SignIn(
	ctx context.Context,
	email, password string,
	meta models.UserMetadata,
) (*SignInResult, error) {
	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !a.passwords.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if a.passwords.NeedsRehash(user.PasswordHash) {
		if newHash, err := a.passwords.HashPassword(password); err == nil {
			if err := a.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
				a.log.Warnw("failed to store upgraded password hash", "user_id", user.ID, "error", err)
			}
		}
	}

	accessToken, err := a.tokens.CreateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	_, rawRefresh, err := a.refresh.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	if err := a.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		a.log.Warnw("failed to update last login", "user_id", user.ID, "error", err)
	}

	return &SignInResult{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		User:         user.Public(),
	}, nil
}

// Refresh rotates the presented refresh token and issues a fresh access
// token. The user row is re-fetched on every refresh: access tokens are not
// individually revocable, so this is where a disabled account actually gets
// cut off.
func (a *AuthService) Refresh(
	ctx context.Context,
	rawRefreshToken string,
	meta models.UserMetadata,
) (*SignInResult, error) {
	record, err := a.refresh.Validate(ctx, rawRefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountNotActive
	}

	_, newRaw, err := a.refresh.Rotate(ctx, record, meta)
	if err != nil {
		return nil, err
	}

	accessToken, err := a.tokens.CreateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &SignInResult{
		AccessToken:  accessToken,
		RefreshToken: newRaw,
		User:         user.Public(),
	}, nil
}

// SignOut revokes the matching refresh record. Unknown, expired or
// already-revoked tokens report success too; sign-out leaks nothing about
// token validity.
func (a *AuthService) SignOut(ctx context.Context, rawRefreshToken string) error {
	record, err := a.refresh.Validate(ctx, rawRefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			return nil
		}
		return err
	}
	return a.refresh.Revoke(ctx, record.TokenID)
}
