package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/storage"
)

// Storage is an in-memory implementation of storage.Storage with the same
// conditional-revoke semantics as the postgres implementation. Used by the
// service-layer tests.
type Storage struct {
	mu     sync.Mutex
	users  map[string]models.User
	tokens map[string]models.RefreshTokenRecord
}

func NewStorage() *Storage {
	return &Storage{
		users:  make(map[string]models.User),
		tokens: make(map[string]models.RefreshTokenRecord),
	}
}

// AddUser seeds an account; test helper, no production counterpart here
// because account creation lives in the tenant CRUD layer.
func (s *Storage) AddUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) && u.DeletedAt == nil {
			user := u
			return &user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, storage.ErrUserNotFound
	}
	user := u
	return &user, nil
}

func (s *Storage) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.LastLoginAt = &at
	s.users[id] = u
	return nil
}

func (s *Storage) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	s.users[id] = u
	return nil
}

func (s *Storage) SetResetToken(
	_ context.Context,
	id, tokenHash string,
	expiry time.Time,
	meta models.UserMetadata,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiry = &expiry
	u.ResetTokenDeviceInfo = &meta.DeviceInfo
	u.ResetTokenIPAddress = &meta.IPAddress
	s.users[id] = u
	return nil
}

func (s *Storage) ClearResetToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
	u.ResetTokenDeviceInfo = nil
	u.ResetTokenIPAddress = nil
	s.users[id] = u
	return nil
}

func (s *Storage) ClearExpiredResetTokens(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleared int64
	for id, u := range s.users {
		if u.ResetTokenExpiry != nil && u.ResetTokenExpiry.Before(cutoff) {
			u.ResetTokenHash = nil
			u.ResetTokenExpiry = nil
			u.ResetTokenDeviceInfo = nil
			u.ResetTokenIPAddress = nil
			s.users[id] = u
			cleared++
		}
	}
	return cleared, nil
}

func (s *Storage) CreateToken(_ context.Context, record models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[record.TokenID] = record
	return nil
}

func (s *Storage) GetActiveTokenByHash(
	_ context.Context,
	hash string,
	now time.Time,
) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.tokens {
		if r.HashedToken == hash && r.Valid(now) {
			record := r
			return &record, nil
		}
	}
	return nil, storage.ErrTokenNotFound
}

func (s *Storage) TouchToken(_ context.Context, tokenID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.tokens[tokenID]
	if !ok {
		return storage.ErrTokenNotFound
	}
	r.LastUsedAt = &at
	s.tokens[tokenID] = r
	return nil
}

func (s *Storage) RevokeToken(_ context.Context, tokenID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeLocked(tokenID, at), nil
}

func (s *Storage) RotateToken(
	_ context.Context,
	oldTokenID string,
	next models.RefreshTokenRecord,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.revokeLocked(oldTokenID, time.Now().UTC()) {
		return false, nil
	}
	s.tokens[next.TokenID] = next
	return true, nil
}

func (s *Storage) RevokeAllUserTokens(_ context.Context, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var revoked int64
	for id, r := range s.tokens {
		if r.UserID == userID && r.RevokedAt == nil {
			if s.revokeLocked(id, at) {
				revoked++
			}
		}
	}
	return revoked, nil
}

func (s *Storage) ListActiveUserTokens(
	_ context.Context,
	userID string,
	now time.Time,
) ([]models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.RefreshTokenRecord
	for _, r := range s.tokens {
		if r.UserID == userID && r.Valid(now) {
			records = append(records, r)
		}
	}
	return records, nil
}

func (s *Storage) DeleteExpiredTokens(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, r := range s.tokens {
		if r.ExpiresAt.Before(cutoff) || r.RevokedAt != nil {
			delete(s.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Storage) revokeLocked(tokenID string, at time.Time) bool {
	r, ok := s.tokens[tokenID]
	if !ok || r.RevokedAt != nil {
		return false
	}
	r.RevokedAt = &at
	s.tokens[tokenID] = r
	return true
}
