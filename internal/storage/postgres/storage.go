package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/slotbook/slotbook/internal/models"
)

type Storage struct {
	db *sql.DB
	*UserRepository
	*RefreshTokenRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                     db,
		UserRepository:         NewUserRepository(db),
		RefreshTokenRepository: NewRefreshTokenRepository(db),
	}
}

// RotateToken revokes the old record and inserts its replacement in one
// transaction. The conditional revoke is the arbiter under concurrent
// rotation: if another request already flipped revoked_at, this call returns
// false without inserting and the transaction is rolled back.
func (s *Storage) RotateToken(
	ctx context.Context,
	oldTokenID string,
	next models.RefreshTokenRecord,
) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	tokenRepoTx := NewRefreshTokenRepository(tx)

	revoked, err := tokenRepoTx.RevokeToken(ctx, oldTokenID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to revoke old token in tx: %w", err)
	}
	if !revoked {
		return false, nil
	}

	if err := tokenRepoTx.CreateToken(ctx, next); err != nil {
		return false, fmt.Errorf("failed to create new token in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}
