package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/slotbook/slotbook/internal/storage"
	"github.com/slotbook/slotbook/internal/util"
)

// CleanupService sweeps revoked and long-expired refresh records plus stale
// reset-token columns on a fixed interval. Owned by the process lifecycle:
// main starts it after wiring and stops it on shutdown. A failed sweep is
// logged and skipped, never fatal.
type CleanupService struct {
	storage  storage.Storage
	interval time.Duration
	grace    time.Duration
	log      *zap.SugaredLogger
	stop     chan struct{}
	done     chan struct{}
}

func NewCleanupService(st storage.Storage, cfg *util.CleanupConfig, log *zap.SugaredLogger) *CleanupService {
	return &CleanupService{
		storage:  st,
		interval: cfg.Interval,
		grace:    cfg.Grace,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *CleanupService) Start(ctx context.Context) {
	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.SweepOnce(ctx)
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *CleanupService) Stop() {
	close(c.stop)
	<-c.done
}

// SweepOnce runs a single pass. Expired records are kept for the grace window
// so recent rejections stay diagnosable.
func (c *CleanupService) SweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-c.grace)

	deleted, err := c.storage.DeleteExpiredTokens(ctx, cutoff)
	if err != nil {
		c.log.Warnw("refresh token sweep failed", "error", err)
	} else if deleted > 0 {
		c.log.Infow("swept refresh tokens", "deleted", deleted)
	}

	cleared, err := c.storage.ClearExpiredResetTokens(ctx, cutoff)
	if err != nil {
		c.log.Warnw("reset token sweep failed", "error", err)
	} else if cleared > 0 {
		c.log.Infow("cleared expired reset tokens", "cleared", cleared)
	}
}
