package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TokenCleanup is the retention janitor for refresh-token rows. It runs on an
// independent periodic trigger, concurrently with live traffic, and only ever
// touches rows already matching a dead-state predicate (expired, or revoked
// before the retention cutoff), so it can never race a live rotation.
type TokenCleanup struct {
	store            *RefreshTokenStore
	logger           *zap.Logger
	interval         time.Duration
	revokedRetention time.Duration
}

// NewTokenCleanup creates a new token cleanup job
func NewTokenCleanup(store *RefreshTokenStore, logger *zap.Logger, interval, revokedRetention time.Duration) *TokenCleanup {
	return &TokenCleanup{
		store:            store,
		logger:           logger,
		interval:         interval,
		revokedRetention: revokedRetention,
	}
}

// Run executes cleanup sweeps on the configured interval until the context is
// canceled. Each sweep is idempotent and safe to re-run.
func (c *TokenCleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("token cleanup started",
		zap.Duration("interval", c.interval),
		zap.Duration("revoked_retention", c.revokedRetention),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("token cleanup stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass.
func (c *TokenCleanup) Sweep(ctx context.Context) {
	now := time.Now()

	expired, err := c.store.DeleteExpired(ctx, now)
	if err != nil {
		c.logger.Error("token cleanup: expired sweep failed", zap.Error(err))
	}

	revoked, err := c.store.DeleteRevokedBefore(ctx, now.Add(-c.revokedRetention))
	if err != nil {
		c.logger.Error("token cleanup: revoked sweep failed", zap.Error(err))
	}

	if expired > 0 || revoked > 0 {
		c.logger.Info("token cleanup sweep",
			zap.Int64("expired_deleted", expired),
			zap.Int64("revoked_deleted", revoked),
		)
	}
}
