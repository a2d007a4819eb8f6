package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshStoreCreate(t *testing.T) {
	repo := newFakeTokenRepo()
	store := NewRefreshTokenStore(repo, 7*24*time.Hour)
	ctx := context.Background()

	device := "deviceA"
	ip := "203.0.113.7"

	record, err := store.Create(ctx, 42, &device, &ip)
	require.NoError(t, err)

	assert.NotEmpty(t, record.Token)
	assert.Equal(t, int64(42), record.UserID)
	assert.False(t, record.Revoked)
	assert.WithinDuration(t, record.IssuedAt.Add(7*24*time.Hour), record.ExpiresAt, time.Second)

	other, err := store.Create(ctx, 42, &device, &ip)
	require.NoError(t, err)
	assert.NotEqual(t, record.Token, other.Token)
}

func TestRefreshStoreCreateRetriesOnCollision(t *testing.T) {
	repo := newFakeTokenRepo()
	repo.duplicatesLeft = 2
	store := NewRefreshTokenStore(repo, time.Hour)

	record, err := store.Create(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, record.Token)
}

func TestRefreshStoreCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newFakeTokenRepo()
	repo.duplicatesLeft = createRetries
	store := NewRefreshTokenStore(repo, time.Hour)

	_, err := store.Create(context.Background(), 1, nil, nil)
	assert.Error(t, err)
}

func TestRefreshStoreFindValid(t *testing.T) {
	repo := newFakeTokenRepo()
	store := NewRefreshTokenStore(repo, time.Hour)
	ctx := context.Background()

	record, err := store.Create(ctx, 42, nil, nil)
	require.NoError(t, err)

	found, err := store.FindValid(ctx, record.Token)
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)

	// Revoked rows and expired rows are identically absent.
	revoked, err := store.Revoke(ctx, record.Token)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = store.FindValid(ctx, record.Token)
	assert.Error(t, err)

	expiredStore := NewRefreshTokenStore(repo, -time.Minute)
	expired, err := expiredStore.Create(ctx, 42, nil, nil)
	require.NoError(t, err)
	_, err = store.FindValid(ctx, expired.Token)
	assert.Error(t, err)
}

func TestRefreshStoreRevokeIsCompareAndSet(t *testing.T) {
	repo := newFakeTokenRepo()
	store := NewRefreshTokenStore(repo, time.Hour)
	ctx := context.Background()

	record, err := store.Create(ctx, 42, nil, nil)
	require.NoError(t, err)

	first, err := store.Revoke(ctx, record.Token)
	require.NoError(t, err)
	second, err := store.Revoke(ctx, record.Token)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestRefreshStoreRevokeAllForUser(t *testing.T) {
	repo := newFakeTokenRepo()
	store := NewRefreshTokenStore(repo, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, 42, nil, nil)
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, 7, nil, nil)
	require.NoError(t, err)

	count, err := store.RevokeAllForUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = store.RevokeAllForUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCleanupSweepIsIdempotent(t *testing.T) {
	repo := newFakeTokenRepo()
	store := NewRefreshTokenStore(repo, time.Hour)
	ctx := context.Background()

	live, err := store.Create(ctx, 42, nil, nil)
	require.NoError(t, err)

	expiredStore := NewRefreshTokenStore(repo, -time.Hour)
	_, err = expiredStore.Create(ctx, 42, nil, nil)
	require.NoError(t, err)

	agedOut, err := store.Create(ctx, 42, nil, nil)
	require.NoError(t, err)
	_, err = store.Revoke(ctx, agedOut.Token)
	require.NoError(t, err)
	// Push the revocation timestamp past the retention window.
	old := time.Now().Add(-8 * 24 * time.Hour)
	repo.rows[agedOut.Token].RevokedAt = &old

	now := time.Now()
	expired, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	revoked, err := store.DeleteRevokedBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), revoked)

	// A second pass is a no-op and never deletes a still-valid row.
	expired, err = store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	revoked, err2 := store.DeleteRevokedBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err2)
	assert.Equal(t, int64(0), expired)
	assert.Equal(t, int64(0), revoked)

	assert.Equal(t, 1, repo.count())
	_, err = store.FindValid(ctx, live.Token)
	assert.NoError(t, err)
}
