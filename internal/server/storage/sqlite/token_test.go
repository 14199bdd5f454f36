package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

func TestTokenStorage_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s, "alice")
	token := &models.RefreshToken{
		Token:     "token-1",
		UserID:    userID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}

	require.NoError(t, s.SaveRefreshToken(ctx, token))

	got, err := s.GetRefreshToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, token.ExpiresAt.Unix(), got.ExpiresAt.Unix())

	_, err = s.GetRefreshToken(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestTokenStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s, "alice")
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRefreshToken(ctx, &models.RefreshToken{
			Token:     v,
			UserID:    userID,
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		}))
	}

	require.NoError(t, s.DeleteRefreshToken(ctx, "a"))
	assert.ErrorIs(t, s.DeleteRefreshToken(ctx, "a"), storage.ErrTokenNotFound)

	n, err := s.DeleteUserTokens(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTokenStorage_DeleteExpiredTokens(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s, "alice")
	require.NoError(t, s.SaveRefreshToken(ctx, &models.RefreshToken{
		Token:     "expired",
		UserID:    userID,
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}))
	require.NoError(t, s.SaveRefreshToken(ctx, &models.RefreshToken{
		Token:     "valid",
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}))

	n, err := s.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetRefreshToken(ctx, "valid")
	assert.NoError(t, err)
}
