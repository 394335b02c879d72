package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/opentill/opentill/internal/shared"
)

func testStore(t *testing.T, ttl time.Duration) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTokenStore(client, ttl), mr
}

func TestIssueAndResolve(t *testing.T) {
	store, _ := testStore(t, time.Hour)
	ctx := context.Background()
	principal := shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1}

	token, _, err := store.Issue(ctx, principal)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, principal, got)
}

func TestResolveUnknownToken(t *testing.T) {
	store, _ := testStore(t, time.Hour)

	_, err := store.Resolve(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevoke(t *testing.T) {
	store, _ := testStore(t, time.Hour)
	ctx := context.Background()

	token, _, err := store.Issue(ctx, shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1})
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))

	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenExpires(t *testing.T) {
	store, mr := testStore(t, time.Minute)
	ctx := context.Background()

	token, _, err := store.Issue(ctx, shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrTokenExpired)
}
