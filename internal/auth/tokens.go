package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/opentill/opentill/internal/shared"
)

// TokenStore keeps opaque bearer tokens in Redis with a sliding TTL, so a
// logout or an expiry is effective immediately across instances.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

func tokenKey(token string) string {
	return "auth:token:" + token
}

// Issue mints a token for the principal.
func (s *TokenStore) Issue(ctx context.Context, p shared.Principal) (string, time.Time, error) {
	token := uuid.NewString()
	payload, err := json.Marshal(p)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.client.Set(ctx, tokenKey(token), payload, s.ttl).Err(); err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().UTC().Add(s.ttl), nil
}

// Resolve returns the principal behind a token and refreshes its TTL.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Principal, error) {
	payload, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return shared.Principal{}, ErrTokenExpired
	}
	if err != nil {
		return shared.Principal{}, err
	}
	var p shared.Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return shared.Principal{}, err
	}
	s.client.Expire(ctx, tokenKey(token), s.ttl)
	return p, nil
}

// Revoke drops a token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKey(token)).Err()
}
