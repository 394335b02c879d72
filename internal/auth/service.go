package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *TokenStore
	observer *audit.Observer
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenStore, observer *audit.Observer) *Service {
	return &Service{repo: repo, tokens: tokens, observer: observer}
}

// Login verifies credentials and issues a bearer token. Inactive accounts
// and bad passwords are indistinguishable from unknown emails.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return LoginResponse{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return LoginResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResponse{}, ErrInvalidCredentials
	}
	principal := shared.Principal{ID: user.ID, Role: user.Role, LocationID: user.LocationID}
	token, expiresAt, err := s.tokens.Issue(ctx, principal)
	if err != nil {
		return LoginResponse{}, err
	}
	s.observer.Observe(ctx, audit.Entry{
		LocationID:  user.LocationID,
		ActorID:     user.ID,
		Action:      "LOGIN",
		Entity:      "user",
		EntityID:    user.ID,
		Description: fmt.Sprintf("%s logged in", user.Email),
	})
	return LoginResponse{Token: token, ExpiresAt: expiresAt, Principal: principal}, nil
}

// Logout revokes the token.
func (s *Service) Logout(ctx context.Context, actor shared.Principal, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	s.observer.Observe(ctx, audit.Entry{
		LocationID:  actor.LocationID,
		ActorID:     actor.ID,
		Action:      "LOGOUT",
		Entity:      "user",
		EntityID:    actor.ID,
		Description: fmt.Sprintf("user #%d logged out", actor.ID),
	})
	return nil
}

// Resolve maps a bearer token to its principal.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Principal, error) {
	return s.tokens.Resolve(ctx, token)
}
