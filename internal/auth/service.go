// Package auth provides email/password accounts and opaque session secrets,
// implementing the remote auth collaborator contract.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habitsync/internal/remote"
	"habitsync/internal/store"
	"habitsync/internal/util"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AccountStore defines the storage interface for accounts
type AccountStore interface {
	CreateAccount(ctx context.Context, account store.Account) error
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	GetAccountByID(ctx context.Context, id string) (store.Account, error)
}

// SessionStore keeps hashed session secrets with expiry.
type SessionStore interface {
	Save(ctx context.Context, secretHash, userID string, expiresAt time.Time) error
	Lookup(ctx context.Context, secretHash string) (string, error)
	Revoke(ctx context.Context, secretHash string) error
}

// Service implements remote.Auth.
type Service struct {
	accounts   AccountStore
	sessions   SessionStore
	sessionTTL time.Duration
}

// NewService creates a new auth service
func NewService(accounts AccountStore, sessions SessionStore, sessionTTL time.Duration) *Service {
	return &Service{
		accounts:   accounts,
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}
}

// CreateAccount registers a new account. An empty id gets one generated.
func (s *Service) CreateAccount(ctx context.Context, id, email, password, name string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)

	if email == "" || password == "" || name == "" {
		return errors.New("email, password, and name are required")
	}
	if !strings.Contains(email, "@") {
		return errors.New("email address is not valid")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	if _, err := s.accounts.GetAccountByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if id == "" {
		id = util.NewID("usr")
	}
	account := store.Account{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// CreateSession authenticates credentials and issues an opaque secret.
func (s *Service) CreateSession(ctx context.Context, email, password string) (remote.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return remote.Session{}, ErrInvalidCredentials
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return remote.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return remote.Session{}, ErrInvalidCredentials
	}

	secret := NewSecret()
	expiresAt := time.Now().Add(s.sessionTTL)
	if err := s.sessions.Save(ctx, HashToken(secret), account.ID, expiresAt); err != nil {
		return remote.Session{}, fmt.Errorf("save session: %w", err)
	}

	return remote.Session{
		Secret:    secret,
		UserID:    account.ID,
		ExpiresAt: expiresAt,
	}, nil
}

// CurrentSession resolves a secret to the identity that owns it.
func (s *Service) CurrentSession(ctx context.Context, secret string) (remote.Identity, error) {
	if secret == "" {
		return remote.Identity{}, remote.ErrSessionNotFound
	}

	userID, err := s.sessions.Lookup(ctx, HashToken(secret))
	if err != nil {
		return remote.Identity{}, err
	}

	account, err := s.accounts.GetAccountByID(ctx, userID)
	if err != nil {
		return remote.Identity{}, fmt.Errorf("load account: %w", err)
	}

	return remote.Identity{
		UserID: account.ID,
		Email:  account.Email,
		Name:   account.Name,
	}, nil
}

// DeleteSession revokes the secret. Unknown secrets are not an error.
func (s *Service) DeleteSession(ctx context.Context, secret string) error {
	if secret == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, HashToken(secret))
}
