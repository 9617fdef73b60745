package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
)

// demoEmail is the account created lazily on first login so the
// dashboard works out of the box.
const demoEmail = "demo@smarthome.io"

// Service implements registration and login on top of a UserRepository.
type Service struct {
	users  UserRepository
	secret string
	ttl    time.Duration
	logger *logging.Logger
}

// NewService creates an auth Service. ttl is the JWT lifetime.
func NewService(users UserRepository, secret string, ttl time.Duration, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		secret: secret,
		ttl:    ttl,
		logger: logger.With("component", "auth"),
	}
}

// Register creates a new account and returns it with a signed token.
// Returns ErrEmailTaken if the address is already registered.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, string, error) {
	if name == "" || email == "" || password == "" {
		return nil, "", fmt.Errorf("%w: all fields required", ErrInvalidCredentials)
	}
	if !IsValidEmail(email) {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, "", ErrPasswordTooShort
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	user := &User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := GenerateToken(user, s.secret, s.ttl)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login verifies credentials and returns the account with a signed
// token. On a fresh database the demo account is created on its first
// login attempt, adopting whatever password was supplied.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	if email == "" || password == "" {
		return nil, "", fmt.Errorf("%w: email and password required", ErrInvalidCredentials)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if email == demoEmail {
			return s.Register(ctx, "Demo User", email, password)
		}
		return nil, "", ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("recording login failed", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	token, err := GenerateToken(user, s.secret, s.ttl)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// VerifyToken parses and validates a bearer token.
func (s *Service) VerifyToken(token string) (*CustomClaims, error) {
	return ParseToken(token, s.secret)
}
