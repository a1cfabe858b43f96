// Package users handles account registration and password checks.
package users

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/StrixzIV/adv-compro-finals/internal/apperr"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
)

var errInvalidCredentials = apperr.New(apperr.KindForbidden, "invalid email or password")

type Service struct {
	logger *slog.Logger
	users  storage.Users
	cost   int
}

func NewService(logger *slog.Logger, users storage.Users) *Service {
	return &Service{logger: logger, users: users, cost: bcrypt.DefaultCost}
}

type Registration struct {
	Email       string
	Password    string
	DisplayName string
}

// Register creates an account with a bcrypt hashed password.
func (s *Service) Register(ctx context.Context, in Registration) (storage.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return storage.User{}, err
	}

	if len(in.Password) < MinPasswordLength {
		return storage.User{}, apperr.New(apperr.KindInvalidInput, "password must be at least 8 characters")
	}
	if len(in.Password) > maxPasswordLength {
		return storage.User{}, apperr.New(apperr.KindInvalidInput, "password is too long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return storage.User{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	user, err := s.users.Create(ctx, storage.UserCreate{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(in.DisplayName),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return storage.User{}, apperr.New(apperr.KindConflict, "email is already registered")
		}
		return storage.User{}, apperr.Wrap(apperr.KindCatalogWriteFailed, "create user", err)
	}

	s.logger.Info("user registered", "userID", user.ID)
	return user, nil
}

// Authenticate returns the account matching email and password. Unknown
// emails and wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (storage.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return storage.User{}, errInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, errInvalidCredentials
		}
		return storage.User{}, apperr.Wrap(apperr.KindCatalogReadFailed, "load user", err)
	}

	if user.PasswordHash == "" {
		return storage.User{}, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login attempt", "userID", user.ID)
		return storage.User{}, errInvalidCredentials
	}

	return user, nil
}

// Lookup finds an account by email.
func (s *Service) Lookup(ctx context.Context, email string) (storage.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return storage.User{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, apperr.Forbidden()
		}
		return storage.User{}, apperr.Wrap(apperr.KindCatalogReadFailed, "load user", err)
	}
	return user, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", apperr.New(apperr.KindInvalidInput, "email address is invalid")
	}
	return strings.ToLower(addr.Address), nil
}
