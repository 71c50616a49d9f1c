package auth

import (
	"context"
	"errors"
	"fmt"

	passwordvalidator "github.com/wagslane/go-password-validator"

	"relay/config"
	"relay/infrastructure"
	"relay/internal/user"
)

// Service implements the credential workflows: registration, login, logout
// and password rotation.
type Service struct {
	users      user.Repository
	tokens     *TokenManager
	bcryptCost int
	minEntropy float64
}

// NewService creates the auth service.
func NewService(cfg *config.Config, users user.Repository, tokens *TokenManager) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: cfg.BcryptCost,
		minEntropy: cfg.PasswordMinEntropy,
	}
}

// Register validates the registration payload, creates the account and
// issues a token. Duplicate email or username is a conflict.
func (s *Service) Register(ctx context.Context, reg user.Registration) (*user.User, string, error) {
	candidate := &user.User{Username: reg.Username, Email: reg.Email}
	if !candidate.IsValidUsername() {
		return nil, "", fmt.Errorf("%w: username must be 3-20 letters, digits or underscores", infrastructure.ErrInvalidInput)
	}
	if !candidate.IsValidEmail() {
		return nil, "", fmt.Errorf("%w: invalid email format", infrastructure.ErrInvalidInput)
	}
	if err := passwordvalidator.Validate(reg.Password, s.minEntropy); err != nil {
		return nil, "", fmt.Errorf("%w: %v", infrastructure.ErrInvalidInput, err)
	}

	if _, err := s.users.FindByEmail(ctx, reg.Email); err == nil {
		return nil, "", infrastructure.ErrEmailTaken
	} else if !errors.Is(err, infrastructure.ErrUserNotFound) {
		return nil, "", err
	}
	if _, err := s.users.FindByUsername(ctx, reg.Username); err == nil {
		return nil, "", infrastructure.ErrUsernameTaken
	} else if !errors.Is(err, infrastructure.ErrUserNotFound) {
		return nil, "", err
	}

	u, err := user.NewFromRegistration(reg, s.bcryptCost)
	if err != nil {
		return nil, "", err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(u.ID, u.Username, u.Email)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials and marks the user online. The caller learns
// only that the pair was invalid, not which half.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, infrastructure.ErrUserNotFound) {
			return nil, "", infrastructure.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !u.ValidatePassword(password) {
		return nil, "", infrastructure.ErrInvalidCredentials
	}

	u, err = s.users.UpdateOnlineStatus(ctx, u.ID, true)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(u.ID, u.Username, u.Email)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Logout marks the user offline.
func (s *Service) Logout(ctx context.Context, userID string) error {
	_, err := s.users.UpdateOnlineStatus(ctx, userID, false)
	return err
}

// ChangePassword rotates the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !u.ValidatePassword(current) {
		return fmt.Errorf("%w: current password is incorrect", infrastructure.ErrInvalidCredentials)
	}
	if err := passwordvalidator.Validate(newPassword, s.minEntropy); err != nil {
		return fmt.Errorf("%w: %v", infrastructure.ErrInvalidInput, err)
	}

	_, err = s.users.Update(ctx, userID, user.Update{Password: &newPassword})
	return err
}
