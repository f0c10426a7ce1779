// Package user handles account registration and credential checks.
package user

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// Compile-time interface check
var _ interfaces.UserService = (*Service)(nil)

// usernamePattern restricts usernames to a safe identifier charset.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{2,50}$`)

// bcryptCost matches the cost the web portal uses for its hashes.
const bcryptCost = 10

// Service implements UserService.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a new user service.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Register creates a user account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.InternalUser, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("username must be 2-50 characters of letters, digits, '_', '.' or '-'")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	store := s.storage.InternalStore()
	if _, err := store.GetUserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("user %q already exists", username)
	}

	// bcrypt ignores input past 72 bytes; truncate explicitly
	passwordBytes := []byte(password)
	if len(passwordBytes) > 72 {
		passwordBytes = passwordBytes[:72]
	}
	hash, err := bcrypt.GenerateFromPassword(passwordBytes, bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.InternalUser{
		UserID:       username,
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		Role:         "user",
		CreatedAt:    now,
		ModifiedAt:   now,
	}

	if err := store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.Info().Str("username", username).Msg("User registered")
	return user, nil
}

// Authenticate verifies credentials and returns the account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.InternalUser, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	user, err := s.storage.InternalStore().GetUserByUsername(ctx, username)
	if err != nil {
		// Same failure mode for unknown user and bad password
		return nil, fmt.Errorf("invalid credentials")
	}

	passwordBytes := []byte(password)
	if len(passwordBytes) > 72 {
		passwordBytes = passwordBytes[:72]
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), passwordBytes); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	return user, nil
}

// GetUser returns an account by user ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.InternalUser, error) {
	return s.storage.InternalStore().GetUser(ctx, userID)
}
