package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fieldreport/internal/models"
	"fieldreport/internal/repositories"
	"fieldreport/internal/session"

	"go.uber.org/zap"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72 // bcrypt input limit
)

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)
	ErrUsernameTaken      = errors.New("username already in use")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotAuthenticated   = errors.New("login required")
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username string
	Password string
	FullName string
	Email    string
}

// AuthService handles login, registration and the profile of the signed-in user.
type AuthService struct {
	userRepo repositories.UserRepository
	session  *session.Session
	log      *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, sess *session.Session, log *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		session:  sess,
		log:      log.Named("auth"),
	}
}

// Login checks the credentials and binds the session to the matching user.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if strings.TrimSpace(password) == "" {
		return nil, ErrPasswordRequired
	}

	user, err := s.userRepo.Validate(ctx, username, password)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Info("login rejected", zap.String("username", username))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to validate user: %w", err)
	}

	s.session.SignIn(user)
	s.log.Info("user signed in", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return s.session.User(), nil
}

// Register creates a new account. It does not sign the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, ErrPasswordRequired
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	switch {
	case err == nil && existing != nil:
		return nil, ErrUsernameTaken
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	user := &models.User{
		Username: username,
		Password: in.Password,
		FullName: models.OptionalString(in.FullName),
		Email:    models.OptionalString(in.Email),
	}
	rows, err := s.userRepo.Save(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("failed to register user %s: no rows written", username)
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// Logout clears the session. It is a no-op when nobody is signed in.
func (s *AuthService) Logout() {
	if prev, ok := s.session.SignOut(); ok {
		s.log.Info("user signed out", zap.Uint("user_id", prev.ID))
	}
}

// CurrentUser returns the signed-in user or nil.
func (s *AuthService) CurrentUser() *models.User {
	return s.session.User()
}

// CurrentUserID returns 0 when anonymous.
func (s *AuthService) CurrentUserID() uint {
	return s.session.UserID()
}

// CurrentUserFullName falls back to "User".
func (s *AuthService) CurrentUserFullName() string {
	return s.session.FullName()
}

// UpdateProfile changes the full name and email of the signed-in user.
func (s *AuthService) UpdateProfile(ctx context.Context, fullName, email string) (*models.User, error) {
	user := s.session.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	user.FullName = models.OptionalString(fullName)
	user.Email = models.OptionalString(email)

	rows, err := s.userRepo.Save(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("user %d: %w", user.ID, repositories.ErrNotFound)
	}

	s.session.SignIn(user)
	s.log.Info("profile updated", zap.Uint("user_id", user.ID))
	return s.session.User(), nil
}
