package repositories

import (
	"context"
	"errors"

	"fieldreport/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// UserRepository defines the interface for user data access.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// Save inserts the user when it has no ID yet, otherwise updates it by ID.
	Save(ctx context.Context, user *models.User) (int64, error)
	// Validate returns the user whose username and password both match.
	Validate(ctx context.Context, username, password string) (*models.User, error)
}
