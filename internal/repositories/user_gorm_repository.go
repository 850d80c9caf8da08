package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldreport/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// GetByUsername retrieves a user by exact, case-sensitive username.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return &user, nil
}

// Save inserts or updates a user. The password is hashed on insert; callers
// updating a profile keep the stored hash untouched.
func (r *GORMUserRepository) Save(ctx context.Context, user *models.User) (int64, error) {
	db := r.db.WithContext(ctx)

	if user.ID == 0 {
		hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
		if err != nil {
			return 0, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hashed)
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now()
		}

		res := db.Create(user)
		if res.Error != nil {
			return 0, fmt.Errorf("failed to create user: %w", res.Error)
		}
		return res.RowsAffected, nil
	}

	res := db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Select("username", "full_name", "email").
		Updates(user)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update user %d: %w", user.ID, res.Error)
	}
	return res.RowsAffected, nil
}

// Validate checks a username/password pair against the stored hash.
func (r *GORMUserRepository) Validate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("password mismatch for %s: %w", username, ErrNotFound)
	}
	return user, nil
}
