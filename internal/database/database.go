// Package database opens the local store and prepares its schema.
package database

import (
	"context"
	"errors"
	"fmt"

	"fieldreport/internal/models"
	"fieldreport/internal/repositories"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Bootstrap describes the default account created on first start.
type Bootstrap struct {
	Username string
	Password string
	FullName string
	Email    string
}

// Open connects to the configured backend. driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}

// Initialize creates the tables when absent and inserts the bootstrap user
// when it does not exist yet. Running it again is a no-op.
func Initialize(ctx context.Context, db *gorm.DB, users repositories.UserRepository, boot Bootstrap, log *zap.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.User{}, &models.Incident{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if boot.Username == "" {
		return nil
	}

	_, err := users.GetByUsername(ctx, boot.Username)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("failed to look up bootstrap user: %w", err)
	}

	user := &models.User{
		Username: boot.Username,
		Password: boot.Password,
		FullName: models.OptionalString(boot.FullName),
		Email:    models.OptionalString(boot.Email),
	}
	if _, err := users.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to create bootstrap user: %w", err)
	}
	log.Info("bootstrap user created", zap.String("username", boot.Username))
	return nil
}
