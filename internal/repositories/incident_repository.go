package repositories

import (
	"context"

	"fieldreport/internal/models"
)

// IncidentRepository defines the interface for incident data access.
// List methods order by creation time, newest first.
type IncidentRepository interface {
	GetAll(ctx context.Context) ([]models.Incident, error)
	GetByUser(ctx context.Context, userID uint) ([]models.Incident, error)
	GetByID(ctx context.Context, id uint) (*models.Incident, error)
	// Save inserts when the incident has no ID (stamping CreatedAt) and
	// otherwise updates by ID (stamping UpdatedAt). An update of an unknown
	// ID affects zero rows.
	Save(ctx context.Context, incident *models.Incident) (int64, error)
	// Delete returns zero rows affected for an unknown ID.
	Delete(ctx context.Context, id uint) (int64, error)
	// Search matches title or description, case-insensitively. A blank
	// query returns everything.
	Search(ctx context.Context, query string) ([]models.Incident, error)
	// GetByStatus returns everything for models.StatusAll or a blank status.
	GetByStatus(ctx context.Context, status models.IncidentStatus) ([]models.Incident, error)
	GetUnsynced(ctx context.Context) ([]models.Incident, error)
	Stats(ctx context.Context) (*IncidentStats, error)
}

// IncidentStats holds the dashboard counters.
type IncidentStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Resolved int64 `json:"resolved"`
	Mirrored int64 `json:"mirrored"`
}
