package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldreport/internal/models"

	"gorm.io/gorm"
)

const newestFirst = "created_at DESC, id DESC"

// GORMIncidentRepository is a GORM implementation of IncidentRepository.
type GORMIncidentRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGORMIncidentRepository creates a new instance of GORMIncidentRepository.
func NewGORMIncidentRepository(db *gorm.DB) *GORMIncidentRepository {
	return &GORMIncidentRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *GORMIncidentRepository) find(ctx context.Context, what string, scope func(*gorm.DB) *gorm.DB) ([]models.Incident, error) {
	var incidents []models.Incident
	q := r.db.WithContext(ctx).Model(&models.Incident{})
	if scope != nil {
		q = scope(q)
	}
	if err := q.Order(newestFirst).Find(&incidents).Error; err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return incidents, nil
}

// GetAll retrieves all incidents.
func (r *GORMIncidentRepository) GetAll(ctx context.Context) ([]models.Incident, error) {
	return r.find(ctx, "all incidents", nil)
}

// GetByUser retrieves the incidents reported by userID.
func (r *GORMIncidentRepository) GetByUser(ctx context.Context, userID uint) ([]models.Incident, error) {
	return r.find(ctx, fmt.Sprintf("incidents of user %d", userID), func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ?", userID)
	})
}

// GetByID retrieves a single incident.
func (r *GORMIncidentRepository) GetByID(ctx context.Context, id uint) (*models.Incident, error) {
	var incident models.Incident
	if err := r.db.WithContext(ctx).First(&incident, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("incident %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by ID %d: %w", id, err)
	}
	return &incident, nil
}

// Save inserts or updates an incident.
func (r *GORMIncidentRepository) Save(ctx context.Context, incident *models.Incident) (int64, error) {
	db := r.db.WithContext(ctx)

	if incident.ID == 0 {
		incident.CreatedAt = r.now()
		if incident.Status == "" {
			incident.Status = models.StatusPending
		}
		if incident.Priority == "" {
			incident.Priority = models.PriorityMedium
		}
		res := db.Create(incident)
		if res.Error != nil {
			return 0, fmt.Errorf("failed to create incident: %w", res.Error)
		}
		return res.RowsAffected, nil
	}

	now := r.now()
	incident.UpdatedAt = &now
	// Save would fall back to an insert when no row matches, so the update
	// is spelled out to keep unknown IDs a zero-row no-op.
	res := db.Model(&models.Incident{}).
		Where("id = ?", incident.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(incident)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update incident %d: %w", incident.ID, res.Error)
	}
	return res.RowsAffected, nil
}

// Delete deletes an incident by its ID.
func (r *GORMIncidentRepository) Delete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Incident{}, "id = ?", id)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete incident %d: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

// Search retrieves incidents whose title or description contains query.
func (r *GORMIncidentRepository) Search(ctx context.Context, query string) ([]models.Incident, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.GetAll(ctx)
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return r.find(ctx, fmt.Sprintf("incidents matching %q", query), func(q *gorm.DB) *gorm.DB {
		return q.Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern)
	})
}

// GetByStatus retrieves incidents with the given status.
func (r *GORMIncidentRepository) GetByStatus(ctx context.Context, status models.IncidentStatus) ([]models.Incident, error) {
	if strings.TrimSpace(string(status)) == "" || status == models.StatusAll {
		return r.GetAll(ctx)
	}
	return r.find(ctx, fmt.Sprintf("incidents with status %s", status), func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", status)
	})
}

// GetUnsynced retrieves incidents not yet mirrored to the remote endpoint.
func (r *GORMIncidentRepository) GetUnsynced(ctx context.Context) ([]models.Incident, error) {
	return r.find(ctx, "unsynced incidents", func(q *gorm.DB) *gorm.DB {
		return q.Where("mirrored = ?", false)
	})
}

// Stats counts incidents for the dashboard.
func (r *GORMIncidentRepository) Stats(ctx context.Context) (*IncidentStats, error) {
	var stats IncidentStats
	counts := []struct {
		dst   *int64
		where []interface{}
	}{
		{&stats.Total, nil},
		{&stats.Pending, []interface{}{"status = ?", models.StatusPending}},
		{&stats.Resolved, []interface{}{"status = ?", models.StatusResolved}},
		{&stats.Mirrored, []interface{}{"mirrored = ?", true}},
	}
	for _, c := range counts {
		q := r.db.WithContext(ctx).Model(&models.Incident{})
		if c.where != nil {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to count incidents: %w", err)
		}
	}
	return &stats, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
