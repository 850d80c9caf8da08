package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fieldreport/internal/models"
)

// MockIncidentRepository is an in-memory implementation of IncidentRepository.
type MockIncidentRepository struct {
	incidents map[uint]models.Incident
	nextID    uint
	mu        sync.RWMutex
}

// NewMockIncidentRepository creates a new instance of MockIncidentRepository.
func NewMockIncidentRepository() *MockIncidentRepository {
	return &MockIncidentRepository{
		incidents: make(map[uint]models.Incident),
		nextID:    1,
	}
}

// filter returns copies of the incidents accepted by keep, newest first.
func (r *MockIncidentRepository) filter(keep func(models.Incident) bool) []models.Incident {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Incident, 0, len(r.incidents))
	for _, inc := range r.incidents {
		if keep == nil || keep(inc) {
			list = append(list, inc)
		}
	}
	sort.Slice(list, func(a, b int) bool {
		if !list[a].CreatedAt.Equal(list[b].CreatedAt) {
			return list[a].CreatedAt.After(list[b].CreatedAt)
		}
		return list[a].ID > list[b].ID
	})
	return list
}

// GetAll returns all incidents.
func (r *MockIncidentRepository) GetAll(_ context.Context) ([]models.Incident, error) {
	return r.filter(nil), nil
}

// GetByUser returns the incidents of one user.
func (r *MockIncidentRepository) GetByUser(_ context.Context, userID uint) ([]models.Incident, error) {
	return r.filter(func(i models.Incident) bool { return i.UserID == userID }), nil
}

// GetByID returns an incident by its ID.
func (r *MockIncidentRepository) GetByID(_ context.Context, id uint) (*models.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, ok := r.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident %d: %w", id, ErrNotFound)
	}
	return &incident, nil
}

// Save adds or replaces an incident.
func (r *MockIncidentRepository) Save(_ context.Context, incident *models.Incident) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if incident.ID == 0 {
		incident.ID = r.nextID
		r.nextID++
		incident.CreatedAt = now
		if incident.Status == "" {
			incident.Status = models.StatusPending
		}
		if incident.Priority == "" {
			incident.Priority = models.PriorityMedium
		}
		r.incidents[incident.ID] = *incident
		return 1, nil
	}

	existing, ok := r.incidents[incident.ID]
	if !ok {
		return 0, nil
	}
	incident.UpdatedAt = &now
	incident.CreatedAt = existing.CreatedAt
	r.incidents[incident.ID] = *incident
	return 1, nil
}

// Delete removes an incident by its ID.
func (r *MockIncidentRepository) Delete(_ context.Context, id uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.incidents[id]; !ok {
		return 0, nil
	}
	delete(r.incidents, id)
	return 1, nil
}

// Search matches title or description, ignoring case.
func (r *MockIncidentRepository) Search(ctx context.Context, query string) ([]models.Incident, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return r.GetAll(ctx)
	}
	return r.filter(func(i models.Incident) bool {
		return strings.Contains(strings.ToLower(i.Title), query) ||
			strings.Contains(strings.ToLower(i.Description), query)
	}), nil
}

// GetByStatus returns incidents with the given status.
func (r *MockIncidentRepository) GetByStatus(ctx context.Context, status models.IncidentStatus) ([]models.Incident, error) {
	if strings.TrimSpace(string(status)) == "" || status == models.StatusAll {
		return r.GetAll(ctx)
	}
	return r.filter(func(i models.Incident) bool { return i.Status == status }), nil
}

// GetUnsynced returns incidents that are not mirrored yet.
func (r *MockIncidentRepository) GetUnsynced(_ context.Context) ([]models.Incident, error) {
	return r.filter(func(i models.Incident) bool { return !i.Mirrored }), nil
}

// Stats counts incidents.
func (r *MockIncidentRepository) Stats(_ context.Context) (*IncidentStats, error) {
	var stats IncidentStats
	for _, i := range r.filter(nil) {
		stats.Total++
		switch i.Status {
		case models.StatusPending:
			stats.Pending++
		case models.StatusResolved:
			stats.Resolved++
		}
		if i.Mirrored {
			stats.Mirrored++
		}
	}
	return &stats, nil
}
