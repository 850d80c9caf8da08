package services

import (
	"context"
	"fmt"

	"fieldreport/internal/mirror"
	"fieldreport/internal/models"
	"fieldreport/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Incident lifecycle events.
const (
	EventIncidentCreated  = "incident.created"
	EventIncidentUpdated  = "incident.updated"
	EventIncidentDeleted  = "incident.deleted"
	EventIncidentMirrored = "incident.mirrored"
)

// Mirror is the remote collection the incidents are pushed to.
type Mirror interface {
	CheckConnectivity(ctx context.Context) bool
	PostIncident(ctx context.Context, incident *models.Incident) (int64, error)
	UpdateIncident(ctx context.Context, incident *models.Incident) error
	ListIncidents(ctx context.Context) ([]mirror.Post, error)
}

// EventPublisher receives incident lifecycle events.
type EventPublisher interface {
	Publish(eventType string, payload map[string]interface{}) error
}

// SyncResult counts the outcome of a SyncAll run.
type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// SyncService pushes unmirrored incidents to the remote collection.
type SyncService struct {
	incidents repositories.IncidentRepository
	remote    Mirror
	events    EventPublisher
	log       *zap.Logger
	group     singleflight.Group
}

// NewSyncService creates a new SyncService. events may be nil.
func NewSyncService(incidents repositories.IncidentRepository, remote Mirror, events EventPublisher, log *zap.Logger) *SyncService {
	return &SyncService{
		incidents: incidents,
		remote:    remote,
		events:    events,
		log:       log.Named("sync"),
	}
}

// Online reports whether the remote collection is reachable.
func (s *SyncService) Online(ctx context.Context) bool {
	return s.remote.CheckConnectivity(ctx)
}

// SyncOne mirrors a single incident. An already mirrored incident is left
// alone. On success the incident is marked and saved and the caller's copy
// is refreshed. Overlapping calls for the same incident post it once.
func (s *SyncService) SyncOne(ctx context.Context, incident *models.Incident) error {
	if incident.Mirrored {
		return nil
	}

	v, err, shared := s.group.Do(fmt.Sprint("sync-", incident.ID), func() (interface{}, error) {
		return s.syncOne(ctx, incident.ID)
	})
	if shared {
		s.log.Debug("joined running incident sync", zap.Uint("incident_id", incident.ID))
	}
	if err != nil {
		return err
	}
	*incident = *v.(*models.Incident)
	return nil
}

// syncOne reloads the row so a copy mirrored by an earlier trigger is
// skipped instead of posted again.
func (s *SyncService) syncOne(ctx context.Context, id uint) (*models.Incident, error) {
	current, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load incident %d: %w", id, err)
	}
	if current.Mirrored {
		return current, nil
	}

	remoteID, err := s.remote.PostIncident(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to mirror incident %d: %w", id, err)
	}

	current.MarkMirrored(remoteID)
	rows, err := s.incidents.Save(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to record mirror of incident %d: %w", id, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("incident %d: %w", id, repositories.ErrNotFound)
	}

	s.log.Info("incident mirrored", zap.Uint("incident_id", id), zap.Int64("remote_id", remoteID))
	publish(s.events, s.log, EventIncidentMirrored, current)
	return current, nil
}

// SyncAll mirrors every unmirrored incident one after another. Failures are
// counted and never stop the run. Calls that overlap a running SyncAll wait
// for it and share its result.
func (s *SyncService) SyncAll(ctx context.Context) (SyncResult, error) {
	v, err, shared := s.group.Do("sync-all", func() (interface{}, error) {
		return s.syncAll(ctx)
	})
	if shared {
		s.log.Debug("joined running sync")
	}
	if err != nil {
		return SyncResult{}, err
	}
	return v.(SyncResult), nil
}

func (s *SyncService) syncAll(ctx context.Context) (SyncResult, error) {
	pending, err := s.incidents.GetUnsynced(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to load unsynced incidents: %w", err)
	}

	var result SyncResult
	for i := range pending {
		if err := s.SyncOne(ctx, &pending[i]); err != nil {
			s.log.Warn("sync failed", zap.Uint("incident_id", pending[i].ID), zap.Error(err))
			result.Failed++
			continue
		}
		result.Synced++
	}

	s.log.Info("sync finished", zap.Int("synced", result.Synced), zap.Int("failed", result.Failed))
	return result, nil
}

// publish sends an event and only logs failures.
func publish(events EventPublisher, log *zap.Logger, eventType string, incident *models.Incident) {
	if events == nil {
		return
	}
	payload := map[string]interface{}{
		"incident_id": incident.ID,
		"user_id":     incident.UserID,
		"title":       incident.Title,
		"status":      incident.Status,
		"priority":    incident.Priority,
		"mirrored":    incident.Mirrored,
	}
	if incident.RemoteID != nil {
		payload["remote_id"] = *incident.RemoteID
	}
	if err := events.Publish(eventType, payload); err != nil {
		log.Warn("failed to publish event", zap.String("type", eventType), zap.Uint("incident_id", incident.ID), zap.Error(err))
	}
}
