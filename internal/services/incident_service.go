package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"fieldreport/internal/mirror"
	"fieldreport/internal/models"
	"fieldreport/internal/repositories"
	"fieldreport/internal/session"

	"go.uber.org/zap"
)

const (
	minTitleLength       = 5
	minDescriptionLength = 10
)

var (
	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
	ErrTitleTooShort       = fmt.Errorf("title must be at least %d characters", minTitleLength)
	ErrDescriptionTooShort = fmt.Errorf("description must be at least %d characters", minDescriptionLength)
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrIncompleteLocation  = errors.New("latitude and longitude must be provided together")
	ErrPhotoNotFound       = errors.New("photo file not found")
)

// PhotoStore keeps the photo files attached to incidents.
type PhotoStore interface {
	Save(src io.Reader, ext string) (string, error)
	Exists(path string) bool
	Delete(path string) error
}

// IncidentInput carries the create and edit forms.
type IncidentInput struct {
	Title        string
	Description  string
	Category     string
	Status       models.IncidentStatus
	Priority     models.IncidentPriority
	PhotoPath    string
	Latitude     *float64
	Longitude    *float64
	LocationName string
}

// ListFilter narrows the incident list.
type ListFilter struct {
	Status models.IncidentStatus
	Query  string
	Mine   bool
}

// IncidentService implements the incident screens on top of the store,
// the remote mirror and the photo store.
type IncidentService struct {
	incidents repositories.IncidentRepository
	sync      *SyncService
	remote    Mirror
	photos    PhotoStore
	session   *session.Session
	events    EventPublisher
	log       *zap.Logger
}

// NewIncidentService creates a new IncidentService. events may be nil.
func NewIncidentService(
	incidents repositories.IncidentRepository,
	sync *SyncService,
	remote Mirror,
	photos PhotoStore,
	sess *session.Session,
	events EventPublisher,
	log *zap.Logger,
) *IncidentService {
	return &IncidentService{
		incidents: incidents,
		sync:      sync,
		remote:    remote,
		photos:    photos,
		session:   sess,
		events:    events,
		log:       log.Named("incidents"),
	}
}

func (in *IncidentInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.PhotoPath = strings.TrimSpace(in.PhotoPath)
	in.LocationName = strings.TrimSpace(in.LocationName)
}

func (s *IncidentService) validate(in *IncidentInput) error {
	if in.Title == "" {
		return ErrTitleRequired
	}
	if in.Description == "" {
		return ErrDescriptionRequired
	}
	if utf8.RuneCountInString(in.Title) < minTitleLength {
		return ErrTitleTooShort
	}
	if utf8.RuneCountInString(in.Description) < minDescriptionLength {
		return ErrDescriptionTooShort
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, in.Status)
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPriority, in.Priority)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return ErrIncompleteLocation
	}
	if in.PhotoPath != "" && !s.photos.Exists(in.PhotoPath) {
		return fmt.Errorf("%w: %s", ErrPhotoNotFound, in.PhotoPath)
	}
	return nil
}

// locationName falls back to the coordinates when no place name is known.
func locationName(in *IncidentInput) *string {
	if in.Latitude == nil {
		return nil
	}
	if in.LocationName != "" {
		return &in.LocationName
	}
	name := fmt.Sprintf("Lat: %.6f, Lon: %.6f", *in.Latitude, *in.Longitude)
	return &name
}

// Create saves a new incident for the signed-in user and then tries to
// mirror it. A failed mirror leaves the incident saved and unmirrored.
func (s *IncidentService) Create(ctx context.Context, in IncidentInput) (*models.Incident, error) {
	userID := s.session.UserID()
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}

	in.normalize()
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	incident := &models.Incident{
		UserID:       userID,
		Title:        in.Title,
		Description:  in.Description,
		Category:     models.OptionalString(in.Category),
		Status:       models.StatusPending,
		Priority:     in.Priority,
		PhotoPath:    models.OptionalString(in.PhotoPath),
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		LocationName: locationName(&in),
	}
	if incident.Priority == "" {
		incident.Priority = models.PriorityMedium
	}

	rows, err := s.incidents.Save(ctx, incident)
	if err != nil {
		return nil, fmt.Errorf("failed to save incident: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("failed to save incident: no rows written")
	}
	s.log.Info("incident created", zap.Uint("incident_id", incident.ID), zap.Uint("user_id", userID))
	publish(s.events, s.log, EventIncidentCreated, incident)

	if err := s.sync.SyncOne(ctx, incident); err != nil {
		s.log.Info("incident kept for later sync", zap.Uint("incident_id", incident.ID), zap.Error(err))
	}
	return incident, nil
}

// Update applies the edit form. Mirrored incidents are pushed again; a failed
// push is only logged.
func (s *IncidentService) Update(ctx context.Context, id uint, in IncidentInput) (*models.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	in.normalize()
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	oldPhoto := models.StringValue(incident.PhotoPath)

	incident.Title = in.Title
	incident.Description = in.Description
	incident.Category = models.OptionalString(in.Category)
	if in.Status != "" {
		incident.Status = in.Status
	}
	if in.Priority != "" {
		incident.Priority = in.Priority
	}
	incident.PhotoPath = models.OptionalString(in.PhotoPath)
	incident.Latitude = in.Latitude
	incident.Longitude = in.Longitude
	incident.LocationName = locationName(&in)

	rows, err := s.incidents.Save(ctx, incident)
	if err != nil {
		return nil, fmt.Errorf("failed to update incident %d: %w", id, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("incident %d: %w", id, repositories.ErrNotFound)
	}
	if oldPhoto != "" && oldPhoto != in.PhotoPath {
		if err := s.photos.Delete(oldPhoto); err != nil {
			s.log.Warn("failed to remove replaced photo", zap.String("path", oldPhoto), zap.Error(err))
		}
	}
	s.log.Info("incident updated", zap.Uint("incident_id", id))
	publish(s.events, s.log, EventIncidentUpdated, incident)

	if incident.Mirrored {
		if err := s.remote.UpdateIncident(ctx, incident); err != nil {
			s.log.Info("remote copy not updated", zap.Uint("incident_id", id), zap.Error(err))
		}
	}
	return incident, nil
}

// Delete removes the photo file and then the incident.
func (s *IncidentService) Delete(ctx context.Context, id uint) error {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if incident.PhotoPath != nil {
		if err := s.photos.Delete(*incident.PhotoPath); err != nil {
			s.log.Warn("failed to remove photo", zap.String("path", *incident.PhotoPath), zap.Error(err))
		}
	}

	rows, err := s.incidents.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete incident %d: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("incident %d: %w", id, repositories.ErrNotFound)
	}

	s.log.Info("incident deleted", zap.Uint("incident_id", id))
	publish(s.events, s.log, EventIncidentDeleted, incident)
	return nil
}

// Get returns one incident.
func (s *IncidentService) Get(ctx context.Context, id uint) (*models.Incident, error) {
	return s.incidents.GetByID(ctx, id)
}

// List returns the incidents matching the filter, newest first. The query
// matches title, description or category, ignoring case.
func (s *IncidentService) List(ctx context.Context, f ListFilter) ([]models.Incident, error) {
	var (
		list []models.Incident
		err  error
	)
	if f.Mine {
		list, err = s.incidents.GetByUser(ctx, s.session.UserID())
	} else {
		list, err = s.incidents.GetByStatus(ctx, f.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	filterStatus := f.Status != "" && f.Status != models.StatusAll
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]models.Incident, 0, len(list))
	for _, inc := range list {
		if filterStatus && inc.Status != f.Status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(inc.Title), query) &&
			!strings.Contains(strings.ToLower(inc.Description), query) &&
			!strings.Contains(strings.ToLower(models.StringValue(inc.Category)), query) {
			continue
		}
		out = append(out, inc)
	}
	return out, nil
}

// EmptyMessage is what the list screen shows when List returned nothing.
func EmptyMessage(f ListFilter) string {
	switch {
	case strings.TrimSpace(f.Query) != "":
		return fmt.Sprintf("No results found for '%s'", strings.TrimSpace(f.Query))
	case f.Status != "" && f.Status != models.StatusAll:
		return fmt.Sprintf("No incidents with status '%s'", f.Status)
	default:
		return "No incidents yet. Create your first incident."
	}
}

// Search matches title or description in the store.
func (s *IncidentService) Search(ctx context.Context, query string) ([]models.Incident, error) {
	list, err := s.incidents.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search incidents: %w", err)
	}
	return list, nil
}

// Sync pushes one incident: a PUT when it is mirrored already, otherwise a
// POST that marks it mirrored.
func (s *IncidentService) Sync(ctx context.Context, id uint) (*models.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if incident.Mirrored {
		if err := s.remote.UpdateIncident(ctx, incident); err != nil {
			return nil, fmt.Errorf("failed to update remote copy of incident %d: %w", id, err)
		}
		return incident, nil
	}

	if err := s.sync.SyncOne(ctx, incident); err != nil {
		return nil, err
	}
	return incident, nil
}

// Stats returns the dashboard counters.
func (s *IncidentService) Stats(ctx context.Context) (*repositories.IncidentStats, error) {
	stats, err := s.incidents.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}
	return stats, nil
}

// ShareText returns the plain-text summary of an incident.
func (s *IncidentService) ShareText(ctx context.Context, id uint) (string, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return incident.ShareText(), nil
}

// SavePhoto stores an uploaded photo and returns its local path.
func (s *IncidentService) SavePhoto(src io.Reader, ext string) (string, error) {
	path, err := s.photos.Save(src, ext)
	if err != nil {
		return "", err
	}
	s.log.Debug("photo stored", zap.String("path", path))
	return path, nil
}

// RemoteIncidents lists the remote collection as-is.
func (s *IncidentService) RemoteIncidents(ctx context.Context) ([]mirror.Post, error) {
	posts, err := s.remote.ListIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote incidents: %w", err)
	}
	return posts, nil
}
