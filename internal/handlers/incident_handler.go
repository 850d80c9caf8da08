package handlers

import (
	"path/filepath"
	"strconv"

	"fieldreport/internal/models"
	"fieldreport/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// IncidentHandler serves the create, list and detail screens.
type IncidentHandler struct {
	service  *services.IncidentService
	validate *validator.Validate
	log      *zap.Logger
}

// NewIncidentHandler creates a new IncidentHandler.
func NewIncidentHandler(service *services.IncidentService, log *zap.Logger) *IncidentHandler {
	return &IncidentHandler{
		service:  service,
		validate: validator.New(),
		log:      log.Named("incident_handler"),
	}
}

// RegisterRoutes registers the incident, photo and remote routes.
func (h *IncidentHandler) RegisterRoutes(router fiber.Router) {
	incidentRoutes := router.Group("/incidents")
	incidentRoutes.Get("/", h.HandleListIncidents)
	incidentRoutes.Get("/options", h.HandleOptions)
	incidentRoutes.Post("/", h.HandleCreateIncident)
	incidentRoutes.Get("/:id", h.HandleGetIncident)
	incidentRoutes.Put("/:id", h.HandleUpdateIncident)
	incidentRoutes.Delete("/:id", h.HandleDeleteIncident)
	incidentRoutes.Post("/:id/sync", h.HandleSyncIncident)
	incidentRoutes.Get("/:id/share", h.HandleShareIncident)

	router.Post("/photos", h.HandleUploadPhoto)
	router.Get("/remote/incidents", h.HandleRemoteIncidents)
}

// IncidentRequest is the body of the create and edit forms.
type IncidentRequest struct {
	Title        string   `json:"title" validate:"required,min=5,max=200"`
	Description  string   `json:"description" validate:"required,min=10,max=1000"`
	Category     string   `json:"category" validate:"max=50"`
	Status       string   `json:"status" validate:"omitempty,oneof=Pending InProgress Resolved"`
	Priority     string   `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	PhotoPath    string   `json:"photo_path" validate:"max=500"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	LocationName string   `json:"location_name" validate:"max=200"`
}

func (r IncidentRequest) input() services.IncidentInput {
	return services.IncidentInput{
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		Status:       models.IncidentStatus(r.Status),
		Priority:     models.IncidentPriority(r.Priority),
		PhotoPath:    r.PhotoPath,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		LocationName: r.LocationName,
	}
}

// HandleOptions returns the fixed pick lists of the create form and the list filter.
func (h *IncidentHandler) HandleOptions(c *fiber.Ctx) error {
	filters := append([]models.IncidentStatus{models.StatusAll}, models.Statuses...)
	return c.JSON(fiber.Map{
		"categories":     models.Categories,
		"priorities":     models.Priorities,
		"statuses":       models.Statuses,
		"status_filters": filters,
	})
}

// HandleCreateIncident saves a new incident and tries to mirror it.
func (h *IncidentHandler) HandleCreateIncident(c *fiber.Ctx) error {
	var req IncidentRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	incident, err := h.service.Create(c.UserContext(), req.input())
	if err != nil {
		return respondError(c, h.log, err, "Could not save incident")
	}

	message := "Incident created successfully"
	if !incident.Mirrored {
		message = "Incident saved locally, it will be synced later"
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  message,
		"incident": incident,
	})
}

// HandleListIncidents applies the status and text filters.
func (h *IncidentHandler) HandleListIncidents(c *fiber.Ctx) error {
	mine, _ := strconv.ParseBool(c.Query("mine"))
	filter := services.ListFilter{
		Status: models.IncidentStatus(c.Query("status", string(models.StatusAll))),
		Query:  c.Query("q"),
		Mine:   mine,
	}

	incidents, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.log, err, "Could not load incidents")
	}

	resp := fiber.Map{
		"incidents": incidents,
		"total":     len(incidents),
	}
	if len(incidents) == 0 {
		resp["message"] = services.EmptyMessage(filter)
	}
	return c.JSON(resp)
}

// HandleGetIncident returns one incident with its display fields.
func (h *IncidentHandler) HandleGetIncident(c *fiber.Ctx) error {
	id, ok := incidentID(c)
	if !ok {
		return invalidID(c)
	}

	incident, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err, "Could not load incident")
	}
	return c.JSON(fiber.Map{
		"incident": incident,
		"location": incident.FormattedLocation(),
	})
}

// HandleUpdateIncident applies the edit form.
func (h *IncidentHandler) HandleUpdateIncident(c *fiber.Ctx) error {
	id, ok := incidentID(c)
	if !ok {
		return invalidID(c)
	}

	var req IncidentRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	incident, err := h.service.Update(c.UserContext(), id, req.input())
	if err != nil {
		return respondError(c, h.log, err, "Could not update incident")
	}
	return c.JSON(fiber.Map{
		"message":  "Incident updated successfully",
		"incident": incident,
	})
}

// HandleDeleteIncident removes an incident and its photo.
func (h *IncidentHandler) HandleDeleteIncident(c *fiber.Ctx) error {
	id, ok := incidentID(c)
	if !ok {
		return invalidID(c)
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err, "Could not delete incident")
	}
	return c.JSON(fiber.Map{
		"message": "Incident deleted successfully",
	})
}

// HandleSyncIncident pushes a single incident to the remote collection.
func (h *IncidentHandler) HandleSyncIncident(c *fiber.Ctx) error {
	id, ok := incidentID(c)
	if !ok {
		return invalidID(c)
	}

	incident, err := h.service.Sync(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err, "Could not sync incident")
	}
	return c.JSON(fiber.Map{
		"message":  "Incident synced successfully",
		"incident": incident,
	})
}

// HandleShareIncident returns the share text.
func (h *IncidentHandler) HandleShareIncident(c *fiber.Ctx) error {
	id, ok := incidentID(c)
	if !ok {
		return invalidID(c)
	}

	text, err := h.service.ShareText(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err, "Could not share incident")
	}
	return c.JSON(fiber.Map{
		"text": text,
	})
}

// HandleUploadPhoto stores the multipart "photo" file and returns its path.
func (h *IncidentHandler) HandleUploadPhoto(c *fiber.Ctx) error {
	header, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "A photo file is required",
			"error":   err.Error(),
		})
	}

	file, err := header.Open()
	if err != nil {
		return respondError(c, h.log, err, "Could not read photo")
	}
	defer file.Close()

	path, err := h.service.SavePhoto(file, filepath.Ext(header.Filename))
	if err != nil {
		return respondError(c, h.log, err, "Could not save photo")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Photo saved",
		"path":    path,
	})
}

// HandleRemoteIncidents lists the remote collection without reconciling it.
func (h *IncidentHandler) HandleRemoteIncidents(c *fiber.Ctx) error {
	posts, err := h.service.RemoteIncidents(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err, "Could not load remote incidents")
	}
	return c.JSON(fiber.Map{
		"incidents": posts,
		"total":     len(posts),
	})
}
