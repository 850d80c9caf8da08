package handlers

import (
	"fmt"

	"fieldreport/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DashboardHandler serves the dashboard screen.
type DashboardHandler struct {
	authService     *services.AuthService
	incidentService *services.IncidentService
	syncService     *services.SyncService
	log             *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(authService *services.AuthService, incidentService *services.IncidentService, syncService *services.SyncService, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		authService:     authService,
		incidentService: incidentService,
		syncService:     syncService,
		log:             log.Named("dashboard_handler"),
	}
}

// RegisterRoutes registers the dashboard routes.
func (h *DashboardHandler) RegisterRoutes(router fiber.Router) {
	dashboardRoutes := router.Group("/dashboard")
	dashboardRoutes.Get("/", h.HandleDashboard)
	dashboardRoutes.Post("/sync", h.HandleSync)
}

// HandleDashboard returns the welcome line, the counters and connectivity.
func (h *DashboardHandler) HandleDashboard(c *fiber.Ctx) error {
	stats, err := h.incidentService.Stats(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err, "Could not load dashboard")
	}

	return c.JSON(fiber.Map{
		"welcome": fmt.Sprintf("Welcome, %s", h.authService.CurrentUserFullName()),
		"stats":   stats,
		"online":  h.syncService.Online(c.UserContext()),
	})
}

// HandleSync mirrors every pending incident.
func (h *DashboardHandler) HandleSync(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if !h.syncService.Online(ctx) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": msgOffline,
		})
	}

	result, err := h.syncService.SyncAll(ctx)
	if err != nil {
		return respondError(c, h.log, err, "Could not sync incidents")
	}

	return c.JSON(fiber.Map{
		"message": syncMessage(result),
		"synced":  result.Synced,
		"failed":  result.Failed,
	})
}

func syncMessage(r services.SyncResult) string {
	switch {
	case r.Synced > 0:
		return fmt.Sprintf("%d incidents synced successfully", r.Synced)
	case r.Failed > 0:
		return "Some incidents could not be synced"
	default:
		return "No incidents pending sync"
	}
}
