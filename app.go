package main

import (
	"context"
	"fmt"
	"time"

	"fieldreport/internal/config"
	"fieldreport/internal/database"
	"fieldreport/internal/handlers"
	"fieldreport/internal/middleware"
	"fieldreport/internal/mirror"
	"fieldreport/internal/photos"
	"fieldreport/internal/repositories"
	"fieldreport/internal/services"
	"fieldreport/internal/session"
	"fieldreport/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App wires the store, the mirror, the services and the HTTP screens.
type App struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	mq  *rabbitmq.Client

	Session   *session.Session
	Auth      *services.AuthService
	Incidents *services.IncidentService
	Sync      *services.SyncService
	Fiber     *fiber.App
}

// NewApp opens the local store, creates the bootstrap account and builds the
// HTTP application. A nil network checker inspects the OS interfaces.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger, network mirror.NetworkChecker) (*App, error) {
	// --- Local store ---
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	userRepo := repositories.NewGORMUserRepository(db)
	incidentRepo := repositories.NewGORMIncidentRepository(db)

	boot := database.Bootstrap{
		Username: cfg.BootstrapUsername,
		Password: cfg.BootstrapPassword,
		FullName: "Default user",
		Email:    "user@fieldreport.local",
	}
	if err := database.Initialize(ctx, db, userRepo, boot, log); err != nil {
		closeDB(db, log)
		return nil, err
	}

	photoStore, err := photos.NewStore(cfg.PhotoDir)
	if err != nil {
		closeDB(db, log)
		return nil, err
	}

	// --- Remote mirror ---
	if network == nil {
		network = mirror.InterfaceChecker{}
	}
	remote := mirror.New(mirror.Config{
		BaseURL:  cfg.RemoteBaseURL,
		Resource: cfg.RemoteResource,
		Timeout:  cfg.RemoteTimeout,
	}, network, log)

	// --- Events (optional) ---
	var (
		mq     *rabbitmq.Client
		events services.EventPublisher
	)
	if cfg.RabbitMQURL != "" {
		mq, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			log.Warn("incident events disabled", zap.Error(err))
		} else {
			events = mq
		}
	}

	// --- Services ---
	sess := session.New()
	authService := services.NewAuthService(userRepo, sess, log)
	syncService := services.NewSyncService(incidentRepo, remote, events, log)
	incidentService := services.NewIncidentService(incidentRepo, syncService, remote, photoStore, sess, events, log)

	a := &App{
		cfg:       cfg,
		log:       log,
		db:        db,
		mq:        mq,
		Session:   sess,
		Auth:      authService,
		Incidents: incidentService,
		Sync:      syncService,
	}
	a.Fiber = a.newFiber()
	return a, nil
}

func (a *App) newFiber() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "fieldreport",
		BodyLimit: 16 * 1024 * 1024,
	})

	// --- Middleware ---
	app.Use(logger.New())

	guard := middleware.SessionRequired(a.Session)

	authHandler := handlers.NewAuthHandler(a.Auth, a.log)
	dashboardHandler := handlers.NewDashboardHandler(a.Auth, a.Incidents, a.Sync, a.log)
	incidentHandler := handlers.NewIncidentHandler(a.Incidents, a.log)

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1, guard)

	protectedRoutes := apiV1.Group("", guard)
	dashboardHandler.RegisterRoutes(protectedRoutes)
	incidentHandler.RegisterRoutes(protectedRoutes)

	// --- Health Check Endpoint ---
	app.Get("/health", a.handleHealth)

	return app
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	dbStatus := "connected"
	if sqlDB, err := a.db.DB(); err != nil {
		dbStatus = "unavailable"
	} else if err := sqlDB.PingContext(c.UserContext()); err != nil {
		dbStatus = "unavailable"
	}

	eventsStatus := "disabled"
	if a.mq != nil {
		eventsStatus = "connected"
	}

	status := fiber.StatusOK
	health := "healthy"
	if dbStatus != "connected" {
		status = fiber.StatusServiceUnavailable
		health = "unhealthy"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   health,
		"time":     time.Now().Format(time.RFC3339),
		"database": dbStatus,
		"events":   eventsStatus,
	})
}

// Events returns the RabbitMQ client, or nil when events are disabled.
func (a *App) Events() *rabbitmq.Client {
	return a.mq
}

// Close releases the RabbitMQ connection and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors occurred during shutdown: %v", errs)
	}
	return nil
}

func closeDB(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
