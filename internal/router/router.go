package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/uide-dev/titulacion-api/internal/config"
	"github.com/uide-dev/titulacion-api/internal/handler"
	"github.com/uide-dev/titulacion-api/internal/middleware"
	"github.com/uide-dev/titulacion-api/internal/models"
	"github.com/uide-dev/titulacion-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityHandler     *handler.ActivityHandler
	EvidenceHandler     *handler.EvidenceHandler
	ProgressionHandler  *handler.ProgressionHandler
	DefenseHandler      *handler.DefenseHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	authenticated := api.Group("", jwtMiddleware)

	studentOnly := middleware.RequireRole(models.RoleStudent)
	tutorOnly := middleware.RequireRole(models.RoleTutor)
	instructorOnly := middleware.RequireRole(models.RoleInstructor)
	jurorOnly := middleware.RequireRole(models.PanelEligibleRoles...)
	staffOnly := middleware.RequireRole(models.StaffRoles...)

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(authenticated.Group("/activities"), staffOnly)
	}

	if deps.EvidenceHandler != nil {
		deps.EvidenceHandler.Register(
			authenticated.Group("/evidences"),
			studentOnly,
			tutorOnly,
			instructorOnly,
			middleware.RateLimit("evidence-submit", 30, time.Minute),
		)
	}

	if deps.ProgressionHandler != nil {
		deps.ProgressionHandler.Register(authenticated.Group("/progression"), studentOnly, staffOnly)
	}

	if deps.DefenseHandler != nil {
		deps.DefenseHandler.Register(authenticated, jurorOnly, staffOnly)
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(authenticated.Group("/notifications"))
	}
}
