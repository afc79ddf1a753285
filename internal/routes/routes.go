package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health  *handlers.HealthHandler
	Profile *handlers.ProfileHandler
	Plan    *handlers.PlanHandler
	Sync    *handlers.SyncHandler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Admin: X-Admin-Token or an admin JWT
	admin := api.Group("/admin", middleware.AdminRequired(cfg))
	admin.Post("/sync", h.Sync.SyncAll)
	admin.Get("/users/:email", h.Sync.LookupUser)

	// Registered after the public and admin routes, which answer before this middleware runs.
	protected := api.Group("", middleware.JWTProtected(cfg))

	protected.Get("/profile", h.Profile.Get)
	protected.Post("/profile", h.Profile.Create)
	protected.Put("/profile", h.Profile.Update)

	protected.Get("/plans/today", h.Plan.Today)
	protected.Post("/plans/today", h.Plan.Ensure)
	// Generation is expensive: 5 regenerations/min per caller
	protected.Post("/plans/today/regenerate", limiter.New(limiter.Config{
		Max:               5,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return middleware.GetEmail(c) },
	}), h.Plan.Regenerate)
	protected.Get("/plans/:date", h.Plan.ForDate)

	protected.Post("/sync/me", h.Sync.SyncMe)
}
