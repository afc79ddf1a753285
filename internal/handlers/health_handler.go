package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// Pinger is satisfied by the local store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db            Pinger
	mirrorBackend string
}

func NewHealthHandler(db Pinger, mirrorBackend string) *HealthHandler {
	return &HealthHandler{db: db, mirrorBackend: mirrorBackend}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, dbStatus := "ok", "ok"
	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		dbStatus = "unhealthy: " + err.Error()
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Mirror:    h.mirrorBackend,
	})
}
