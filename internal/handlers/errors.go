package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// respondError maps a service error to its HTTP status. 5xx details are logged, not
// returned.
func respondError(c *fiber.Ctx, err error) error {
	var ge *services.GenerationError
	var ve validator.ValidationErrors

	switch {
	case errors.As(err, &ge) && ge.Kind == services.Unavailable:
		slog.Warn("generation unavailable", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Plan generation is temporarily unavailable", Retryable: true,
		})
	case errors.As(err, &ge):
		slog.Error("generation returned a malformed plan", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: true, Message: "Plan generation returned an invalid plan",
		})
	case errors.Is(err, services.ErrProfileIncomplete):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: true, Message: "Profile needs height and weight before a plan can be generated",
		})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Profile not found",
		})
	case errors.Is(err, services.ErrEmailTaken):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: ve.Error(),
		})
	case errors.Is(err, store.ErrStorage):
		slog.Error("storage failure", "path", c.Path(), "error", err)
	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}
