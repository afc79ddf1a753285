package handlers

import (
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type SyncHandler struct {
	syncService *services.SyncService
}

func NewSyncHandler(syncService *services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// SyncMe pushes the caller's profile to the mirror.
func (h *SyncHandler) SyncMe(c *fiber.Ctx) error {
	report := h.syncService.SyncUser(c.UserContext(), middleware.GetEmail(c))
	return c.JSON(toSyncResponse(report))
}

// SyncAll runs a full pass. Row failures are reported in the body; the status is still 200.
func (h *SyncHandler) SyncAll(c *fiber.Ctx) error {
	report := h.syncService.SyncAll(c.UserContext())
	return c.JSON(toSyncResponse(report))
}

// LookupUser reads a profile locally, falling back to the mirror.
func (h *SyncHandler) LookupUser(c *fiber.Ctx) error {
	email := c.Params("email")
	if email == "" {
		return badRequest(c, "email is required")
	}

	user, source, err := h.syncService.LookupUser(c.UserContext(), email)
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Profile not found",
		})
	}
	return c.JSON(dto.UserLookupResponse{Source: source, Profile: toProfileResponse(user)})
}

func toSyncResponse(r *services.SyncReport) dto.SyncResponse {
	resp := dto.SyncResponse{
		OK:         r.OK(),
		Synced:     r.Synced,
		Failures:   make([]dto.SyncFailureResponse, 0, len(r.Failures)),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, dto.SyncFailureResponse{
			Collection: f.Collection, Key: f.Key, Error: f.Error,
		})
	}
	return resp
}
