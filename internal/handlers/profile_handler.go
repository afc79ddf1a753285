package handlers

import (
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ProfileHandler struct {
	userService *services.UserService
}

func NewProfileHandler(userService *services.UserService) *ProfileHandler {
	return &ProfileHandler{userService: userService}
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	user, err := h.userService.GetUser(c.UserContext(), middleware.GetEmail(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toProfileResponse(user))
}

func (h *ProfileHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Password != "" && len(req.Password) < 8 {
		return badRequest(c, "password must be at least 8 characters")
	}

	user, err := h.userService.CreateUser(c.UserContext(), middleware.GetEmail(c), req.Password, toProfileInput(&req.ProfileRequest))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toProfileResponse(user))
}

func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var req dto.ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, report, err := h.userService.UpdateUserProfile(c.UserContext(), middleware.GetEmail(c), toProfileInput(&req))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.UpdateProfileResponse{
		Profile: toProfileResponse(user),
		Synced:  report.OK(),
	})
}

func toProfileInput(req *dto.ProfileRequest) *services.ProfileInput {
	return &services.ProfileInput{
		Name:   req.Name,
		Age:    req.Age,
		Height: req.Height,
		Weight: req.Weight,
		Goal:   req.Goal,
	}
}

func toProfileResponse(u *models.User) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Age:       u.Age,
		Height:    u.Height,
		Weight:    u.Weight,
		Goal:      u.Goal,
		BMI:       u.BMI,
		Complete:  u.IsComplete(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
