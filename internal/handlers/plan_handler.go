package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PlanHandler struct {
	planService *services.PlanService
	userService *services.UserService
}

func NewPlanHandler(planService *services.PlanService, userService *services.UserService) *PlanHandler {
	return &PlanHandler{planService: planService, userService: userService}
}

// Today returns the stored plan for today without generating one.
func (h *PlanHandler) Today(c *fiber.Ctx) error {
	return h.show(c, h.planService.Today())
}

// ForDate returns the stored plan for the :date param (YYYY-MM-DD).
func (h *PlanHandler) ForDate(c *fiber.Ctx) error {
	date := c.Params("date")
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	return h.show(c, date)
}

// Ensure returns today's plan, generating it only when none is stored.
func (h *PlanHandler) Ensure(c *fiber.Ctx) error {
	user, err := h.userService.GetUser(c.UserContext(), middleware.GetEmail(c))
	if err != nil {
		return respondError(c, err)
	}

	plan, generated, err := h.planService.Ensure(c.UserContext(), user, h.planService.Today())
	if err != nil {
		return respondError(c, err)
	}
	resp := toPlanResponse(plan, services.PlanPopulated)
	resp.Generated = generated
	if generated {
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
	return c.JSON(resp)
}

// Regenerate replaces today's plan with a freshly generated one.
func (h *PlanHandler) Regenerate(c *fiber.Ctx) error {
	user, err := h.userService.GetUser(c.UserContext(), middleware.GetEmail(c))
	if err != nil {
		return respondError(c, err)
	}

	plan, err := h.planService.Regenerate(c.UserContext(), user, h.planService.Today())
	if err != nil {
		return respondError(c, err)
	}
	resp := toPlanResponse(plan, services.PlanPopulated)
	resp.Generated = true
	return c.JSON(resp)
}

func (h *PlanHandler) show(c *fiber.Ctx, date string) error {
	email := middleware.GetEmail(c)
	plan, err := h.planService.GetOrEmpty(c.UserContext(), email, date)
	if err != nil {
		return respondError(c, err)
	}

	state := services.PlanPopulated
	if plan.IsEmpty() {
		if state, err = h.planService.State(c.UserContext(), email, date); err != nil {
			return respondError(c, err)
		}
	}
	return c.JSON(toPlanResponse(plan, state))
}

func toPlanResponse(plan *models.DailyPlan, state services.PlanState) dto.PlanResponse {
	resp := dto.PlanResponse{
		Email:       plan.Email,
		Date:        plan.Date,
		State:       state.String(),
		FitnessPlan: make([]dto.PlanItemResponse, 0, len(plan.Fitness)),
		DietPlan:    make([]dto.PlanItemResponse, 0, len(plan.Diet)),
	}
	if plan.Goal != nil {
		resp.CalorieGoal = &dto.CalorieGoalResponse{Intake: plan.Goal.Intake, Burn: plan.Goal.Burn}
	}
	for _, it := range plan.Fitness {
		resp.FitnessPlan = append(resp.FitnessPlan, dto.PlanItemResponse{
			Position: it.Position, Type: it.Type, Content: it.Content, Calories: it.Calories,
		})
	}
	for _, it := range plan.Diet {
		resp.DietPlan = append(resp.DietPlan, dto.PlanItemResponse{
			Position: it.Position, Type: it.Type, Content: it.Content, Calories: it.Calories,
		})
	}
	return resp
}
