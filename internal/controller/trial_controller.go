package controller

import (
	"github.com/gofiber/fiber/v2"

	"kotoba_backend/internal/service"
	"kotoba_backend/pkg/utils/jwt"
)

type ExtendTrialInput struct {
	AdditionalDays int `json:"additional_days" validate:"required,min=1,max=30"`
}

type TrialController struct {
	trials *service.TrialService
}

func NewTrialController(trials *service.TrialService) *TrialController {
	return &TrialController{trials: trials}
}

func (ctrl *TrialController) GetStatus(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	status, err := ctrl.trials.GetTrialStatus(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(status)
}

func (ctrl *TrialController) Start(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := ctrl.trials.StartTrial(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "Trial started",
		"subscription": sub,
	})
}

func (ctrl *TrialController) Extend(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(ExtendTrialInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	sub, err := ctrl.trials.ExtendTrial(c.Context(), claims.UserID, input.AdditionalDays)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":        "Trial extended",
		"trial_end_date": sub.TrialEndDate,
	})
}
