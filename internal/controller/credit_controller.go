package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/internal/service"
	"kotoba_backend/pkg/utils/jwt"
)

type CreditCheckInput struct {
	UsageType      string `json:"usage_type" validate:"required"`
	EstimatedUnits int    `json:"estimated_units"`
}

type CreditController struct {
	credits *service.CreditService
}

func NewCreditController(credits *service.CreditService) *CreditController {
	return &CreditController{credits: credits}
}

// Check reports whether the balance covers an estimated action. Pure
// read; nothing is deducted here.
func (ctrl *CreditController) Check(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(CreditCheckInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if input.EstimatedUnits == 0 {
		input.EstimatedUnits = 1
	}

	check, err := ctrl.credits.CheckCredits(c.Context(), claims.UserID, model.UsageType(input.UsageType), input.EstimatedUnits)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"allowed": check.Allowed,
		"reason":  check.Reason,
		"credits": fiber.Map{
			"required":  check.CreditsRequired,
			"available": check.CreditsAvailable,
			"estimated": check.EstimatedUnits,
		},
		"trial": fiber.Map{
			"is_trial_user":  check.IsTrialUser,
			"days_remaining": check.TrialDaysRemaining,
		},
	})
}

// History returns a page of the credit ledger, newest first.
func (ctrl *CreditController) History(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	filter := repository.HistoryFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
		Type:   model.UsageType(c.Query("type")),
	}
	if raw := c.Query("start_date"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "start_date must be RFC3339",
			})
		}
		filter.Start = &start
	}
	if raw := c.Query("end_date"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "end_date must be RFC3339",
			})
		}
		filter.End = &end
	}

	transactions, total, err := ctrl.credits.GetHistory(c.Context(), claims.UserID, filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"total":        total,
	})
}

// Stats aggregates the last 30 days of credit consumption.
func (ctrl *CreditController) Stats(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	stats, err := ctrl.credits.GetUsageStats(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(stats)
}
