package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"kotoba_backend/internal/service"
)

// CronController exposes the batch jobs as secret-guarded endpoints for
// an external scheduler. Each job is idempotent: rerunning after a
// partial failure processes only what is still due.
type CronController struct {
	tiers  *service.TierChangeService
	trials *service.TrialService
}

func NewCronController(tiers *service.TierChangeService, trials *service.TrialService) *CronController {
	return &CronController{tiers: tiers, trials: trials}
}

func (ctrl *CronController) ProcessScheduledTierChanges(c *fiber.Ctx) error {
	processed, err := ctrl.tiers.ProcessScheduledTierChanges(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":   false,
			"processed": processed,
			"error":     "Could not list due tier changes",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"processed": processed,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (ctrl *CronController) ExpireTrials(c *fiber.Ctx) error {
	processed, err := ctrl.trials.ExpireTrials(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":   false,
			"processed": processed,
			"error":     "Could not list expired trials",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"processed": processed,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
