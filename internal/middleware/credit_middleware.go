package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/internal/service"
	"kotoba_backend/pkg/utils/jwt"
)

// RequireCredits gates a usage endpoint on the caller's balance. The
// check here is advisory; the handler's deduction is the atomic
// enforcement point.
func RequireCredits(credits *service.CreditService, usage model.UsageType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		check, err := credits.CheckCredits(c.Context(), claims.UserID, usage, 1)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "No subscription found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not check credit balance",
			})
		}

		if !check.Allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":             "Insufficient credits. Please upgrade your plan.",
				"credits_required":  check.CreditsRequired,
				"credits_available": check.CreditsAvailable,
			})
		}

		return c.Next()
	}
}
