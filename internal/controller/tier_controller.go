package controller

import (
	"github.com/gofiber/fiber/v2"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/internal/service"
	"kotoba_backend/pkg/plans"
	"kotoba_backend/pkg/utils/jwt"
)

type TierChangeInput struct {
	Tier           string `json:"tier" validate:"required"`
	DurationMonths int    `json:"duration_months"`
	VoucherCode    string `json:"voucher_code"`
}

type TierController struct {
	subs     repository.SubscriptionStore
	tiers    *service.TierChangeService
	trials   *service.TrialService
	payments *service.PaymentService
}

func NewTierController(subs repository.SubscriptionStore, tiers *service.TierChangeService, trials *service.TrialService, payments *service.PaymentService) *TierController {
	return &TierController{subs: subs, tiers: tiers, trials: trials, payments: payments}
}

func (ctrl *TierController) GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := ctrl.subs.GetByUserID(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(sub)
}

func (ctrl *TierController) ValidateChange(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(TierChangeInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	decision, err := ctrl.tiers.ValidateTierChange(c.Context(), claims.UserID, model.Tier(input.Tier))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(decision)
}

// RequestChange executes a validated change: upgrades and new paid
// subscriptions go through Stripe checkout, downgrades get scheduled,
// and a first FREE subscription is created directly.
func (ctrl *TierController) RequestChange(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(TierChangeInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	target := model.Tier(input.Tier)
	if input.DurationMonths == 0 {
		input.DurationMonths = 1
	}

	decision, err := ctrl.tiers.ValidateTierChange(c.Context(), claims.UserID, target)
	if err != nil {
		return respondError(c, err)
	}

	switch decision.ChangeType {
	case plans.ChangeSame:
		return c.JSON(fiber.Map{
			"change_type": decision.ChangeType,
			"message":     decision.Message,
		})

	case plans.ChangeDowngrade:
		sub, err := ctrl.tiers.ScheduleDowngrade(c.Context(), claims.UserID, target)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"change_type":    decision.ChangeType,
			"message":        decision.Message,
			"effective_date": sub.ScheduledTierDate,
		})

	case plans.ChangeNew:
		if target == model.TierFree {
			sub, err := ctrl.trials.CreateFreeSubscription(c.Context(), claims.UserID)
			if err != nil {
				return respondError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{
				"change_type":  decision.ChangeType,
				"message":      decision.Message,
				"subscription": sub,
			})
		}
		fallthrough

	case plans.ChangeUpgrade:
		checkout, err := ctrl.payments.CreateCheckoutSession(c.Context(), claims.UserID, target, input.DurationMonths, input.VoucherCode)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"change_type":  decision.ChangeType,
			"message":      decision.Message,
			"checkout_url": checkout.URL,
			"session_id":   checkout.SessionID,
			"amount":       checkout.Amount,
			"discount":     checkout.Discount,
			"final_amount": checkout.FinalAmount,
		})
	}

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Unsupported change type",
	})
}

func (ctrl *TierController) CancelScheduledChange(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := ctrl.tiers.CancelScheduledTierChange(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":      "Scheduled tier change cancelled",
		"subscription": sub,
	})
}
