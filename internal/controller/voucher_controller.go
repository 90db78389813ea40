package controller

import (
	"github.com/gofiber/fiber/v2"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/service"
	"kotoba_backend/pkg/utils/jwt"
)

type VoucherValidateInput struct {
	Code           string  `json:"code" validate:"required"`
	TargetTier     string  `json:"target_tier" validate:"required"`
	Amount         float64 `json:"amount"`
	DurationMonths int     `json:"duration_months"`
}

type VoucherController struct {
	vouchers *service.VoucherService
}

func NewVoucherController(vouchers *service.VoucherService) *VoucherController {
	return &VoucherController{vouchers: vouchers}
}

// Validate previews a voucher against a prospective purchase. Business
// rejections come back as valid:false with a reason, not as an error
// status.
func (ctrl *VoucherController) Validate(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(VoucherValidateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if input.DurationMonths == 0 {
		input.DurationMonths = 1
	}

	validation, err := ctrl.vouchers.ValidateVoucher(
		c.Context(),
		input.Code,
		claims.UserID,
		model.Tier(input.TargetTier),
		input.Amount,
		input.DurationMonths,
	)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(validation)
}

func (ctrl *VoucherController) MyRedemptions(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	redemptions, err := ctrl.vouchers.GetUserRedemptions(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"redemptions": redemptions,
	})
}
