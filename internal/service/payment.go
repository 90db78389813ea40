package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/pkg/email"
	"kotoba_backend/pkg/plans"
)

const maxCheckoutMonths = 12

type CheckoutResult struct {
	SessionID   string  `json:"session_id"`
	URL         string  `json:"url"`
	Amount      float64 `json:"amount"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"final_amount"`
}

type PaymentService struct {
	payments repository.PendingPaymentStore
	users    repository.UserStore
	vouchers *VoucherService
	tiers    *TierChangeService
	mail     *email.Service

	successURL string
	cancelURL  string
}

func NewPaymentService(
	stripeKey string,
	payments repository.PendingPaymentStore,
	users repository.UserStore,
	vouchers *VoucherService,
	tiers *TierChangeService,
	mail *email.Service,
	successURL, cancelURL string,
) *PaymentService {
	stripe.Key = stripeKey
	return &PaymentService{
		payments:   payments,
		users:      users,
		vouchers:   vouchers,
		tiers:      tiers,
		mail:       mail,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateCheckoutSession opens a Stripe checkout for a paid tier and
// records the pending payment. A voucher code, when given, is validated
// and reserved as a pending redemption tied to this checkout.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, userID uint, target model.Tier, durationMonths int, voucherCode string) (*CheckoutResult, error) {
	if !plans.IsValidTier(target) {
		return nil, validationf("unknown tier: %s", target)
	}
	if target == model.TierFree {
		return nil, validationf("the FREE tier requires no payment")
	}
	if durationMonths < 1 || durationMonths > maxCheckoutMonths {
		return nil, validationf("duration_months must be between 1 and %d", maxCheckoutMonths)
	}

	amount := plans.GetPlanLimits(target).Price * float64(durationMonths)

	var validation *VoucherValidation
	discount := 0.0
	if voucherCode != "" {
		var err error
		validation, err = s.vouchers.ValidateVoucher(ctx, voucherCode, userID, target, amount, durationMonths)
		if err != nil {
			return nil, err
		}
		if !validation.Valid {
			return nil, validationf("voucher rejected: %s", validation.Error)
		}
		discount = validation.DiscountPreview.Discount
	}
	final := amount - discount

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(user.Email),
		SuccessURL:    stripe.String(s.successURL),
		CancelURL:     stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(int64(final * 100)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Kotoba %s subscription (%d months)", target, durationMonths)),
					},
				},
			},
		},
	}

	checkoutSession, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("could not create checkout session: %w", err)
	}

	payment := &model.PendingPayment{
		UserID:          userID,
		TargetTier:      target,
		Amount:          final,
		Currency:        "USD",
		DurationMonths:  durationMonths,
		Status:          model.PaymentPending,
		StripeSessionID: checkoutSession.ID,
	}

	if validation != nil {
		redemption, err := s.vouchers.BeginRedemption(ctx, validation, userID, nil)
		if err != nil {
			return nil, err
		}
		payment.VoucherRedemptionID = &redemption.ID
		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, err
		}
		if err := s.vouchers.AttachPayment(ctx, redemption.ID, payment.ID); err != nil {
			log.Printf("Could not link redemption %d to payment %d: %v", redemption.ID, payment.ID, err)
		}
	} else if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	return &CheckoutResult{
		SessionID:   checkoutSession.ID,
		URL:         checkoutSession.URL,
		Amount:      amount,
		Discount:    discount,
		FinalAmount: final,
	}, nil
}

// HandleCheckoutCompleted finalizes a confirmed checkout: the payment
// flips to completed exactly once, the tier is applied and any voucher
// redemption completes. Webhook replays hit the consumed status
// transition and become no-ops. A failed tier application moves the
// payment back to pending so a later delivery can recover the grant.
func (s *PaymentService) HandleCheckoutCompleted(ctx context.Context, sessionID string) error {
	payment, err := s.payments.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("Ignoring checkout completion for unknown session %s", sessionID)
			return nil
		}
		return err
	}

	completed, err := s.payments.TransitionStatus(ctx, payment.ID, model.PaymentPending, model.PaymentCompleted)
	if err != nil {
		return err
	}
	if !completed {
		return nil
	}

	if _, err := s.tiers.ApplyTierChange(ctx, payment.UserID, payment.TargetTier, payment.DurationMonths); err != nil {
		// Hand the claim back so the gateway retry can land the tier
		// and credit grant instead of hitting a consumed transition.
		if _, revertErr := s.payments.TransitionStatus(ctx, payment.ID, model.PaymentCompleted, model.PaymentPending); revertErr != nil {
			log.Printf("Could not release payment %d after failed tier change: %v", payment.ID, revertErr)
		}
		return fmt.Errorf("payment %d completed but tier change failed: %w", payment.ID, err)
	}

	if payment.VoucherRedemptionID != nil {
		if err := s.vouchers.CompleteRedemption(ctx, *payment.VoucherRedemptionID); err != nil {
			log.Printf("Could not complete redemption %d: %v", *payment.VoucherRedemptionID, err)
		}
	}

	s.sendReceipt(ctx, payment)
	return nil
}

// HandleCheckoutExpired releases an abandoned checkout and frees any
// reserved voucher redemption.
func (s *PaymentService) HandleCheckoutExpired(ctx context.Context, sessionID string) error {
	payment, err := s.payments.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	expired, err := s.payments.TransitionStatus(ctx, payment.ID, model.PaymentPending, model.PaymentExpired)
	if err != nil {
		return err
	}
	if !expired {
		return nil
	}

	if payment.VoucherRedemptionID != nil {
		if err := s.vouchers.CancelRedemption(ctx, *payment.VoucherRedemptionID); err != nil {
			log.Printf("Could not cancel redemption %d: %v", *payment.VoucherRedemptionID, err)
		}
	}
	return nil
}

func (s *PaymentService) sendReceipt(ctx context.Context, payment *model.PendingPayment) {
	if s.mail == nil {
		return
	}
	user, err := s.users.GetByID(ctx, payment.UserID)
	if err != nil {
		log.Printf("Could not load user %d for receipt: %v", payment.UserID, err)
		return
	}
	if err := s.mail.SendPaymentReceiptEmail(user.Email, user.DisplayName, string(payment.TargetTier), payment.Amount, payment.Currency); err != nil {
		log.Printf("Could not send receipt email: %v", err)
	}
}
