package controller

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v74/webhook"

	"kotoba_backend/internal/service"
)

type PaymentController struct {
	payments      *service.PaymentService
	webhookSecret string
}

func NewPaymentController(payments *service.PaymentService, webhookSecret string) *PaymentController {
	return &PaymentController{payments: payments, webhookSecret: webhookSecret}
}

// HandleStripeWebhook processes checkout lifecycle events. A failed
// signature check is logged but still answered with 200: error
// responses here only provoke gateway retry storms.
func (ctrl *PaymentController) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signatureHeader := c.Get("Stripe-Signature")

	event, err := webhook.ConstructEvent(payload, signatureHeader, ctrl.webhookSecret)
	if err != nil {
		log.Printf("Ignoring webhook with invalid signature: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("Processing Stripe webhook event: %s", event.Type)

	switch event.Type {
	case "checkout.session.completed":
		var sessionData struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &sessionData); err != nil {
			log.Printf("Could not decode checkout.session.completed payload: %v", err)
			return c.SendStatus(fiber.StatusOK)
		}

		if err := ctrl.payments.HandleCheckoutCompleted(c.Context(), sessionData.ID); err != nil {
			log.Printf("Could not finalize checkout %s: %v", sessionData.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not finalize checkout",
			})
		}

	case "checkout.session.expired":
		var sessionData struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &sessionData); err != nil {
			log.Printf("Could not decode checkout.session.expired payload: %v", err)
			return c.SendStatus(fiber.StatusOK)
		}

		if err := ctrl.payments.HandleCheckoutExpired(c.Context(), sessionData.ID); err != nil {
			log.Printf("Could not expire checkout %s: %v", sessionData.ID, err)
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

// Stripe redirects land here after checkout.
func (ctrl *PaymentController) HandleSuccess(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Payment received. Your subscription activates as soon as the gateway confirms it.",
	})
}

func (ctrl *PaymentController) HandleCancel(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Checkout cancelled. No charge was made.",
	})
}
