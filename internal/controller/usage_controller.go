package controller

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/internal/service"
	"kotoba_backend/pkg/plans"
	"kotoba_backend/pkg/utils/jwt"
	"kotoba_backend/pkg/utils/storage"
	"kotoba_backend/pkg/utils/validation"
)

// transcription is billed in 15 second slices
const transcriptionSliceSeconds = 15

type ChatUsageInput struct {
	Message string `json:"message" validate:"required"`
}

// UsageController meters the AI-facing actions. The model integrations
// themselves live elsewhere; these endpoints store inputs and charge
// credits atomically.
type UsageController struct {
	credits *service.CreditService
	subs    repository.SubscriptionStore
	storage *storage.Client
}

func NewUsageController(credits *service.CreditService, subs repository.SubscriptionStore, store *storage.Client) *UsageController {
	return &UsageController{credits: credits, subs: subs, storage: store}
}

// Chat charges one chat turn.
func (ctrl *UsageController) Chat(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(ChatUsageInput)
	if err := c.BodyParser(input); err != nil || strings.TrimSpace(input.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	remaining, err := ctrl.credits.DeductCredits(c.Context(), claims.UserID, model.UsageChat, 1, "tutor chat turn")
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"credits_spent":     1,
		"credits_remaining": remaining,
	})
}

// Transcribe accepts a recorded clip, stores it and charges per 15
// second slice. Clip length is capped by the caller's tier.
func (ctrl *UsageController) Transcribe(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	file, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Audio file is required",
		})
	}
	if err := validation.ValidateAudio(file); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	durationSeconds, err := strconv.Atoi(c.FormValue("duration_seconds"))
	if err != nil || durationSeconds < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "duration_seconds is required",
		})
	}

	sub, err := ctrl.subs.GetByUserID(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}
	maxSeconds := plans.GetPlanLimits(sub.Tier).MaxClipSeconds
	if durationSeconds > maxSeconds {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Clips on the %s tier are limited to %d seconds", sub.Tier, maxSeconds),
		})
	}

	units := (durationSeconds + transcriptionSliceSeconds - 1) / transcriptionSliceSeconds

	clipURL, err := ctrl.storage.UploadAudioClip(c.Context(), file, claims.DisplayName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not store audio clip",
		})
	}

	remaining, err := ctrl.credits.DeductCredits(c.Context(), claims.UserID, model.UsageTranscription, units,
		fmt.Sprintf("transcription of %ds clip", durationSeconds))
	if err != nil {
		// The clip is orphaned if the charge fails; drop it.
		if delErr := ctrl.storage.Delete(c.Context(), clipURL); delErr != nil {
			log.Printf("Could not clean up clip after failed charge: %v", delErr)
		}
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"clip_url":          clipURL,
		"units":             units,
		"credits_spent":     units * plans.CreditCosts[model.UsageTranscription],
		"credits_remaining": remaining,
	})
}
