package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"kotoba_backend/internal/repository"
	"kotoba_backend/pkg/utils/image"
	"kotoba_backend/pkg/utils/jwt"
	"kotoba_backend/pkg/utils/storage"
	"kotoba_backend/pkg/utils/validation"
)

type ProfileUpdateInput struct {
	DisplayName    string `json:"display_name"`
	NativeLanguage string `json:"native_language"`
	TargetLevel    string `json:"target_level"`
}

type SettingsController struct {
	users   repository.UserStore
	storage *storage.Client
}

func NewSettingsController(users repository.UserStore, store *storage.Client) *SettingsController {
	return &SettingsController{users: users, storage: store}
}

func (ctrl *SettingsController) GetProfile(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	user, err := ctrl.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(user.GetPublicProfile())
}

func (ctrl *SettingsController) UpdateProfile(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(ProfileUpdateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	user, err := ctrl.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	if input.DisplayName != "" {
		user.DisplayName = input.DisplayName
	}
	if input.NativeLanguage != "" {
		user.NativeLanguage = input.NativeLanguage
	}
	if input.TargetLevel != "" {
		user.TargetLevel = input.TargetLevel
	}

	if err := ctrl.users.Save(c.Context(), user); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated",
		"user":    user.GetPublicProfile(),
	})
}

// UploadAvatar normalizes the image to webp, stores it and replaces the
// previous avatar.
func (ctrl *SettingsController) UploadAvatar(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Avatar file is required",
		})
	}
	if err := validation.ValidateImage(file); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	user, err := ctrl.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	processed, contentType, err := image.ProcessAvatar(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not process image",
		})
	}

	avatarURL, err := ctrl.storage.UploadAvatar(c.Context(), processed, contentType, user.Username, "avatar.webp")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not upload avatar",
		})
	}

	oldAvatar := user.Avatar
	user.Avatar = avatarURL
	if err := ctrl.users.Save(c.Context(), user); err != nil {
		return respondError(c, err)
	}

	if oldAvatar != "" {
		if err := ctrl.storage.Delete(c.Context(), oldAvatar); err != nil {
			log.Printf("Could not delete previous avatar: %v", err)
		}
	}

	return c.JSON(fiber.Map{
		"message": "Avatar updated",
		"avatar":  avatarURL,
	})
}
