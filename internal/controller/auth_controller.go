package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/internal/service"
	"kotoba_backend/pkg/email"
	"kotoba_backend/pkg/utils/jwt"
)

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"display_name" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthController struct {
	users  repository.UserStore
	trials *service.TrialService
	mail   *email.Service
}

func NewAuthController(users repository.UserStore, trials *service.TrialService, mail *email.Service) *AuthController {
	return &AuthController{users: users, trials: trials, mail: mail}
}

// generateUsername builds a URL-friendly username from the display
// name. The random suffix keeps two users with the same display name
// from colliding on the username unique index.
func generateUsername(displayName string) string {
	base := slug.Make(displayName)
	if base == "" {
		base = "user"
	}
	return base + "-" + uuid.NewString()[:8]
}

func (ctrl *AuthController) Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if _, err := ctrl.users.GetByEmail(c.Context(), input.Email); err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email already exists",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not hash password",
		})
	}

	user := model.User{
		Email:       input.Email,
		Password:    string(hashedPassword),
		Username:    generateUsername(input.DisplayName),
		DisplayName: input.DisplayName,
	}

	if err := ctrl.users.Create(c.Context(), &user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create user",
		})
	}

	// Every account starts on the permanent FREE subscription; trials
	// are opted into separately.
	if _, err := ctrl.trials.CreateFreeSubscription(c.Context(), user.ID); err != nil {
		log.Printf("Could not create free subscription for user %d: %v", user.ID, err)
	}

	if ctrl.mail != nil {
		if err := ctrl.mail.SendWelcomeEmail(user.Email, user.DisplayName); err != nil {
			log.Printf("Could not send welcome email: %v", err)
		}
	}

	token, err := jwt.GenerateToken(user.ID, user.Email, user.DisplayName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate token",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful",
		"token":   token,
		"user":    user.GetPublicProfile(),
	})
}

func (ctrl *AuthController) Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	user, err := ctrl.users.GetByEmail(c.Context(), input.Email)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	token, err := jwt.GenerateToken(user.ID, user.Email, user.DisplayName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate token",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":           user.ID,
			"email":        user.Email,
			"display_name": user.DisplayName,
		},
	})
}

// GetMe returns the authenticated user's account
func (ctrl *AuthController) GetMe(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	user, err := ctrl.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":              user.ID,
			"email":           user.Email,
			"username":        user.Username,
			"display_name":    user.DisplayName,
			"native_language": user.NativeLanguage,
			"target_level":    user.TargetLevel,
			"created_at":      user.CreatedAt,
		},
	})
}
