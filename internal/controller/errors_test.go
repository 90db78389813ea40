package controller

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"kotoba_backend/internal/repository"
	"kotoba_backend/internal/service"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation maps to 400", &service.ValidationError{Message: "bad input"}, fiber.StatusBadRequest},
		{"insufficient credits maps to 400", repository.ErrInsufficientCredits, fiber.StatusBadRequest},
		{"not found maps to 404", repository.ErrNotFound, fiber.StatusNotFound},
		{"duplicate maps to 409", repository.ErrDuplicate, fiber.StatusConflict},
		{"wrapped sentinel still maps", errors.Join(errors.New("ctx"), repository.ErrNotFound), fiber.StatusNotFound},
		{"unknown maps to 500", errors.New("database on fire"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/boom", func(c *fiber.Ctx) error {
				return respondError(c, tc.err)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
			assert.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
