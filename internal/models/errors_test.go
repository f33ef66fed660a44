package models

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Post", 7), fiber.StatusNotFound},
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"forbidden", NewForbiddenError("no"), fiber.StatusForbidden},
		{"unauthorized", NewUnauthorizedError("login"), fiber.StatusUnauthorized},
		{"conflict", NewConflictError("taken"), fiber.StatusConflict},
		{"wrapped forbidden", fmt.Errorf("update: %w", NewForbiddenError("no")), fiber.StatusForbidden},
		{"fiber error", fiber.NewError(fiber.StatusMethodNotAllowed, "nope"), fiber.StatusMethodNotAllowed},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NewNotFoundError("User", "ghost")
	assert.Equal(t, "User ghost not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsForbidden(err))
}

func TestRespondWithError_HidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("dsn=secret")))
	})
	app.Get("/fields", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusBadRequest, NewFieldValidationError(map[string]string{"title": "required"}))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/internal", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "secret")

	resp, err = app.Test(httptest.NewRequest("GET", "/fields", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), `"title":"required"`)
}
