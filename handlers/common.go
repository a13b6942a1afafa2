package handlers

import (
	"errors"

	"meme-clicker-backend/services"

	"github.com/gofiber/fiber/v2"
)

// fail maps service sentinel errors to HTTP statuses and renders the
// shared error body.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrBadRequest):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
