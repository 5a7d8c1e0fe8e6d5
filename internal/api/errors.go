package api

import (
	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"github.com/gofiber/fiber/v2"
)

const (
	ErrBadRequest = errors.ErrorCode("api_bad_request")
	ErrDisabled   = errors.ErrorCode("api_feature_disabled")
)

// statusFor maps error codes onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.HasCode(err, ErrBadRequest), errors.HasCode(err, controller.ErrInvalidWatts):
		return fiber.StatusBadRequest
	case errors.HasCode(err, controller.ErrUnknownProfile), errors.HasCode(err, ErrDisabled):
		return fiber.StatusNotFound
	case errors.HasCode(err, profile.ErrInvalidCatalog), errors.HasCode(err, profile.ErrReadCatalog):
		return fiber.StatusUnprocessableEntity
	case errors.HasCode(err, controller.ErrNotRunning):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error()}
	if code := errors.CodeOf(err); code != "" {
		body["code"] = code
	}
	return c.Status(statusFor(err)).JSON(body)
}
