package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"fieldreport/internal/mirror"
	"fieldreport/internal/repositories"
	"fieldreport/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Messages shown by more than one screen.
const (
	msgInvalidBody = "Invalid request body"
	msgOffline     = "No internet connection"
)

var badRequestErrors = []error{
	services.ErrUsernameRequired,
	services.ErrPasswordRequired,
	services.ErrPasswordTooShort,
	services.ErrPasswordTooLong,
	services.ErrTitleRequired,
	services.ErrTitleTooShort,
	services.ErrDescriptionRequired,
	services.ErrDescriptionTooShort,
	services.ErrInvalidStatus,
	services.ErrInvalidPriority,
	services.ErrIncompleteLocation,
	services.ErrPhotoNotFound,
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return fiber.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrUsernameTaken):
		return fiber.StatusConflict
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, mirror.ErrOffline):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, mirror.ErrUnexpectedStatus):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondError writes the single user-facing message for err. Internal
// failures are logged and reported with fallback.
func respondError(c *fiber.Ctx, log *zap.Logger, err error, fallback string) error {
	status := statusFor(err)
	message := err.Error()
	switch status {
	case fiber.StatusNotFound:
		message = "Incident not found"
	case fiber.StatusServiceUnavailable:
		message = msgOffline
	case fiber.StatusInternalServerError, fiber.StatusBadGateway:
		log.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
		message = fallback
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
	})
}

// parseBody decodes and validates a request body. It writes the error
// response itself and returns false when the handler should stop.
func parseBody(c *fiber.Ctx, validate *validator.Validate, out interface{}) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": msgInvalidBody,
			"error":   err.Error(),
		})
	}

	if err := validate.Struct(out); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"error":   err.Error(),
			})
		}
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}
	return true, nil
}

// incidentID reads the :id route parameter.
func incidentID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func invalidID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": fmt.Sprintf("Invalid incident ID %q", c.Params("id")),
	})
}
