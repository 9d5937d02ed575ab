package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow/internal/apperr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorHandler renders errors as {"error": {...}}. Domain errors keep their
// message; anything else is logged and reported as an internal error.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			status = apperr.HTTPStatus(err)
			body   = errorBody{Code: apperr.Code(err), Message: err.Error(), Field: apperr.FieldOf(err)}
		)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			body = errorBody{Code: fiberCode(fe.Code), Message: fe.Message}
		} else if status == http.StatusInternalServerError {
			requestID := RequestIDFrom(c)
			logger.Error("unhandled error",
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.Any("error", err),
			)
			body.Message = "internal error"
		}

		return c.Status(status).JSON(fiber.Map{"error": body})
	}
}

func fiberCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= http.StatusInternalServerError {
			return "internal_error"
		}
		return "request_error"
	}
}
