package handler

import (
	"github.com/gofiber/fiber/v2"

	"mediarelay/internal/http/middleware"
	"mediarelay/internal/model"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response.
//
// Parameters:
// - status: HTTP status code to return
// - kind: machine-readable error kind (taxonomy kinds or generic codes like "NOT_FOUND")
// - message: human-readable safe message
// - details: optional payload (e.g. the raw downstream error body)
func writeError(c *fiber.Ctx, status int, kind, message string, details any) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error:     message,
		Kind:      kind,
		Details:   details,
	})
}

// writeRelayError translates a pipeline failure into the client-facing
// response, propagating the downstream's own status when one exists.
func writeRelayError(c *fiber.Ctx, err error) error {
	relErr, ok := model.AsRelayError(err)
	if !ok {
		return writeError(c, fiber.StatusInternalServerError, string(model.KindInternal), "internal server error", nil)
	}
	return writeError(c, statusFor(relErr), string(relErr.Kind), relErr.Message, relErr.Details)
}

func statusFor(e *model.RelayError) int {
	switch e.Kind {
	case model.KindMissingFile, model.KindUnsupportedType, model.KindTooLarge:
		return fiber.StatusBadRequest
	case model.KindDownstreamUnreachable:
		return fiber.StatusBadGateway
	case model.KindDownstreamTimeout:
		return fiber.StatusGatewayTimeout
	case model.KindDownstreamError:
		if e.Status > 0 {
			return e.Status
		}
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes
// responses for errors no route handler dealt with (unknown routes,
// malformed multipart bodies, oversized requests).
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request", nil)
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found", nil)
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		case fiber.StatusRequestEntityTooLarge:
			// The server-level body limit fired before the handler could
			// report the configured maximum.
			return writeError(c, fiber.StatusBadRequest, string(model.KindTooLarge), "upload exceeds the configured size limit", nil)
		default:
			return writeError(c, status, string(model.KindInternal), "internal server error", nil)
		}
	}
}
