package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/kilopost/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, 401, "unauthorized", msg)
}

// errDomain maps linear-referencing sentinel errors onto HTTP responses.
// Malformed input is a 400; a well-formed query that matched nothing is
// a 404 with a code that keeps the two distinguishable for clients.
func errDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidGeometry),
		errors.Is(err, domain.ErrDegenerateLine),
		errors.Is(err, domain.ErrInvalidRadius),
		errors.Is(err, domain.ErrInvalidInterval):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrRoadNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrNoVertexInRadius):
		return newError(c, 404, "no_match", err.Error())
	case errors.Is(err, domain.ErrChainageOutOfRange),
		errors.Is(err, domain.ErrSectionOutOfRange):
		return newError(c, 404, "out_of_range", err.Error())
	default:
		return errInternal(c, err.Error())
	}
}
