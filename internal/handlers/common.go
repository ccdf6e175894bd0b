package handlers

import (
	"errors"
	"strings"

	"github.com/Hampilk/trebujton-sub000/internal/services"
	"github.com/Hampilk/trebujton-sub000/internal/utils"
	"github.com/authorizerdev/authorizer-go"
	"github.com/gofiber/fiber/v2"
)

// actingUserID extracts the authenticated user's ID from context (set by the
// auth middleware). Returns "" when the request carried no session, e.g. in
// unit tests that mount handlers without the middleware.
func actingUserID(c *fiber.Ctx) string {
	user := c.Locals("user")
	switch u := user.(type) {
	case *authorizer.User:
		return u.ID
	case map[string]interface{}:
		if id, ok := u["id"].(string); ok {
			return id
		}
	}
	return ""
}

// serviceErrorResponse maps gateway errors onto the response envelope:
// validation failures to 400, duplicate slugs to 409, everything else to 500.
// ErrNotFound is handled by the callers because the right shape (404 vs 204)
// depends on the route.
func serviceErrorResponse(c *fiber.Ctx, err error, errorType string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "E_VALIDATION"):
		return utils.ValidationErrorResponse(c, msg)
	case errors.Is(err, services.ErrDuplicateSlug):
		return utils.ErrorResponse(c, msg, fiber.StatusConflict, errorType)
	}
	return utils.ErrorResponse(c, msg, fiber.StatusInternalServerError, errorType)
}
