package middleware

import (
	"fmt"

	"github.com/Hampilk/trebujton-sub000/internal/services"
	"github.com/Hampilk/trebujton-sub000/internal/types"
	"github.com/gofiber/fiber/v2"
)

// AuthAdmin validates that the request carries an admin session. All layout
// and theme mutations sit behind this gate; denial surfaces as the generic
// 403 envelope.
func AuthAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, []string{"admin"}, "pages.authorization.admin")
	}
}

// AuthOptional exposes the session user on requests that carry a valid
// admin cookie, and lets everything else through anonymously. Public reads
// use it so an admin session widens the result set without gating the route.
func AuthOptional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := c.Cookies("cookie_session")
		if session == "" {
			return c.Next()
		}
		if err := services.EnsureAuthorizer(c.Protocol(), c.Hostname()); err != nil {
			return c.Next()
		}
		data, err := services.ValidateSession(session, []string{"admin"})
		if err != nil {
			return c.Next()
		}
		if user, ok := data["user"]; ok {
			c.Locals("user", user)
		}
		return c.Next()
	}
}

// authorize performs the authorization check
func authorize(c *fiber.Ctx, roles []string, errorType string) error {
	if err := services.EnsureAuthorizer(c.Protocol(), c.Hostname()); err != nil {
		return &types.CustomError{
			Code:    fiber.StatusServiceUnavailable,
			Message: fmt.Sprintf("Authorizer unavailable: %v", err),
			Type:    errorType,
		}
	}

	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    errorType,
		}
	}

	data, err := services.ValidateSession(session, roles)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	if user, ok := data["user"]; ok {
		c.Locals("user", user)
	}

	return c.Next()
}
