package warden

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AccountContextKey is the fiber locals key the auth middleware stores the
// resolved account under.
const AccountContextKey = "warden:account"

// AccountFromContext returns the account the auth middleware attached to the
// request, or nil when the request is unauthenticated.
func AccountFromContext(c *fiber.Ctx) *Account {
	account, _ := c.Locals(AccountContextKey).(*Account)
	return account
}

// RequireAuth extracts a bearer access token, validates it, loads the
// subject, and attaches it to the request context. Missing or invalid
// credentials short-circuit with 401.
func RequireAuth(auth *AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			return ErrInvalidToken
		}

		account, err := auth.AccountFromAccessToken(c.UserContext(), raw)
		if err != nil {
			return err
		}

		c.Locals(AccountContextKey, account)
		return c.Next()
	}
}

// RequirePermission gates a route behind a named permission. It must run
// after RequireAuth.
func RequirePermission(gate *Gate, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := AccountFromContext(c)
		if account == nil {
			return ErrInvalidToken
		}
		if err := gate.Require(c.UserContext(), account, permission); err != nil {
			return err
		}
		return c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
