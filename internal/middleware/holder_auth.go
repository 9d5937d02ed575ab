package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/congo-pay/escrow/internal/auth"
	"github.com/congo-pay/escrow/internal/holder"
)

// HolderHeader carries the caller identity when header trust is enabled.
const HolderHeader = "X-Holder"

// HolderAuth resolves the calling holder from a bearer token and stores it in
// the request locals. With a nil verifier and trustHeader set, the X-Holder
// header is accepted instead; that mode is meant for local development only.
func HolderAuth(verifier *auth.Verifier, trustHeader bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if verifier != nil && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			h, err := verifier.Holder(authz[len("Bearer "):])
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid token")
			}
			c.Locals(auth.LocalsHolderKey, h)
			return c.Next()
		}

		if trustHeader {
			if raw := c.Get(HolderHeader); raw != "" {
				h, err := holder.Normalize(utils.CopyString(raw))
				if err != nil {
					return fiber.NewError(http.StatusUnauthorized, "invalid holder header")
				}
				c.Locals(auth.LocalsHolderKey, h)
				return c.Next()
			}
		}

		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
}
