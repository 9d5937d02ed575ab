package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow/internal/identity"
)

// RegisterIdentityRoutes wires the identity registry. Submissions go through
// the rate limiter; reviews are restricted to the administrator by the service.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, submitLimit fiber.Handler) {
	r.Get("/admin", h.Admin)
	r.Post("/identities", submitLimit, h.Submit)
	r.Get("/identities", h.List)
	r.Get("/identities/:holder", h.Get)
	r.Post("/identities/:holder/approve", h.Approve)
	r.Post("/identities/:holder/reject", h.Reject)
}
