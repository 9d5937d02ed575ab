package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow/internal/campaign"
)

// RegisterCampaignRoutes wires the campaign ledger.
func RegisterCampaignRoutes(r fiber.Router, h *campaign.Handler) {
	r.Post("/campaigns", h.Create)
	r.Get("/campaigns", h.List)
	r.Get("/campaigns/:id", h.Get)
	r.Post("/campaigns/:id/contributions", h.Contribute)
	r.Post("/campaigns/:id/withdraw", h.Withdraw)
}
