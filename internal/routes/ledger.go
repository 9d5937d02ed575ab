package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/payout"
)

// RegisterLedgerRoutes wires the event feed and payout balances.
func RegisterLedgerRoutes(r fiber.Router, events *audit.Handler, payouts *payout.Handler) {
	r.Get("/events", events.List)
	r.Get("/holders/:holder/balance", payouts.Balance)
}
