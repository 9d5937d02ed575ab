package payout

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow/internal/apperr"
	"github.com/congo-pay/escrow/internal/holder"
	"github.com/congo-pay/escrow/internal/ledger"
	"github.com/congo-pay/escrow/internal/money"
)

// Handler exposes payout balances over HTTP.
type Handler struct {
	service  *Service
	decimals int
}

// NewHandler constructs a payout handler rendering amounts with decimals fraction digits.
func NewHandler(service *Service, decimals int) *Handler {
	return &Handler{service: service, decimals: decimals}
}

// Balance returns the funds released to the holder in the path. Holders that
// never received a payout report zero.
func (h *Handler) Balance(c *fiber.Ctx) error {
	key, err := holder.Normalize(c.Params("holder"))
	if err != nil {
		return apperr.Validation("payout.Balance", "holder", err.Error())
	}
	amount, err := h.service.Balance(c.UserContext(), key)
	if err != nil && !errors.Is(err, ledger.ErrAccountNotFound) {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"holder":    key,
		"balance":   money.Format(amount, h.decimals),
		"units":     amount,
		"timestamp": time.Now().UTC(),
	})
}
