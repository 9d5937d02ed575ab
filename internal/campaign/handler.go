package campaign

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow/internal/apperr"
	"github.com/congo-pay/escrow/internal/auth"
	"github.com/congo-pay/escrow/internal/money"
)

// Handler exposes campaign endpoints. Amounts travel as decimal strings and
// are converted to smallest units with the configured number of decimals.
type Handler struct {
	service  *Service
	decimals int
}

// NewHandler constructs a campaign HTTP handler.
func NewHandler(service *Service, decimals int) *Handler {
	return &Handler{service: service, decimals: decimals}
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	GoalAmount  string `json:"goal_amount"`
}

type contributeRequest struct {
	Amount string `json:"amount"`
}

type campaignResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Creator     string     `json:"creator"`
	GoalAmount  string     `json:"goal_amount"`
	FundsRaised string     `json:"funds_raised"`
	GoalUnits   int64      `json:"goal_units"`
	RaisedUnits int64      `json:"raised_units"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`
}

func (h *Handler) toResponse(c Campaign) campaignResponse {
	resp := campaignResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Creator:     c.Creator,
		GoalAmount:  money.Format(c.GoalAmount, h.decimals),
		FundsRaised: money.Format(c.FundsRaised, h.decimals),
		GoalUnits:   c.GoalAmount,
		RaisedUnits: c.FundsRaised,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
	}
	if !c.WithdrawnAt.IsZero() {
		t := c.WithdrawnAt
		resp.WithdrawnAt = &t
	}
	return resp
}

// Create opens a campaign owned by the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	const op = "campaign.Create"
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(op, "body", err.Error())
	}
	goal, err := h.parseAmount(op, "goal_amount", req.GoalAmount)
	if err != nil {
		return err
	}
	campaign, err := h.service.Create(c.UserContext(), auth.Holder(c), req.Title, req.Description, goal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(h.toResponse(campaign))
}

// Contribute adds the caller's contribution to the campaign in the path.
func (h *Handler) Contribute(c *fiber.Ctx) error {
	const op = "campaign.Contribute"
	id, err := campaignID(op, c)
	if err != nil {
		return err
	}
	var req contributeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(op, "body", err.Error())
	}
	amount, err := h.parseAmount(op, "amount", req.Amount)
	if err != nil {
		// An unknown campaign is reported before a bad amount.
		if _, getErr := h.service.Get(c.UserContext(), id); getErr != nil {
			return getErr
		}
		return err
	}
	campaign, err := h.service.Contribute(c.UserContext(), id, auth.Holder(c), amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"campaign":  h.toResponse(campaign),
		"new_total": money.Format(campaign.FundsRaised, h.decimals),
	})
}

// Withdraw pays the escrowed total out to the caller, who must be the creator.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	id, err := campaignID("campaign.Withdraw", c)
	if err != nil {
		return err
	}
	w, err := h.service.Withdraw(c.UserContext(), id, auth.Holder(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"campaign":       h.toResponse(w.Campaign),
		"amount":         money.Format(w.Amount, h.decimals),
		"units":          w.Amount,
		"transaction_id": w.TransactionID,
	})
}

// Get returns the campaign in the path.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := campaignID("campaign.Get", c)
	if err != nil {
		return err
	}
	campaign, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(h.toResponse(campaign))
}

// List returns every campaign ordered by id.
func (h *Handler) List(c *fiber.Ctx) error {
	campaigns, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]campaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		items = append(items, h.toResponse(campaign))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"campaigns": items})
}

func (h *Handler) parseAmount(op, field, raw string) (int64, error) {
	units, err := money.Parse(raw, h.decimals)
	if err != nil {
		return 0, apperr.Validation(op, field, err.Error())
	}
	return units, nil
}

func campaignID(op string, c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(op, "id", "campaign id must be a positive integer")
	}
	return id, nil
}
