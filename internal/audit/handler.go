package audit

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow/internal/apperr"
	"github.com/congo-pay/escrow/internal/holder"
)

// Handler serves the event feed.
type Handler struct {
	reader Reader
}

// NewHandler constructs the event feed handler.
func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// List pages events after the "after" sequence number, optionally narrowed to
// a holder or a campaign. Clients poll with the last seq they saw.
func (h *Handler) List(c *fiber.Ctx) error {
	const op = "audit.List"
	var filter Filter
	var err error

	if filter.AfterSeq, err = queryInt(c, "after"); err != nil {
		return apperr.Validation(op, "after", "after must be a non-negative integer")
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return apperr.Validation(op, "limit", "limit must be a non-negative integer")
	}
	filter.Limit = int(min(limit, int64(MaxLimit)))
	if filter.CampaignID, err = queryInt(c, "campaign_id"); err != nil {
		return apperr.Validation(op, "campaign_id", "campaign_id must be a non-negative integer")
	}
	if raw := c.Query("holder"); raw != "" {
		if filter.Holder, err = holder.Normalize(raw); err != nil {
			return apperr.Validation(op, "holder", err.Error())
		}
	}

	events, err := h.reader.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if events == nil {
		events = []Event{}
	}
	next := filter.AfterSeq
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"events":   events,
		"next_seq": next,
	})
}

func queryInt(c *fiber.Ctx, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
