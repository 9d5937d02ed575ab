package identity

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/congo-pay/escrow/internal/apperr"
	"github.com/congo-pay/escrow/internal/auth"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type submitRequest struct {
	FullName   string `json:"full_name"`
	NationalID string `json:"national_id"`
}

type recordResponse struct {
	Holder      string    `json:"holder"`
	FullName    string    `json:"full_name"`
	NationalID  string    `json:"national_id"`
	Verified    bool      `json:"verified"`
	Exists      bool      `json:"exists"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func toResponse(rec Record) recordResponse {
	return recordResponse{
		Holder:      rec.Holder,
		FullName:    rec.FullName,
		NationalID:  rec.NationalID,
		Verified:    rec.Verified,
		Exists:      rec.Exists,
		SubmittedAt: rec.SubmittedAt,
	}
}

// Submit records the caller's identity for review.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("identity.Submit", "body", err.Error())
	}
	rec, err := h.service.Submit(c.UserContext(), auth.Holder(c), req.FullName, req.NationalID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(rec))
}

// Approve verifies the identity named in the path.
func (h *Handler) Approve(c *fiber.Ctx) error {
	rec, err := h.service.Approve(c.UserContext(), auth.Holder(c), pathHolder(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}

// Reject clears verification for the identity named in the path.
func (h *Handler) Reject(c *fiber.Ctx) error {
	rec, err := h.service.Reject(c.UserContext(), auth.Holder(c), pathHolder(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}

// Get returns the record for the holder in the path. Unknown holders answer
// with exists=false rather than 404 so clients can tell "never submitted".
func (h *Handler) Get(c *fiber.Ctx) error {
	holderKey := pathHolder(c)
	rec, found, err := h.service.GetRecord(c.UserContext(), holderKey)
	if err != nil {
		return err
	}
	if !found {
		return c.Status(http.StatusOK).JSON(recordResponse{Holder: holderKey})
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}

// List returns every submitted identity in submission order.
func (h *Handler) List(c *fiber.Ctx) error {
	records, err := h.service.ListRecords(c.UserContext())
	if err != nil {
		return err
	}
	holders := make([]string, 0, len(records))
	items := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		holders = append(holders, rec.Holder)
		items = append(items, toResponse(rec))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"holders":    holders,
		"identities": items,
	})
}

// Admin returns the administrator identity.
func (h *Handler) Admin(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"admin": h.service.Admin()})
}

// pathHolder copies the :holder parameter out of the request buffer.
func pathHolder(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("holder"))
}
