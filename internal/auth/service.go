package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow/internal/holder"
)

// LocalsHolderKey is the fiber locals key carrying the authenticated holder.
const LocalsHolderKey = "holder"

// Verifier turns a bearer token into the holder identity it was issued for.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier for tokens signed with secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Holder verifies token and returns the canonical holder in its subject.
func (v *Verifier) Holder(token string) (string, error) {
	claims, err := ParseAndVerifyHS256(strings.TrimSpace(token), v.secret)
	if err != nil {
		return "", err
	}
	canonical, err := holder.Normalize(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return canonical, nil
}

// Holder returns the authenticated holder stored on the request, or "".
func Holder(c *fiber.Ctx) string {
	h, _ := c.Locals(LocalsHolderKey).(string)
	return h
}
