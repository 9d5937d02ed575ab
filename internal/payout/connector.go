package payout

import (
	"context"

	"github.com/google/uuid"
)

// Connector represents the rail that moves released funds to the creator
// (bank, mobile money, chain). It is called before the ledger posting so a
// declined transfer leaves no trace in the books.
type Connector interface {
	AuthorizePayout(ctx context.Context, input Authorization) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the response from the connector.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// Authorization carries what the rail needs to push funds to a payee.
type Authorization struct {
	Payee     string
	Amount    int64
	Reference string
}

// StaticConnector simulates a rail that approves every payout.
type StaticConnector struct{}

// AuthorizePayout approves the payout with a synthetic reference.
func (StaticConnector) AuthorizePayout(_ context.Context, _ Authorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}
