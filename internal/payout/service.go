package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/congo-pay/escrow/internal/ledger"
)

// ErrDeclined is returned when the connector refuses the payout.
var ErrDeclined = errors.New("payout declined")

// Service releases escrowed funds: the connector authorizes the transfer and
// the ledger records it against the escrow suspense account.
type Service struct {
	ledger    ledger.Ledger
	connector Connector
}

// NewService prepares a payout service, defaulting to StaticConnector.
func NewService(ledgerBackend ledger.Ledger, connector Connector) (*Service, error) {
	if ledgerBackend == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if connector == nil {
		connector = StaticConnector{}
	}
	return &Service{ledger: ledgerBackend, connector: connector}, nil
}

// Request describes a release of campaign funds. Reference must be stable
// for a given campaign so a retried release is recognized by the ledger.
type Request struct {
	CampaignID int64
	Payee      string
	Amount     int64
	Reference  string
}

// Receipt represents the outcome of a release.
type Receipt struct {
	TransactionID      string
	ConnectorReference string
	PayeeBalance       int64
	Replayed           bool
	CompletedAt        time.Time
}

// Release moves req.Amount to the payee. A replay of an already posted
// reference succeeds with Replayed set and moves nothing.
func (s *Service) Release(ctx context.Context, req Request) (Receipt, error) {
	if req.Amount <= 0 {
		return Receipt{}, fmt.Errorf("amount must be positive")
	}
	if req.Reference == "" {
		return Receipt{}, fmt.Errorf("payout reference is required")
	}

	payeeCode := ledger.HolderAccountCode(req.Payee)
	if err := s.ledger.EnsureAccount(ctx, payeeCode); err != nil {
		return Receipt{}, err
	}

	decision, err := s.connector.AuthorizePayout(ctx, Authorization{
		Payee:     req.Payee,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		return Receipt{}, err
	}
	if decision.Status != "approved" {
		return Receipt{}, fmt.Errorf("%w: %s", ErrDeclined, decision.Status)
	}

	res, err := s.ledger.Payout(ctx, payeeCode, req.Reference, req.Amount)
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return Receipt{}, err
	}

	return Receipt{
		TransactionID:      res.TransactionID,
		ConnectorReference: decision.Reference,
		PayeeBalance:       res.PayeeBalance,
		Replayed:           errors.Is(err, ledger.ErrDuplicateTransaction),
		CompletedAt:        time.Now().UTC(),
	}, nil
}

// Balance returns the total paid out to h.
func (s *Service) Balance(ctx context.Context, h string) (int64, error) {
	return s.ledger.Balance(ctx, ledger.HolderAccountCode(h))
}
