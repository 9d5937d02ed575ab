package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInvalidAmount is returned for postings with a non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound is returned for account codes that were never ensured.
	ErrAccountNotFound = errors.New("account not found")
)

const (
	// StatusCompleted marks a settled posting.
	StatusCompleted = "completed"
	// EscrowAccountCode is the suspense account holding campaign funds.
	// Contributions are credited to it and payouts drawn from it, so its
	// balance is what is currently held in escrow.
	EscrowAccountCode = "escrow:campaigns"
	// KindPayout tags postings that release escrowed funds to a creator.
	KindPayout = "payout"
	// KindDeposit tags postings that move a contribution into escrow.
	KindDeposit = "deposit"
)

// HolderAccountCode is the ledger account credited with a holder's payouts.
func HolderAccountCode(holder string) string {
	return "holder:" + holder
}

// ContributorAccountCode is the ledger account debited with a holder's
// contributions. Its balance is the negative of what the holder paid in.
func ContributorAccountCode(holder string) string {
	return "contributor:" + holder
}

// DepositResult captures the outcome of a deposit posting.
type DepositResult struct {
	TransactionID string
	Status        string
}

// PayoutResult captures the outcome of a payout posting.
type PayoutResult struct {
	TransactionID string
	PayeeBalance  int64
	Status        string
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Payout(ctx context.Context, payeeCode, clientTxID string, amount int64) (PayoutResult, error)
	// Deposit debits the payer and credits escrow. The payer account is
	// created on first use. Replays of clientTxID return the first result
	// with ErrDuplicateTransaction.
	Deposit(ctx context.Context, payerCode, clientTxID string, amount int64) (DepositResult, error)
}
