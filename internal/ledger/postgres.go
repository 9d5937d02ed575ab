package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger and makes sure the
// escrow suspense account exists.
func NewPostgresLedger(ctx context.Context, db *pgxpool.Pool) (*PostgresLedger, error) {
	l := &PostgresLedger{db: db}
	if err := l.EnsureAccount(ctx, EscrowAccountCode); err != nil {
		return nil, err
	}
	return l, nil
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	var accountID uuid.UUID
	if err := l.db.QueryRow(ctx, `SELECT id FROM accounts WHERE code = $1`, code).Scan(&accountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	var balance int64
	if err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`, accountID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Payout credits the payee and debits the escrow suspense account in one
// transaction. Replays of clientTxID return the first result with
// ErrDuplicateTransaction.
func (l *PostgresLedger) Payout(ctx context.Context, payeeCode, clientTxID string, amount int64) (PayoutResult, error) {
	if amount <= 0 {
		return PayoutResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PayoutResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	payeeAccountID, err := accountIDForCode(ctx, tx, payeeCode)
	if err != nil {
		return PayoutResult{}, err
	}
	escrowAccountID, err := accountIDForCode(ctx, tx, EscrowAccountCode)
	if err != nil {
		return PayoutResult{}, err
	}

	const existingQuery = `SELECT id, status FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var existingTxID uuid.UUID
	var existingStatus string
	if err := tx.QueryRow(ctx, existingQuery, clientTxID, KindPayout).Scan(&existingTxID, &existingStatus); err == nil {
		payeeBal, balErr := balanceForAccount(ctx, tx, payeeAccountID)
		if balErr != nil {
			return PayoutResult{}, balErr
		}
		return PayoutResult{TransactionID: existingTxID.String(), PayeeBalance: payeeBal, Status: existingStatus}, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return PayoutResult{}, err
	}

	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_tx_id, kind, status) VALUES ($1, $2, $3, $4)`, txID, clientTxID, KindPayout, StatusCompleted); err != nil {
		return PayoutResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, payeeAccountID, amount); err != nil {
		return PayoutResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, escrowAccountID, -amount); err != nil {
		return PayoutResult{}, err
	}

	payeeBalance, err := balanceForAccount(ctx, tx, payeeAccountID)
	if err != nil {
		return PayoutResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PayoutResult{}, err
	}

	return PayoutResult{TransactionID: txID.String(), PayeeBalance: payeeBalance, Status: StatusCompleted}, nil
}

// Deposit moves amount from the payer into escrow in its own transaction.
func (l *PostgresLedger) Deposit(ctx context.Context, payerCode, clientTxID string, amount int64) (DepositResult, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return DepositResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	res, err := DepositTx(ctx, tx, payerCode, clientTxID, amount)
	if err != nil {
		return res, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DepositResult{}, err
	}
	return res, nil
}

// DepositTx posts a deposit within tx, so callers can commit it together
// with the state change that caused it. Account rows are not locked; entries
// are append-only.
func DepositTx(ctx context.Context, tx pgx.Tx, payerCode, clientTxID string, amount int64) (DepositResult, error) {
	if amount <= 0 {
		return DepositResult{}, ErrInvalidAmount
	}

	const existingQuery = `SELECT id, status FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var existingTxID uuid.UUID
	var existingStatus string
	if err := tx.QueryRow(ctx, existingQuery, clientTxID, KindDeposit).Scan(&existingTxID, &existingStatus); err == nil {
		return DepositResult{TransactionID: existingTxID.String(), Status: existingStatus}, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return DepositResult{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), payerCode); err != nil {
		return DepositResult{}, err
	}
	var payerAccountID, escrowAccountID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE code = $1`, payerCode).Scan(&payerAccountID); err != nil {
		return DepositResult{}, fmt.Errorf("account %s: %w", payerCode, err)
	}
	if err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE code = $1`, EscrowAccountCode).Scan(&escrowAccountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DepositResult{}, fmt.Errorf("account %s: %w", EscrowAccountCode, ErrAccountNotFound)
		}
		return DepositResult{}, err
	}

	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_tx_id, kind, status) VALUES ($1, $2, $3, $4)`, txID, clientTxID, KindDeposit, StatusCompleted); err != nil {
		return DepositResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, payerAccountID, -amount); err != nil {
		return DepositResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, escrowAccountID, amount); err != nil {
		return DepositResult{}, err
	}
	return DepositResult{TransactionID: txID.String(), Status: StatusCompleted}, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s: %w", code, ErrAccountNotFound)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}
