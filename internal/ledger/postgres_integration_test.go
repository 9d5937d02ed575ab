//go:build integration

package ledger_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/congo-pay/escrow/internal/infra"
	"github.com/congo-pay/escrow/internal/ledger"
	"github.com/congo-pay/escrow/internal/logging"
)

type PostgresLedgerSuite struct {
	suite.Suite
	db     *pgxpool.Pool
	ledger *ledger.PostgresLedger
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("ESCROW_TEST_DATABASE_URL") == "" {
		t.Skip("ESCROW_TEST_DATABASE_URL not set")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	ctx := context.Background()
	db, err := infra.NewPostgresPool(ctx, os.Getenv("ESCROW_TEST_DATABASE_URL"))
	s.Require().NoError(err)
	s.Require().NoError(infra.Migrate(ctx, db, logging.Discard()))
	s.db = db
	s.ledger, err = ledger.NewPostgresLedger(ctx, db)
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) TearDownSuite() {
	s.db.Close()
}

func (s *PostgresLedgerSuite) TestDepositThenPayoutNetsEscrow() {
	ctx := context.Background()
	payer := ledger.ContributorAccountCode("C-" + uuid.NewString())
	payee := ledger.HolderAccountCode("H-" + uuid.NewString())
	ref := uuid.NewString()

	before, err := s.ledger.Balance(ctx, ledger.EscrowAccountCode)
	s.Require().NoError(err)

	first, err := s.ledger.Deposit(ctx, payer, ref, 600)
	s.Require().NoError(err)
	again, err := s.ledger.Deposit(ctx, payer, ref, 600)
	s.ErrorIs(err, ledger.ErrDuplicateTransaction)
	s.Equal(first.TransactionID, again.TransactionID)
	_, err = s.ledger.Deposit(ctx, payer, uuid.NewString(), 500)
	s.Require().NoError(err)

	escrow, err := s.ledger.Balance(ctx, ledger.EscrowAccountCode)
	s.Require().NoError(err)
	s.Equal(before+1_100, escrow)
	paid, err := s.ledger.Balance(ctx, payer)
	s.Require().NoError(err)
	s.Equal(int64(-1_100), paid)

	s.Require().NoError(s.ledger.EnsureAccount(ctx, payee))
	res, err := s.ledger.Payout(ctx, payee, "campaign:"+ref+":withdraw", 1_100)
	s.Require().NoError(err)
	s.Equal(int64(1_100), res.PayeeBalance)

	escrow, err = s.ledger.Balance(ctx, ledger.EscrowAccountCode)
	s.Require().NoError(err)
	s.Equal(before, escrow)
}

func (s *PostgresLedgerSuite) TestDepositTxRollsBackWithCaller() {
	ctx := context.Background()
	payer := ledger.ContributorAccountCode("C-" + uuid.NewString())

	tx, err := s.db.Begin(ctx)
	s.Require().NoError(err)
	_, err = ledger.DepositTx(ctx, tx, payer, uuid.NewString(), 250)
	s.Require().NoError(err)
	s.Require().NoError(tx.Rollback(ctx))

	_, err = s.ledger.Balance(ctx, payer)
	s.ErrorIs(err, ledger.ErrAccountNotFound)
}
