//go:build integration

package audit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/infra"
	"github.com/congo-pay/escrow/internal/logging"
)

type PostgresLogSuite struct {
	suite.Suite
	db  *pgxpool.Pool
	log *audit.PostgresLog
}

func TestPostgresLogSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("ESCROW_TEST_DATABASE_URL") == "" {
		t.Skip("ESCROW_TEST_DATABASE_URL not set")
	}
	suite.Run(t, new(PostgresLogSuite))
}

func (s *PostgresLogSuite) SetupSuite() {
	ctx := context.Background()
	db, err := infra.NewPostgresPool(ctx, os.Getenv("ESCROW_TEST_DATABASE_URL"))
	s.Require().NoError(err)
	s.Require().NoError(infra.Migrate(ctx, db, logging.Discard()))
	s.db = db
	s.log = audit.NewPostgresLog(db)
}

func (s *PostgresLogSuite) TearDownSuite() {
	s.db.Close()
}

// A reader that has seen seq N must never later find a committed event below N.
func (s *PostgresLogSuite) TestSequenceFollowsCommitOrder() {
	ctx := context.Background()
	campaignID := time.Now().UnixNano()

	first, err := s.db.Begin(ctx)
	s.Require().NoError(err)
	defer first.Rollback(ctx) // nolint:errcheck
	a, err := audit.AppendTx(ctx, first, audit.Event{Kind: audit.KindContributionMade, Actor: "C1", CampaignID: campaignID, Amount: 1})
	s.Require().NoError(err)

	type result struct {
		ev  audit.Event
		err error
	}
	done := make(chan result, 1)
	go func() {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer tx.Rollback(ctx) // nolint:errcheck
		ev, err := audit.AppendTx(ctx, tx, audit.Event{Kind: audit.KindContributionMade, Actor: "C2", CampaignID: campaignID, Amount: 2})
		if err == nil {
			err = tx.Commit(ctx)
		}
		done <- result{ev: ev, err: err}
	}()

	select {
	case r := <-done:
		s.FailNow("second append finished while the first was uncommitted", "%+v", r)
	case <-time.After(300 * time.Millisecond):
	}

	visible, err := s.log.List(ctx, audit.Filter{CampaignID: campaignID})
	s.Require().NoError(err)
	s.Empty(visible)

	s.Require().NoError(first.Commit(ctx))
	var second result
	select {
	case second = <-done:
	case <-time.After(5 * time.Second):
		s.FailNow("second append never finished")
	}
	s.Require().NoError(second.err)
	s.Greater(second.ev.Seq, a.Seq)

	events, err := s.log.List(ctx, audit.Filter{CampaignID: campaignID})
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(a.Seq, events[0].Seq)
	s.Equal(second.ev.Seq, events[1].Seq)
}
