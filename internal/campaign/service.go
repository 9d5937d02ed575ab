package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/congo-pay/escrow/internal/apperr"
	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/holder"
	"github.com/congo-pay/escrow/internal/logging"
	"github.com/congo-pay/escrow/internal/metrics"
	"github.com/congo-pay/escrow/internal/notification"
	"github.com/congo-pay/escrow/internal/payout"
	"github.com/congo-pay/escrow/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/congo-pay/escrow/internal/campaign")

// DefaultWithdrawalLease bounds how long a withdrawal reservation blocks
// other attempts before it is considered abandoned.
const DefaultWithdrawalLease = 5 * time.Minute

// Authorizer answers the identity questions campaign creation depends on.
type Authorizer interface {
	IsAdmin(holder string) bool
	IsVerified(ctx context.Context, holder string) (bool, error)
}

// Releaser moves escrowed funds out to a holder.
type Releaser interface {
	Release(ctx context.Context, req payout.Request) (payout.Receipt, error)
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Logger          *slog.Logger
	Notifier        notification.Notifier
	Metrics         *metrics.Metrics
	Now             func() time.Time
	WithdrawalLease time.Duration
}

// Service is the campaign ledger.
type Service struct {
	repo     Repository
	authz    Authorizer
	payouts  Releaser
	logger   *slog.Logger
	notifier notification.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
	lease    time.Duration
}

// NewService wires the campaign ledger.
func NewService(repo Repository, authz Authorizer, payouts Releaser, opts Options) (*Service, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("campaign repository is required")
	case authz == nil:
		return nil, fmt.Errorf("identity authorizer is required")
	case payouts == nil:
		return nil, fmt.Errorf("payout releaser is required")
	}
	s := &Service{
		repo:     repo,
		authz:    authz,
		payouts:  payouts,
		logger:   opts.Logger,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		now:      opts.Now,
		lease:    opts.WithdrawalLease,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.lease <= 0 {
		s.lease = DefaultWithdrawalLease
	}
	return s, nil
}

// Create opens a campaign owned by creator. Only verified holders and the
// administrator may create; ids are sequential from 1 and a failed creation
// does not consume one.
func (s *Service) Create(ctx context.Context, creator, title, description string, goal int64) (Campaign, error) {
	const op = "campaign.Create"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	creator, err := normalizeHolder(op, "creator", creator)
	if err != nil {
		return Campaign{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Campaign{}, apperr.Validation(op, "title", "title is required")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return Campaign{}, apperr.Validation(op, "description", "description is required")
	}
	if goal <= 0 {
		return Campaign{}, apperr.Validation(op, "goal_amount", "goal amount must be positive")
	}

	if !s.authz.IsAdmin(creator) {
		verified, err := s.authz.IsVerified(ctx, creator)
		if err != nil {
			return Campaign{}, fmt.Errorf("check verification: %w", err)
		}
		if !verified {
			return Campaign{}, apperr.Authorization(op, "creator identity is not verified")
		}
	}

	c, ev, err := s.repo.Create(ctx, func(id int64) (Campaign, audit.Event, error) {
		now := s.now().UTC()
		c := Campaign{
			ID:          id,
			Title:       title,
			Description: description,
			Creator:     creator,
			GoalAmount:  goal,
			Status:      StatusActive,
			CreatedAt:   now,
		}
		return c, audit.Event{
			Kind:       audit.KindCampaignCreated,
			Actor:      creator,
			Holder:     creator,
			CampaignID: id,
			Amount:     goal,
			OccurredAt: now,
		}, nil
	})
	if err != nil {
		return Campaign{}, err
	}
	span.SetAttributes(attribute.Int64("campaign.id", c.ID))

	s.metrics.CampaignCreated()
	s.logger.Info("campaign created", slog.Int64("campaign_id", c.ID), slog.String("creator", creator), slog.Int64("goal", goal))
	s.notify(ctx, ev, creator, fmt.Sprintf("campaign %d created", c.ID))
	return c, nil
}

// Contribute adds amount to the escrowed total of an active campaign. The
// contribution that meets the goal moves the campaign to goal_reached in the
// same step; later contributions are refused. The repository posts the
// contribution into the escrow account in the same commit.
func (s *Service) Contribute(ctx context.Context, id int64, contributor string, amount int64) (Campaign, error) {
	const op = "campaign.Contribute"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int64("campaign.id", id))

	contributor, err := normalizeHolder(op, "contributor", contributor)
	if err != nil {
		return Campaign{}, err
	}

	c, ev, err := s.repo.Mutate(ctx, id, func(current Campaign) (Campaign, audit.Event, error) {
		if amount <= 0 {
			return Campaign{}, audit.Event{}, apperr.Validation(op, "amount", "amount must be positive")
		}
		if current.Status != StatusActive {
			return Campaign{}, audit.Event{}, apperr.InvalidState(op, fmt.Sprintf("campaign is %s and no longer accepts contributions", current.Status))
		}
		if current.FundsRaised > math.MaxInt64-amount {
			return Campaign{}, audit.Event{}, apperr.Validation(op, "amount", "contribution would overflow the campaign total")
		}
		next := current
		next.FundsRaised += amount
		if next.FundsRaised >= next.GoalAmount {
			next.Status = StatusGoalReached
		}
		return next, audit.Event{
			ID:         uuid.NewString(),
			Kind:       audit.KindContributionMade,
			Actor:      contributor,
			Holder:     contributor,
			CampaignID: id,
			Amount:     amount,
			Total:      next.FundsRaised,
			OccurredAt: s.now().UTC(),
		}, nil
	})
	if err != nil {
		return Campaign{}, s.repoError(op, id, err)
	}

	s.metrics.Contributed(amount)
	s.logger.Info("contribution accepted",
		slog.Int64("campaign_id", id),
		slog.String("contributor", contributor),
		slog.Int64("amount", amount),
		slog.Int64("total", c.FundsRaised),
		slog.String("status", string(c.Status)),
	)
	body := fmt.Sprintf("campaign %d received %d", id, amount)
	if c.Status == StatusGoalReached {
		body = fmt.Sprintf("campaign %d reached its goal", id)
	}
	s.notify(ctx, ev, c.Creator, body)
	return c, nil
}

// Withdraw releases the escrowed total to the creator once the goal is
// reached. It runs in three steps: reserve the campaign, release the funds,
// then mark it withdrawn. A failed release drops the reservation so the
// campaign stays in goal_reached and the creator can retry.
func (s *Service) Withdraw(ctx context.Context, id int64, requester string) (Withdrawal, error) {
	const op = "campaign.Withdraw"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int64("campaign.id", id))

	requester, err := normalizeHolder(op, "requester", requester)
	if err != nil {
		return Withdrawal{}, err
	}
	ref := PayoutReference(id)

	reserved, _, err := s.repo.Mutate(ctx, id, func(current Campaign) (Campaign, audit.Event, error) {
		if current.Creator != requester {
			return Campaign{}, audit.Event{}, apperr.Authorization(op, "only the campaign creator may withdraw")
		}
		switch current.Status {
		case StatusWithdrawn:
			return Campaign{}, audit.Event{}, apperr.InvalidState(op, "funds were already withdrawn")
		case StatusActive:
			return Campaign{}, audit.Event{}, apperr.InvalidState(op, "campaign has not reached its goal")
		}
		now := s.now().UTC()
		if current.PayoutRef != "" && now.Sub(current.PayoutStartedAt) < s.lease {
			return Campaign{}, audit.Event{}, apperr.InvalidState(op, "a withdrawal is already in progress")
		}
		next := current
		next.PayoutRef = ref
		next.PayoutStartedAt = now
		return next, audit.Event{}, nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAuthorization) || errors.Is(err, apperr.ErrInvalidState) {
			s.metrics.Withdrawal("refused")
		}
		return Withdrawal{}, s.repoError(op, id, err)
	}

	// Finishing steps must not be abandoned halfway because the caller went away.
	settleCtx := context.WithoutCancel(ctx)

	receipt, err := s.payouts.Release(ctx, payout.Request{
		CampaignID: id,
		Payee:      reserved.Creator,
		Amount:     reserved.FundsRaised,
		Reference:  ref,
	})
	if err != nil {
		s.metrics.Withdrawal("failed")
		s.logger.Error("payout failed", slog.Int64("campaign_id", id), slog.Any("error", err))
		if _, _, rbErr := s.repo.Mutate(settleCtx, id, func(current Campaign) (Campaign, audit.Event, error) {
			next := current
			if current.Status == StatusGoalReached && current.PayoutRef == ref {
				next.PayoutRef = ""
				next.PayoutStartedAt = time.Time{}
			}
			return next, audit.Event{}, nil
		}); rbErr != nil {
			s.logger.Error("withdrawal rollback failed", slog.Int64("campaign_id", id), slog.Any("error", rbErr))
		}
		if errors.Is(err, payout.ErrDeclined) {
			return Withdrawal{}, apperr.InvalidState(op, fmt.Sprintf("transfer was declined (%v); campaign %d stays goal_reached and the withdrawal can be retried", err, id))
		}
		return Withdrawal{}, apperr.InvalidState(op, fmt.Sprintf("transfer could not be completed; campaign %d stays goal_reached and the withdrawal can be retried", id))
	}

	c, ev, err := s.repo.Mutate(settleCtx, id, func(current Campaign) (Campaign, audit.Event, error) {
		if current.Status != StatusGoalReached || current.PayoutRef != ref {
			return Campaign{}, audit.Event{}, apperr.InvalidState(op, "withdrawal reservation was lost")
		}
		now := s.now().UTC()
		next := current
		next.Status = StatusWithdrawn
		next.WithdrawnAt = now
		return next, audit.Event{
			Kind:       audit.KindFundsWithdrawn,
			Actor:      requester,
			Holder:     requester,
			CampaignID: id,
			Amount:     current.FundsRaised,
			Total:      current.FundsRaised,
			OccurredAt: now,
		}, nil
	})
	if err != nil {
		s.metrics.Withdrawal("failed")
		s.logger.Error("withdrawal finalize failed",
			slog.Int64("campaign_id", id),
			slog.String("transaction_id", receipt.TransactionID),
			slog.Any("error", err),
		)
		return Withdrawal{}, s.repoError(op, id, err)
	}

	s.metrics.Withdrawal("completed")
	s.logger.Info("funds withdrawn",
		slog.Int64("campaign_id", id),
		slog.String("creator", c.Creator),
		slog.Int64("amount", c.FundsRaised),
		slog.String("transaction_id", receipt.TransactionID),
		slog.Bool("replayed", receipt.Replayed),
	)
	s.notify(ctx, ev, c.Creator, fmt.Sprintf("campaign %d paid out %d", id, c.FundsRaised))
	return Withdrawal{Campaign: c, Amount: c.FundsRaised, TransactionID: receipt.TransactionID}, nil
}

// Get returns the campaign with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Campaign{}, s.repoError("campaign.Get", id, err)
	}
	return c, nil
}

// List returns every campaign ordered by id.
func (s *Service) List(ctx context.Context) ([]Campaign, error) {
	return s.repo.List(ctx)
}

// PayoutReference is the idempotency reference used for the payout of a
// campaign. It is stable so a retried release never pays twice.
func PayoutReference(id int64) string {
	return fmt.Sprintf("campaign:%d:withdraw", id)
}

func (s *Service) repoError(op string, id int64, err error) error {
	if errors.Is(err, ErrCampaignNotFound) {
		return apperr.NotFound(op, fmt.Sprintf("campaign %d not found", id))
	}
	return err
}

func (s *Service) notify(ctx context.Context, ev audit.Event, destination, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.ForEvent(ev, destination, body)); err != nil {
		s.logger.Warn("notification failed", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
	}
}

func normalizeHolder(op, field, h string) (string, error) {
	canonical, err := holder.Normalize(h)
	if err != nil {
		return "", apperr.Validation(op, field, err.Error())
	}
	return canonical, nil
}
