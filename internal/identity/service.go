package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/congo-pay/escrow/internal/apperr"
	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/holder"
	"github.com/congo-pay/escrow/internal/logging"
	"github.com/congo-pay/escrow/internal/metrics"
	"github.com/congo-pay/escrow/internal/notification"
	"github.com/congo-pay/escrow/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/congo-pay/escrow/internal/identity")

// Options carries the optional collaborators of a Service.
type Options struct {
	Logger   *slog.Logger
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Service is the identity registry. It owns verification state and gates
// campaign creation through IsVerified.
type Service struct {
	repo     Repository
	admin    string
	logger   *slog.Logger
	notifier notification.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService creates the registry with admin as the single administrator.
func NewService(repo Repository, admin string, opts Options) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("identity repository is required")
	}
	canonical, err := holder.Normalize(admin)
	if err != nil {
		return nil, fmt.Errorf("admin holder: %w", err)
	}
	s := &Service{
		repo:     repo,
		admin:    canonical,
		logger:   opts.Logger,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Admin returns the administrator identity.
func (s *Service) Admin() string {
	return s.admin
}

// IsAdmin reports whether h is the administrator.
func (s *Service) IsAdmin(h string) bool {
	canonical, err := holder.Normalize(h)
	return err == nil && canonical == s.admin
}

// Submit creates or overwrites the caller's pending record. A verified record
// cannot be resubmitted; a pending or rejected one can, and each accepted
// submission restarts SubmittedAt.
func (s *Service) Submit(ctx context.Context, h, fullName, nationalID string) (Record, error) {
	const op = "identity.Submit"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	h, err := normalizeHolder(op, h)
	if err != nil {
		return Record{}, err
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return Record{}, apperr.Validation(op, "full_name", "full name is required")
	}
	if !validNationalID(nationalID) {
		return Record{}, apperr.Validation(op, "national_id", fmt.Sprintf("national id must be exactly %d digits", NationalIDLength))
	}
	span.SetAttributes(attribute.String("holder", h))

	rec, ev, err := s.repo.Mutate(ctx, h, func(current Record) (Record, audit.Event, error) {
		if current.Exists && current.Verified {
			return Record{}, audit.Event{}, apperr.AlreadyVerified(op, "identity is already verified")
		}
		now := s.now().UTC()
		next := Record{
			Holder:      h,
			FullName:    fullName,
			NationalID:  nationalID,
			Verified:    false,
			Exists:      true,
			SubmittedAt: now,
		}
		return next, audit.Event{Kind: audit.KindKYCSubmitted, Actor: h, Holder: h, OccurredAt: now}, nil
	})
	if err != nil {
		return Record{}, err
	}

	s.metrics.IdentitySubmitted()
	s.logger.Info("identity submitted", slog.String("holder", h))
	s.notify(ctx, ev, s.admin, fmt.Sprintf("identity %s awaits review", h))
	return rec, nil
}

// Approve marks holder verified. Only the administrator may approve. Approving
// an already verified record succeeds without writing anything.
func (s *Service) Approve(ctx context.Context, actor, h string) (Record, error) {
	const op = "identity.Approve"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	return s.decide(ctx, op, actor, h, true)
}

// Reject clears the verified flag. The record is kept so the holder can resubmit.
func (s *Service) Reject(ctx context.Context, actor, h string) (Record, error) {
	const op = "identity.Reject"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	return s.decide(ctx, op, actor, h, false)
}

func (s *Service) decide(ctx context.Context, op, actor, h string, approve bool) (Record, error) {
	if !s.IsAdmin(actor) {
		return Record{}, apperr.Authorization(op, "only the administrator may review identities")
	}
	h, err := normalizeHolder(op, h)
	if err != nil {
		return Record{}, err
	}

	kind, decision := audit.KindKYCRejected, "rejected"
	if approve {
		kind, decision = audit.KindKYCApproved, "approved"
	}

	rec, ev, err := s.repo.Mutate(ctx, h, func(current Record) (Record, audit.Event, error) {
		if !current.Exists {
			return Record{}, audit.Event{}, apperr.NotFound(op, "no identity record for "+h)
		}
		if approve && current.Verified {
			return current, audit.Event{}, nil
		}
		next := current
		next.Verified = approve
		return next, audit.Event{Kind: kind, Actor: s.admin, Holder: h, OccurredAt: s.now().UTC()}, nil
	})
	if err != nil {
		return Record{}, err
	}
	if ev.Kind == "" {
		return rec, nil
	}

	s.metrics.IdentityDecided(decision)
	s.logger.Info("identity reviewed", slog.String("holder", h), slog.String("decision", decision))
	s.notify(ctx, ev, h, "identity "+decision)
	return rec, nil
}

// IsVerified reports whether h holds a verified record. Unknown or malformed
// holders are simply not verified; the error is reserved for storage failures.
func (s *Service) IsVerified(ctx context.Context, h string) (bool, error) {
	rec, found, err := s.GetRecord(ctx, h)
	if err != nil {
		return false, err
	}
	return found && rec.Verified, nil
}

// GetRecord returns the record of h and whether one exists.
func (s *Service) GetRecord(ctx context.Context, h string) (Record, bool, error) {
	canonical, err := holder.Normalize(h)
	if err != nil {
		return Record{}, false, nil
	}
	rec, err := s.repo.Get(ctx, canonical)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// ListHolders returns every holder that ever submitted, in first-submission order.
func (s *Service) ListHolders(ctx context.Context) ([]string, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Holder)
	}
	return out, nil
}

// ListRecords returns a snapshot of all records in first-submission order.
func (s *Service) ListRecords(ctx context.Context) ([]Record, error) {
	return s.repo.List(ctx)
}

func (s *Service) notify(ctx context.Context, ev audit.Event, destination, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.ForEvent(ev, destination, body)); err != nil {
		s.logger.Warn("notification failed", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
	}
}

func normalizeHolder(op, h string) (string, error) {
	canonical, err := holder.Normalize(h)
	if err != nil {
		return "", apperr.Validation(op, "holder", err.Error())
	}
	return canonical, nil
}

func validNationalID(id string) bool {
	if len(id) != NationalIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
