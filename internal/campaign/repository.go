package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/ledger"
)

// ErrCampaignNotFound is returned by repositories for unknown ids.
var ErrCampaignNotFound = errors.New("campaign not found")

// Repository persists campaigns. Create allocates gap-free sequential ids and
// Mutate serializes writers per campaign; both commit the record together
// with its audit event. A ContributionMade event also posts its amount from
// the contributor into the escrow ledger account in the same commit.
type Repository interface {
	Create(ctx context.Context, build Builder) (Campaign, audit.Event, error)
	Mutate(ctx context.Context, id int64, fn Mutation) (Campaign, audit.Event, error)
	Get(ctx context.Context, id int64) (Campaign, error)
	List(ctx context.Context) ([]Campaign, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed campaign repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectCampaign = `SELECT id, title, description, creator, goal_amount, funds_raised, status, created_at,
        payout_ref, payout_started_at, withdrawn_at FROM campaigns`

// Create allocates the next id from the locked counter row, so a rolled back
// creation hands its id to the next caller.
func (r *PostgresRepository) Create(ctx context.Context, build Builder) (Campaign, audit.Event, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Campaign{}, audit.Event{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var id int64
	if err := tx.QueryRow(ctx, `UPDATE ledger_sequences SET value = value + 1 WHERE name = 'campaign' RETURNING value`).Scan(&id); err != nil {
		return Campaign{}, audit.Event{}, fmt.Errorf("allocate campaign id: %w", err)
	}

	c, event, err := build(id)
	if err != nil {
		return Campaign{}, audit.Event{}, err
	}

	_, err = tx.Exec(ctx, `INSERT INTO campaigns (id, title, description, creator, goal_amount, funds_raised, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Title, c.Description, c.Creator, c.GoalAmount, c.FundsRaised, string(c.Status), c.CreatedAt.UTC())
	if err != nil {
		return Campaign{}, audit.Event{}, fmt.Errorf("insert campaign: %w", err)
	}
	committed, err := audit.AppendTx(ctx, tx, event)
	if err != nil {
		return Campaign{}, audit.Event{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Campaign{}, audit.Event{}, err
	}
	return c, committed, nil
}

// Mutate locks the campaign row for the duration of fn.
func (r *PostgresRepository) Mutate(ctx context.Context, id int64, fn Mutation) (Campaign, audit.Event, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Campaign{}, audit.Event{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := scanCampaign(tx.QueryRow(ctx, selectCampaign+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Campaign{}, audit.Event{}, err
	}

	next, event, err := fn(current)
	if err != nil {
		return Campaign{}, audit.Event{}, err
	}
	if !current.Status.CanBecome(next.Status) {
		return Campaign{}, audit.Event{}, fmt.Errorf("campaign %d: illegal transition %s -> %s", id, current.Status, next.Status)
	}

	_, err = tx.Exec(ctx, `UPDATE campaigns SET funds_raised = $2, status = $3, payout_ref = $4,
            payout_started_at = $5, withdrawn_at = $6 WHERE id = $1`,
		id, next.FundsRaised, string(next.Status), nullString(next.PayoutRef), nullTime(next.PayoutStartedAt), nullTime(next.WithdrawnAt))
	if err != nil {
		return Campaign{}, audit.Event{}, fmt.Errorf("update campaign: %w", err)
	}

	if event.Kind == audit.KindContributionMade {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		_, err := ledger.DepositTx(ctx, tx, ledger.ContributorAccountCode(event.Holder), event.ID, event.Amount)
		if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return Campaign{}, audit.Event{}, fmt.Errorf("post contribution to escrow: %w", err)
		}
	}

	var committed audit.Event
	if event.Kind != "" {
		committed, err = audit.AppendTx(ctx, tx, event)
		if err != nil {
			return Campaign{}, audit.Event{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Campaign{}, audit.Event{}, err
	}
	return next, committed, nil
}

// Get fetches a campaign by id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Campaign, error) {
	return scanCampaign(r.db.QueryRow(ctx, selectCampaign+` WHERE id = $1`, id))
}

// List returns every campaign by id ascending. The read runs in a single
// repeatable-read transaction so the page is one consistent snapshot.
func (r *PostgresRepository) List(ctx context.Context) ([]Campaign, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rows, err := tx.Query(ctx, selectCampaign+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCampaign(row pgx.Row) (Campaign, error) {
	var (
		c               Campaign
		status          string
		payoutRef       *string
		payoutStartedAt *time.Time
		withdrawnAt     *time.Time
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Creator, &c.GoalAmount, &c.FundsRaised, &status, &c.CreatedAt,
		&payoutRef, &payoutStartedAt, &withdrawnAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, ErrCampaignNotFound
		}
		return Campaign{}, err
	}
	c.Status = Status(status)
	c.CreatedAt = c.CreatedAt.UTC()
	if payoutRef != nil {
		c.PayoutRef = *payoutRef
	}
	if payoutStartedAt != nil {
		c.PayoutStartedAt = payoutStartedAt.UTC()
	}
	if withdrawnAt != nil {
		c.WithdrawnAt = withdrawnAt.UTC()
	}
	return c, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
