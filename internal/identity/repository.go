package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/escrow/internal/audit"
)

// ErrRecordNotFound is returned by repositories for holders that never submitted.
var ErrRecordNotFound = errors.New("identity record not found")

// Repository persists identity records. Mutate must serialize mutations per
// holder and commit the record together with the mutation's audit event.
type Repository interface {
	Mutate(ctx context.Context, holder string, fn Mutation) (Record, audit.Event, error)
	Get(ctx context.Context, holder string) (Record, error)
	List(ctx context.Context) ([]Record, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectRecord = `SELECT holder, full_name, national_id, verified, submitted_at FROM kyc_records`

// Mutate runs fn under a transaction-scoped advisory lock on the holder so
// first submissions serialize as well as updates to existing rows.
func (r *PostgresRepository) Mutate(ctx context.Context, holder string, fn Mutation) (Record, audit.Event, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Record{}, audit.Event{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "kyc:"+holder); err != nil {
		return Record{}, audit.Event{}, fmt.Errorf("lock holder: %w", err)
	}

	current, err := scanRecord(tx.QueryRow(ctx, selectRecord+` WHERE holder = $1 FOR UPDATE`, holder))
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return Record{}, audit.Event{}, err
	}
	if errors.Is(err, ErrRecordNotFound) {
		current = Record{Holder: holder}
	}

	next, event, err := fn(current)
	if err != nil {
		return Record{}, audit.Event{}, err
	}
	if event.Kind == "" {
		return current, audit.Event{}, nil
	}

	_, err = tx.Exec(ctx, `INSERT INTO kyc_records (holder, full_name, national_id, verified, submitted_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (holder) DO UPDATE SET full_name = EXCLUDED.full_name, national_id = EXCLUDED.national_id,
            verified = EXCLUDED.verified, submitted_at = EXCLUDED.submitted_at`,
		holder, next.FullName, next.NationalID, next.Verified, next.SubmittedAt.UTC())
	if err != nil {
		return Record{}, audit.Event{}, fmt.Errorf("upsert identity record: %w", err)
	}
	committed, err := audit.AppendTx(ctx, tx, event)
	if err != nil {
		return Record{}, audit.Event{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, audit.Event{}, err
	}
	return next, committed, nil
}

// Get fetches the record for holder.
func (r *PostgresRepository) Get(ctx context.Context, holder string) (Record, error) {
	return scanRecord(r.db.QueryRow(ctx, selectRecord+` WHERE holder = $1`, holder))
}

// List returns every record in first-submission order.
func (r *PostgresRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.Query(ctx, selectRecord+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec         Record
		submittedAt time.Time
	)
	if err := row.Scan(&rec.Holder, &rec.FullName, &rec.NationalID, &rec.Verified, &submittedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	rec.Exists = true
	rec.SubmittedAt = submittedAt.UTC()
	return rec, nil
}
