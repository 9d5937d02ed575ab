package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLog persists events in the audit_events table. Writers append
// through AppendTx inside the transaction that mutates the audited row.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog builds a Postgres-backed audit log.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// appendLockSQL serializes appenders from sequence assignment to commit, so
// sequence order is commit order and a reader paging with "seq > after" can
// never see a lower seq become visible later. Appenders should make AppendTx
// their last statement before Commit to keep the lock short.
const appendLockSQL = `SELECT pg_advisory_xact_lock(hashtextextended('audit_events', 0))`

// AppendTx inserts ev within tx and returns it with its sequence number.
func AppendTx(ctx context.Context, tx pgx.Tx, ev Event) (Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	eventID, err := uuid.Parse(ev.ID)
	if err != nil {
		return Event{}, err
	}
	if _, err := tx.Exec(ctx, appendLockSQL); err != nil {
		return Event{}, fmt.Errorf("lock audit log: %w", err)
	}
	const query = `INSERT INTO audit_events (id, kind, actor, holder, campaign_id, amount, total, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq`
	if err := tx.QueryRow(ctx, query, eventID, string(ev.Kind), ev.Actor, ev.Holder, ev.CampaignID, ev.Amount, ev.Total, ev.OccurredAt.UTC()).Scan(&ev.Seq); err != nil {
		return Event{}, fmt.Errorf("append audit event: %w", err)
	}
	return ev, nil
}

// List pages events in sequence order, which is also commit order.
func (l *PostgresLog) List(ctx context.Context, filter Filter) ([]Event, error) {
	var (
		where = []string{"seq > $1"}
		args  = []any{filter.AfterSeq}
	)
	if filter.Holder != "" {
		args = append(args, filter.Holder)
		where = append(where, fmt.Sprintf("(holder = $%d OR actor = $%d)", len(args), len(args)))
	}
	if filter.CampaignID != 0 {
		args = append(args, filter.CampaignID)
		where = append(where, fmt.Sprintf("campaign_id = $%d", len(args)))
	}
	args = append(args, filter.limit())
	query := `SELECT seq, id, kind, actor, holder, campaign_id, amount, total, occurred_at
        FROM audit_events WHERE ` + strings.Join(where, " AND ") + fmt.Sprintf(` ORDER BY seq LIMIT $%d`, len(args))

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev   Event
			id   uuid.UUID
			kind string
		)
		if err := rows.Scan(&ev.Seq, &id, &kind, &ev.Actor, &ev.Holder, &ev.CampaignID, &ev.Amount, &ev.Total, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.ID = id.String()
		ev.Kind = Kind(kind)
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
