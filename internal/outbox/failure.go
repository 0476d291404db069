package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeadLetter is an undeliverable outbox event and the reason it was parked.
type DeadLetter struct {
	Message Message
	Reason  string
}

// DLQWriter parks undeliverable outbox events in outbox_dlq for operators to inspect.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// WriteAll records dead letters, one transaction per tenant so RLS applies to each insert.
// Tenants are written in first-seen order.
func (w *DLQWriter) WriteAll(ctx context.Context, letters []DeadLetter) error {
	for _, group := range groupByTenant(letters) {
		if err := w.writeTenant(ctx, group); err != nil {
			return fmt.Errorf("write dlq (tenant=%s): %w", group[0].Message.TenantID, err)
		}
	}
	return nil
}

func (w *DLQWriter) writeTenant(ctx context.Context, letters []DeadLetter) error {
	return pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", letters[0].Message.TenantID); err != nil {
			return err
		}

		const stmt = `INSERT INTO outbox_dlq (tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

		batch := &pgx.Batch{}
		for _, l := range letters {
			m := l.Message
			batch.Queue(stmt, m.TenantID, m.EventID, m.EventType, m.Topic, m.Payload, l.Reason, m.AggregateType, m.AggregateID, m.SchemaSubject, m.PartitionKey)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func groupByTenant(letters []DeadLetter) [][]DeadLetter {
	index := make(map[string]int)
	var groups [][]DeadLetter
	for _, l := range letters {
		i, ok := index[l.Message.TenantID]
		if !ok {
			i = len(groups)
			index[l.Message.TenantID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], l)
	}
	return groups
}
