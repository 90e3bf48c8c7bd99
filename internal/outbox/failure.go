package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter keeps events that could not be published for later inspection.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write copies msg into outbox_dlq together with the failure reason.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	const stmt = `INSERT INTO outbox_dlq (tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	return withTenantTx(ctx, w.pool, msg.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt,
			msg.TenantID,
			msg.EventID,
			msg.EventType,
			msg.Topic,
			msg.Payload,
			reason,
			msg.AggregateType,
			msg.AggregateID,
			msg.SchemaSubject,
			msg.PartitionKey,
		)
		return err
	})
}
