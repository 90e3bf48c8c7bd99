package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/dashboard/internal/domain"
	"example.com/dashboard/internal/events"
	"example.com/dashboard/internal/observability"
)

// Repository provides Postgres-backed persistence for activity collections and outbox events.
type Repository struct {
	pool     *pgxpool.Pool
	location *time.Location
}

// Option customises the Repository.
type Option func(*Repository)

// WithLocation sets the location activity dates are returned in.
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) {
		if loc != nil {
			r.location = loc
		}
	}
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool, location: time.Local}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplaceCollection swaps the user's activities for the new import and records
// the completion event inside a single transaction.
func (r *Repository) ReplaceCollection(ctx context.Context, batch domain.ImportBatch, activities []domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", batch.TenantID); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM activities WHERE tenant_id=$1 AND user_id=$2`, batch.TenantID, batch.UserID); err != nil {
		return err
	}

	const insertImport = `INSERT INTO activity_imports (import_id, tenant_id, user_id, source, row_count, dropped_count, imported_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err = tx.Exec(ctx, insertImport,
		batch.ID,
		batch.TenantID,
		batch.UserID,
		batch.Source,
		batch.RowCount,
		batch.DroppedCount,
		batch.ImportedAt,
	); err != nil {
		return err
	}

	if err = insertActivities(ctx, tx, batch, activities); err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, batch, events.ImportCompletedEventType, events.ImportCompleted{
		ImportID:   batch.ID,
		TenantID:   batch.TenantID,
		UserID:     batch.UserID,
		Source:     batch.Source,
		Rows:       batch.RowCount,
		Imported:   batch.Imported(),
		Dropped:    batch.DroppedCount,
		ImportedAt: batch.ImportedAt,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordImportPersisted(batch.ImportedAt)
	return nil
}

func insertActivities(ctx context.Context, tx pgx.Tx, batch domain.ImportBatch, activities []domain.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	// COPY is rejected on tables with row level security, so rows go through a pipelined batch.
	const stmt = `INSERT INTO activities (tenant_id, user_id, position, import_id, activity_type, started_at, title, distance, calories, duration_seconds, avg_hr, max_hr, avg_pace, total_ascent)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	queued := &pgx.Batch{}
	for i, a := range activities {
		queued.Queue(stmt,
			batch.TenantID,
			batch.UserID,
			i,
			batch.ID,
			string(a.ActivityType),
			a.Date,
			a.Title,
			a.Distance,
			a.Calories,
			a.Duration,
			a.AvgHR,
			a.MaxHR,
			a.AvgPace,
			a.TotalAscent,
		)
	}
	return tx.SendBatch(ctx, queued).Close()
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, batch domain.ImportBatch, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	partitionKey := meta.PartitionKeyFn(batch)
	dedupeKey := fmt.Sprintf("%s:%s", batch.ID, eventType)

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		batch.TenantID,
		"activity_import",
		batch.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// LoadCollection returns the user's activities in export order.
func (r *Repository) LoadCollection(ctx context.Context, tenantID, userID string) ([]domain.Activity, error) {
	var activities []domain.Activity
	err := r.readTx(ctx, tenantID, func(tx pgx.Tx) (err error) {
		activities, err = r.queryActivities(ctx, tx, tenantID, userID)
		return err
	})
	return activities, err
}

// LatestImport returns the most recent import of the user, or nil when there is none.
func (r *Repository) LatestImport(ctx context.Context, tenantID, userID string) (*domain.ImportBatch, error) {
	var batch *domain.ImportBatch
	err := r.readTx(ctx, tenantID, func(tx pgx.Tx) (err error) {
		batch, err = queryLatestImport(ctx, tx, tenantID, userID)
		return err
	})
	return batch, err
}

// LoadSnapshot reads the latest import and its activities in one repeatable-read
// transaction, so a concurrent replace is never observed halfway.
func (r *Repository) LoadSnapshot(ctx context.Context, tenantID, userID string) (*domain.ImportBatch, []domain.Activity, error) {
	var (
		batch      *domain.ImportBatch
		activities []domain.Activity
	)
	err := r.readTx(ctx, tenantID, func(tx pgx.Tx) (err error) {
		if batch, err = queryLatestImport(ctx, tx, tenantID, userID); err != nil {
			return err
		}
		activities, err = r.queryActivities(ctx, tx, tenantID, userID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return batch, activities, nil
}

// readTx runs fn in a read-only repeatable-read transaction scoped to the tenant.
func (r *Repository) readTx(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) queryActivities(ctx context.Context, tx pgx.Tx, tenantID, userID string) ([]domain.Activity, error) {
	const query = `SELECT activity_type, started_at, title, distance, calories, duration_seconds, avg_hr, max_hr, avg_pace, total_ascent
        FROM activities WHERE tenant_id=$1 AND user_id=$2 ORDER BY position`

	rows, err := tx.Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	for rows.Next() {
		var (
			a            domain.Activity
			activityType string
		)
		if err := rows.Scan(&activityType, &a.Date, &a.Title, &a.Distance, &a.Calories, &a.Duration, &a.AvgHR, &a.MaxHR, &a.AvgPace, &a.TotalAscent); err != nil {
			return nil, err
		}
		a.ActivityType = domain.ActivityType(activityType)
		a.Date = a.Date.In(r.location)
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func queryLatestImport(ctx context.Context, tx pgx.Tx, tenantID, userID string) (*domain.ImportBatch, error) {
	const query = `SELECT import_id::text, tenant_id, user_id, source, row_count, dropped_count, imported_at
        FROM activity_imports WHERE tenant_id=$1 AND user_id=$2
        ORDER BY imported_at DESC LIMIT 1`

	var batch domain.ImportBatch
	err := tx.QueryRow(ctx, query, tenantID, userID).
		Scan(&batch.ID, &batch.TenantID, &batch.UserID, &batch.Source, &batch.RowCount, &batch.DroppedCount, &batch.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	batch.ImportedAt = batch.ImportedAt.UTC()
	return &batch, nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.ImportBatch) string
}

var eventCatalog = map[string]EventMetadata{
	events.ImportCompletedEventType: {
		Topic:         "activity_imports",
		SchemaSubject: "activity_imports-value",
		PartitionKeyFn: func(b domain.ImportBatch) string {
			return fmt.Sprintf("%s:%s", b.TenantID, b.UserID)
		},
	},
}
