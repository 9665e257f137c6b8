// internal/infra/database/postgres_delivery_ledger.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"holiday_notification_bot/internal/domain/delivery"
	"holiday_notification_bot/internal/domain/event"

	"github.com/lib/pq"
)

// PostgresDeliveryLedger stores delivery records in the deliveries table.
// The unique key (subscriber_id, event_key, occurrence_date) makes every
// insert idempotent.
type PostgresDeliveryLedger struct {
	db *sql.DB
}

func NewPostgresDeliveryLedger(db *sql.DB) *PostgresDeliveryLedger {
	return &PostgresDeliveryLedger{db: db}
}

const insertDelivery = `INSERT INTO deliveries (subscriber_id, event_key, occurrence_date, outcome, sent_at)
               VALUES ($1, $2, $3::date, $4, NOW())
               ON CONFLICT ON CONSTRAINT deliveries_subscriber_event_occurrence_key DO NOTHING`

func (l *PostgresDeliveryLedger) HasBeenNotified(ctx context.Context, subscriberID int64, ref event.Ref, occurrence time.Time) (bool, error) {
	query := `SELECT EXISTS (
               SELECT 1 FROM deliveries
               WHERE subscriber_id = $1 AND event_key = $2 AND occurrence_date = $3::date)`
	var notified bool
	if err := l.db.QueryRowContext(ctx, query, subscriberID, ref.Key(), dateOnly(occurrence)).Scan(&notified); err != nil {
		return false, fmt.Errorf("error checking delivery of %s to subscriber %d: %w", ref, subscriberID, err)
	}
	return notified, nil
}

func (l *PostgresDeliveryLedger) NotifiedAmong(ctx context.Context, eventKey string, occurrence time.Time, subscriberIDs []int64) (map[int64]bool, error) {
	notified := make(map[int64]bool)
	if len(subscriberIDs) == 0 {
		return notified, nil
	}
	query := `SELECT subscriber_id FROM deliveries
               WHERE event_key = $1 AND occurrence_date = $2::date AND subscriber_id = ANY($3)`
	rows, err := l.db.QueryContext(ctx, query, eventKey, dateOnly(occurrence), pq.Array(subscriberIDs))
	if err != nil {
		return nil, fmt.Errorf("error checking deliveries of %s for %d subscribers: %w", eventKey, len(subscriberIDs), err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning delivery row: %w", err)
		}
		notified[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery rows: %w", err)
	}
	return notified, nil
}

func (l *PostgresDeliveryLedger) RecordDelivery(ctx context.Context, subscriberID int64, ref event.Ref, occurrence time.Time) error {
	_, err := l.db.ExecContext(ctx, insertDelivery, subscriberID, ref.Key(), dateOnly(occurrence), delivery.OutcomeSent)
	if err != nil {
		return fmt.Errorf("error recording delivery of %s to subscriber %d: %w", ref, subscriberID, err)
	}
	return nil
}

// RecordDeliveries writes one page of records in a single transaction.
func (l *PostgresDeliveryLedger) RecordDeliveries(ctx context.Context, eventKey string, occurrence time.Time, delivered []delivery.Delivered) error {
	if len(delivered) == 0 {
		return nil
	}

	txn, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for delivery records: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, insertDelivery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for delivery records: %w", err)
	}
	defer stmt.Close()

	day := dateOnly(occurrence)
	for _, d := range delivered {
		outcome := d.Outcome
		if outcome == "" {
			outcome = delivery.OutcomeSent
		}
		if _, err := stmt.ExecContext(ctx, d.SubscriberID, eventKey, day, outcome); err != nil {
			return fmt.Errorf("error recording delivery (S:%d, K:%s, D:%s): %w", d.SubscriberID, eventKey, day, err)
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit delivery records: %w", err)
	}
	return nil
}

func (l *PostgresDeliveryLedger) ClearDeliveries(ctx context.Context, subscriberID int64, ref event.Ref) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM deliveries WHERE subscriber_id = $1 AND event_key = $2`, subscriberID, ref.Key())
	if err != nil {
		return 0, fmt.Errorf("error clearing deliveries of %s for subscriber %d: %w", ref, subscriberID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error clearing deliveries of %s for subscriber %d: %w", ref, subscriberID, err)
	}
	return n, nil
}

func (l *PostgresDeliveryLedger) PurgeRetractedBirthdays(ctx context.Context) (int64, error) {
	query := `DELETE FROM deliveries d
               USING subscribers s
               WHERE d.subscriber_id = s.id AND d.event_key = $1 AND s.birth_day IS NULL`
	res, err := l.db.ExecContext(ctx, query, event.BirthdayKey)
	if err != nil {
		return 0, fmt.Errorf("error purging retracted birthday deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error purging retracted birthday deliveries: %w", err)
	}
	return n, nil
}
