package delivery

import (
	"context"
	"time"

	"holiday_notification_bot/internal/domain/event"
)

// Ledger is the durable, idempotent record of delivered notifications.
// Occurrence dates are compared by calendar day only.
type Ledger interface {
	HasBeenNotified(ctx context.Context, subscriberID int64, ref event.Ref, occurrence time.Time) (bool, error)
	// NotifiedAmong is HasBeenNotified for a batch of subscribers sharing
	// one event key. The result holds only the notified IDs.
	NotifiedAmong(ctx context.Context, eventKey string, occurrence time.Time, subscriberIDs []int64) (map[int64]bool, error)
	// RecordDelivery inserts one record; a duplicate is a no-op.
	RecordDelivery(ctx context.Context, subscriberID int64, ref event.Ref, occurrence time.Time) error
	// RecordDeliveries commits a page of records in a single transaction.
	// Duplicates are skipped, never reported as errors.
	RecordDeliveries(ctx context.Context, eventKey string, occurrence time.Time, delivered []Delivered) error
	// ClearDeliveries removes every record of ref for the subscriber.
	ClearDeliveries(ctx context.Context, subscriberID int64, ref event.Ref) (int64, error)
	// PurgeRetractedBirthdays drops birthday records of subscribers
	// who no longer have a birthday stored.
	PurgeRetractedBirthdays(ctx context.Context) (int64, error)
}
