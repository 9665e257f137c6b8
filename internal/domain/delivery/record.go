// internal/domain/delivery/record.go
package delivery

import "time"

// Outcome records why a delivery row exists.
type Outcome string

const (
	OutcomeSent Outcome = "SENT"
	// OutcomeSuppressed marks a permanent recipient failure, recorded only
	// when suppression is enabled, so the recipient is not retried every tick.
	OutcomeSuppressed Outcome = "SUPPRESSED"
)

// Record is the append-only fact "subscriber was notified for event on date".
// Corresponds to the 'deliveries' table; unique on
// (subscriber_id, event_key, occurrence_date).
type Record struct {
	ID             int64
	SubscriberID   int64
	EventKey       string
	OccurrenceDate time.Time
	Outcome        Outcome
	SentAt         time.Time
}

// Delivered is one confirmed recipient of a page commit.
type Delivered struct {
	SubscriberID int64
	Outcome      Outcome
}
