package event

import (
	"context"
	"time"
)

// Catalog is the read side of the fixed event registry.
type Catalog interface {
	// DueEventsToday returns every valid fixed event whose (day, month)
	// equals today's. The birthday pseudo-event is never returned here.
	DueEventsToday(ctx context.Context, today time.Time) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)
}

// DueOn filters events down to the valid ones falling on today's day and month.
func DueOn(events []Event, today time.Time) []Event {
	due := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Kind == KindBirthday || !e.Valid() {
			continue
		}
		if e.Day == today.Day() && e.Month == int(today.Month()) {
			due = append(due, e)
		}
	}
	return due
}
