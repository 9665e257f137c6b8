// internal/domain/event/event.go
package event

import (
	"fmt"
	"time"
)

// Kind distinguishes stored holidays from the per-subscriber birthday.
type Kind string

const (
	KindFixed    Kind = "FIXED"
	KindBirthday Kind = "BIRTHDAY"
)

// BirthdayKey is the ledger key shared by every birthday occurrence.
const BirthdayKey = "birthday"

// Event is a recurring calendar event keyed by (day, month).
// Corresponds to the 'holidays' table plus its 'holiday_translations'.
type Event struct {
	ID    int64
	Kind  Kind
	Day   int
	Month int
	Name  string            // Fallback display name
	Names map[string]string // Localized names keyed by locale tag
}

// Birthday returns the synthetic birthday event. It has no row of its own;
// one logical instance exists per subscriber with a stored birth date.
func Birthday() Event {
	return Event{Kind: KindBirthday, Name: "Birthday"}
}

// Valid reports whether the (day, month) pair can ever occur.
// Feb 29 is valid; Apr 31 or month 16 are not.
func (e Event) Valid() bool {
	if e.Kind == KindBirthday {
		return true
	}
	if e.Month < 1 || e.Month > 12 || e.Day < 1 || e.Day > 31 {
		return false
	}
	// 2000 is a leap year, so every reachable day exists in it.
	return validDate(2000, e.Month, e.Day)
}

// NameFor returns the localized name, falling back to the default name.
func (e Event) NameFor(locale string) string {
	if n, ok := e.Names[locale]; ok && n != "" {
		return n
	}
	return e.Name
}

// Ref returns the ledger reference of this event for the given subscriber.
func (e Event) Ref(subscriberID int64) Ref {
	if e.Kind == KindBirthday {
		return BirthdayRef(subscriberID)
	}
	return FixedRef(e.ID)
}

// Key is the event key stored in delivery records.
func (e Event) Key() string {
	if e.Kind == KindBirthday {
		return BirthdayKey
	}
	return FixedRef(e.ID).Key()
}

// Ref identifies what a delivery was for: Fixed(eventID) | Birthday(subscriberID).
type Ref struct {
	Kind         Kind
	EventID      int64 // Set for KindFixed
	SubscriberID int64 // Set for KindBirthday
}

func FixedRef(eventID int64) Ref {
	return Ref{Kind: KindFixed, EventID: eventID}
}

func BirthdayRef(subscriberID int64) Ref {
	return Ref{Kind: KindBirthday, SubscriberID: subscriberID}
}

// Key is the value of deliveries.event_key for this reference.
func (r Ref) Key() string {
	if r.Kind == KindBirthday {
		return BirthdayKey
	}
	return fmt.Sprintf("holiday:%d", r.EventID)
}

func (r Ref) String() string {
	if r.Kind == KindBirthday {
		return fmt.Sprintf("birthday(subscriber=%d)", r.SubscriberID)
	}
	return r.Key()
}

func validDate(year, month, day int) bool {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return d.Year() == year && int(d.Month()) == month && d.Day() == day
}
