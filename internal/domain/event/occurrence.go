package event

import (
	"sort"
	"time"
)

// maxYearsAhead bounds the forward search; Feb 29 needs at most 8 years
// (e.g. 2096 -> 2104, 2100 is not a leap year).
const maxYearsAhead = 8

// NextOccurrence returns the next calendar date of ev on or after today,
// in today's location. Birthday occurrences are always today because the
// dispatcher only evaluates them on matching days. A date that does not
// exist in a candidate year is skipped forward to the next year in which
// it exists. ok is false only for events whose date can never occur.
func NextOccurrence(ev Event, today time.Time) (time.Time, bool) {
	loc := today.Location()
	if ev.Kind == KindBirthday {
		return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc), true
	}
	if !ev.Valid() {
		return time.Time{}, false
	}

	year := today.Year()
	if int(today.Month()) > ev.Month || (int(today.Month()) == ev.Month && today.Day() > ev.Day) {
		year++
	}
	for i := 0; i <= maxYearsAhead; i++ {
		if validDate(year+i, ev.Month, ev.Day) {
			return time.Date(year+i, time.Month(ev.Month), ev.Day, 0, 0, 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

// DaysUntil returns the whole number of days from today to the next occurrence.
func DaysUntil(ev Event, today time.Time) (int, bool) {
	next, ok := NextOccurrence(ev, today)
	if !ok {
		return 0, false
	}
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24), true
}

// Upcoming pairs an event with its next occurrence.
type Upcoming struct {
	Event     Event
	Date      time.Time
	DaysUntil int
}

// NextOccurrences returns up to limit upcoming events ordered by date.
// Events that can never occur are dropped.
func NextOccurrences(events []Event, today time.Time, limit int) []Upcoming {
	out := make([]Upcoming, 0, len(events))
	for _, e := range events {
		next, ok := NextOccurrence(e, today)
		if !ok {
			continue
		}
		days, _ := DaysUntil(e, today)
		out = append(out, Upcoming{Event: e, Date: next, DaysUntil: days})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].Event.ID < out[j].Event.ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
