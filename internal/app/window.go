package app

import "time"

// IsWithinSendWindow reports whether startHour <= local hour < endHour in loc.
// A window with startHour >= endHour is always closed.
func IsWithinSendWindow(now time.Time, startHour, endHour int, loc *time.Location) bool {
	if startHour >= endHour {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	h := now.In(loc).Hour()
	return startHour <= h && h < endHour
}

// LocalDay truncates now to midnight of its calendar day in loc.
func LocalDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := now.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}
