package subscriber

import (
	"fmt"
	"time"
)

// Birthday is a stored birth date. Only day and month drive recurrence;
// Year is kept when the subscriber supplied one (0 otherwise).
type Birthday struct {
	Day   int
	Month int
	Year  int
}

// MatchesDay reports whether the birthday falls on the given calendar day.
func (b Birthday) MatchesDay(today time.Time) bool {
	return b.Day == today.Day() && b.Month == int(today.Month())
}

// Date returns the birthday as a date, using 2000 when no year was given.
func (b Birthday) Date() time.Time {
	y := b.Year
	if y == 0 {
		y = 2000
	}
	return time.Date(y, time.Month(b.Month), b.Day, 0, 0, 0, 0, time.UTC)
}

func (b Birthday) String() string {
	return fmt.Sprintf("%02d.%02d", b.Day, b.Month)
}

// Subscriber is a chat user receiving notifications.
type Subscriber struct {
	ID         int64
	TelegramID int64
	Name       string
	Birthday   *Birthday // nil when not set
	Locale     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
