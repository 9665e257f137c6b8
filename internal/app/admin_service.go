package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"holiday_notification_bot/internal/domain/event"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrHolidayAlreadyExists = fmt.Errorf("holiday with this date and name already exists")

// AdminService guards catalog changes behind the configured admin account.
// An adminTelegramID of 0 disables every admin operation.
type AdminService struct {
	holidays        *HolidayService
	adminTelegramID int64
}

func NewAdminService(hs *HolidayService, adminID int64) *AdminService {
	return &AdminService{
		holidays:        hs,
		adminTelegramID: adminID,
	}
}

// IsAdmin reports whether telegramID may run admin commands.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminTelegramID != 0 && telegramID == s.adminTelegramID
}

// AddTodayHoliday adds a holiday on today's date in the configured timezone.
func (s *AdminService) AddTodayHoliday(ctx context.Context, performingAdminID int64, name string, now time.Time) (event.Event, error) {
	if !s.IsAdmin(performingAdminID) {
		return event.Event{}, ErrAdminNotAuthorized
	}
	ev, created, err := s.holidays.AddToday(ctx, name, now)
	if err != nil {
		return event.Event{}, err
	}
	if !created {
		return ev, ErrHolidayAlreadyExists
	}
	return ev, nil
}

// AddHoliday adds a holiday on the given day and month.
func (s *AdminService) AddHoliday(ctx context.Context, performingAdminID int64, day, month int, name string) (event.Event, error) {
	if !s.IsAdmin(performingAdminID) {
		return event.Event{}, ErrAdminNotAuthorized
	}
	ev, created, err := s.holidays.Add(ctx, day, month, name)
	if err != nil {
		return event.Event{}, err
	}
	if !created {
		return ev, ErrHolidayAlreadyExists
	}
	return ev, nil
}

// ListHolidays returns the whole catalog ordered by calendar date.
func (s *AdminService) ListHolidays(ctx context.Context, performingAdminID int64) ([]event.Event, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	events, err := s.holidays.List(ctx)
	if err != nil {
		return nil, err
	}
	sortByCalendar(events)
	return events, nil
}

func sortByCalendar(events []event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.ID < b.ID
	})
}
