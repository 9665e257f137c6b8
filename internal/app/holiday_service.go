package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"holiday_notification_bot/internal/domain/event"

	"github.com/sirupsen/logrus"
)

var ErrEmptyHolidayName = errors.New("holiday name is empty")
var ErrInvalidHolidayDate = errors.New("holiday date does not exist")

// HolidayService maintains the fixed event catalog.
type HolidayService struct {
	repo     event.Repository
	location *time.Location
	logger   *logrus.Entry
}

func NewHolidayService(repo event.Repository, loc *time.Location, logger *logrus.Entry) *HolidayService {
	if loc == nil {
		loc = time.UTC
	}
	return &HolidayService{repo: repo, location: loc, logger: logger}
}

// Seed stores the given holidays, skipping existing ones. Invalid dates are
// logged and skipped. It returns the number of holidays created.
func (s *HolidayService) Seed(ctx context.Context, holidays []event.Event) (int, error) {
	created := 0
	for i := range holidays {
		h := holidays[i]
		h.Kind = event.KindFixed
		if !h.Valid() {
			s.logger.WithFields(logrus.Fields{"name": h.Name, "day": h.Day, "month": h.Month}).Warn("Skipping holiday with impossible date")
			continue
		}
		ok, err := s.repo.Upsert(ctx, &h)
		if err != nil {
			return created, fmt.Errorf("failed to seed holiday %q: %w", h.Name, err)
		}
		if ok {
			created++
		}
	}
	s.logger.WithField("created", created).Info("Holidays seeded")
	return created, nil
}

// Add stores a holiday on day.month. It reports false when the holiday already exists.
func (s *HolidayService) Add(ctx context.Context, day, month int, name string) (event.Event, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return event.Event{}, false, ErrEmptyHolidayName
	}
	ev := event.Event{Kind: event.KindFixed, Day: day, Month: month, Name: name}
	if !ev.Valid() {
		return event.Event{}, false, fmt.Errorf("%w: %02d.%02d", ErrInvalidHolidayDate, day, month)
	}
	created, err := s.repo.Upsert(ctx, &ev)
	if err != nil {
		return event.Event{}, false, fmt.Errorf("failed to add holiday %q: %w", name, err)
	}
	if created {
		s.logger.WithFields(logrus.Fields{"holiday_id": ev.ID, "name": name, "day": day, "month": month}).Info("Holiday added")
	}
	return ev, created, nil
}

// List returns every stored holiday.
func (s *HolidayService) List(ctx context.Context) ([]event.Event, error) {
	events, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return events, nil
}

// AddToday stores a holiday named name on today's date in the configured
// timezone. It reports false when the holiday already exists.
func (s *HolidayService) AddToday(ctx context.Context, name string, now time.Time) (event.Event, bool, error) {
	today := LocalDay(now, s.location)
	return s.Add(ctx, today.Day(), int(today.Month()), name)
}
