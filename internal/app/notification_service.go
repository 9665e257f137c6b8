// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"holiday_notification_bot/internal/domain/delivery"
	"holiday_notification_bot/internal/domain/event"
	"holiday_notification_bot/internal/domain/subscriber"

	"github.com/sirupsen/logrus"
)

// NotificationService defines the operations run by the scheduler on each tick.
type NotificationService interface {
	// RunTick gates on the send window, then dispatches every event due
	// today one after another. Failures of one event never stop the others;
	// they are joined into the returned error.
	RunTick(ctx context.Context, now time.Time) (*TickReport, error)
}

// SendWindow is the local-time hour range [StartHour, EndHour) in Location.
type SendWindow struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// TickReport summarizes one scheduler run.
type TickReport struct {
	Skipped   bool // outside the send window
	Day       time.Time
	Reports   []*DeliveryReport
	Purged    int64
	EventErrs map[string]error
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	catalog        event.Catalog
	subscriberRepo subscriber.Repository
	ledger         delivery.Ledger
	dispatcher     *Dispatcher
	window         SendWindow
	logger         *logrus.Entry
}

func NewNotificationServiceImpl(
	catalog event.Catalog,
	sr subscriber.Repository,
	ledger delivery.Ledger,
	dispatcher *Dispatcher,
	window SendWindow,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	if window.Location == nil {
		window.Location = time.UTC
	}
	return &NotificationServiceImpl{
		catalog:        catalog,
		subscriberRepo: sr,
		ledger:         ledger,
		dispatcher:     dispatcher,
		window:         window,
		logger:         logger,
	}
}

// RunTick runs one pass of the delivery engine.
func (s *NotificationServiceImpl) RunTick(ctx context.Context, now time.Time) (*TickReport, error) {
	if !IsWithinSendWindow(now, s.window.StartHour, s.window.EndHour, s.window.Location) {
		s.logger.WithField("local_time", now.In(s.window.Location).Format("15:04")).Debug("Outside of send window, skipping tick")
		return &TickReport{Skipped: true}, nil
	}

	today := LocalDay(now, s.window.Location)
	report := &TickReport{Day: today, EventErrs: map[string]error{}}
	log := s.logger.WithField("day", today.Format("2006-01-02"))

	// Retractions that bypassed ClearBirthday.
	purged, err := s.ledger.PurgeRetractedBirthdays(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to purge birthday deliveries of retracted birthdays")
	} else if purged > 0 {
		report.Purged = purged
		log.WithField("purged", purged).Info("Purged birthday deliveries of retracted birthdays")
	}

	var errs []error

	events, err := s.catalog.DueEventsToday(ctx, today)
	if err != nil {
		log.WithError(err).Error("Failed to load due events")
		errs = append(errs, fmt.Errorf("failed to load due events: %w", err))
	}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return report, errors.Join(errs...)
		}
		s.dispatch(ctx, report, ev, today, s.allSubscribers, &errs)
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
		return report, errors.Join(errs...)
	}
	s.dispatch(ctx, report, event.Birthday(), today, s.birthdaysOn(today), &errs)

	return report, errors.Join(errs...)
}

func (s *NotificationServiceImpl) dispatch(ctx context.Context, report *TickReport, ev event.Event, today time.Time, pager Pager, errs *[]error) {
	r, err := s.dispatcher.Dispatch(ctx, ev, today, pager)
	if r != nil {
		report.Reports = append(report.Reports, r)
	}
	if err != nil {
		s.logger.WithError(err).WithField("event_key", ev.Key()).Error("Dispatch failed, will retry next tick")
		report.EventErrs[ev.Key()] = err
		*errs = append(*errs, fmt.Errorf("dispatch %s: %w", ev.Key(), err))
	}
}

func (s *NotificationServiceImpl) allSubscribers(ctx context.Context, afterID int64, limit int) ([]*subscriber.Subscriber, error) {
	return s.subscriberRepo.ListAfter(ctx, afterID, limit)
}

func (s *NotificationServiceImpl) birthdaysOn(today time.Time) Pager {
	return func(ctx context.Context, afterID int64, limit int) ([]*subscriber.Subscriber, error) {
		return s.subscriberRepo.ListWithBirthdayOnAfter(ctx, today.Day(), int(today.Month()), afterID, limit)
	}
}
