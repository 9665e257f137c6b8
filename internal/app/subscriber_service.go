package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"holiday_notification_bot/internal/domain/delivery"
	"holiday_notification_bot/internal/domain/event"
	"holiday_notification_bot/internal/domain/subscriber"
)

// Custom application-level errors for subscriber service
var ErrInvalidBirthday = errors.New("invalid birthday")
var ErrUnsupportedLocale = errors.New("unsupported locale")
var ErrBirthdayNotSet = errors.New("birthday is not set")

var birthdaySeparators = regexp.MustCompile(`[/.\-]`)

// SubscriberService backs the chat commands that read and change subscriber data.
type SubscriberService struct {
	subscriberRepo subscriber.Repository
	catalog        event.Catalog
	ledger         delivery.Ledger
	locales        []string
	defaultLocale  string
	location       *time.Location
	now            func() time.Time
}

func NewSubscriberService(
	sr subscriber.Repository,
	catalog event.Catalog,
	ledger delivery.Ledger,
	locales []string,
	defaultLocale string,
	loc *time.Location,
) *SubscriberService {
	if loc == nil {
		loc = time.UTC
	}
	return &SubscriberService{
		subscriberRepo: sr,
		catalog:        catalog,
		ledger:         ledger,
		locales:        locales,
		defaultLocale:  defaultLocale,
		location:       loc,
		now:            time.Now,
	}
}

// Register returns the subscriber for telegramID, creating it on first contact.
func (s *SubscriberService) Register(ctx context.Context, telegramID int64, name string) (*subscriber.Subscriber, error) {
	sub, err := s.subscriberRepo.Register(ctx, telegramID, name, s.defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("failed to register subscriber: %w", err)
	}
	return sub, nil
}

// Subscriber returns the stored subscriber for telegramID.
func (s *SubscriberService) Subscriber(ctx context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	return s.subscriberRepo.GetByTelegramID(ctx, telegramID)
}

// SetBirthday parses raw ("28-08", "28.08.2000", "28/08/05") and stores it.
func (s *SubscriberService) SetBirthday(ctx context.Context, telegramID int64, name, raw string) (subscriber.Birthday, error) {
	b, err := ParseBirthday(raw, s.now().In(s.location))
	if err != nil {
		return subscriber.Birthday{}, err
	}
	sub, err := s.Register(ctx, telegramID, name)
	if err != nil {
		return subscriber.Birthday{}, err
	}
	if err := s.subscriberRepo.SetBirthday(ctx, sub.ID, b); err != nil {
		return subscriber.Birthday{}, fmt.Errorf("failed to store birthday: %w", err)
	}
	return b, nil
}

// Birthday returns the stored birthday or ErrBirthdayNotSet.
func (s *SubscriberService) Birthday(ctx context.Context, telegramID int64) (subscriber.Birthday, error) {
	sub, err := s.subscriberRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return subscriber.Birthday{}, err
	}
	if sub.Birthday == nil {
		return subscriber.Birthday{}, ErrBirthdayNotSet
	}
	return *sub.Birthday, nil
}

// ClearBirthday removes the birthday and its delivery records, so that a
// birthday set again later is notifiable on its next occurrence.
func (s *SubscriberService) ClearBirthday(ctx context.Context, telegramID int64) error {
	sub, err := s.subscriberRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	if sub.Birthday == nil {
		return ErrBirthdayNotSet
	}
	if err := s.subscriberRepo.ClearBirthday(ctx, sub.ID); err != nil {
		return fmt.Errorf("failed to clear birthday: %w", err)
	}
	if _, err := s.ledger.ClearDeliveries(ctx, sub.ID, event.BirthdayRef(sub.ID)); err != nil {
		return fmt.Errorf("failed to clear birthday deliveries: %w", err)
	}
	return nil
}

// SetLocale changes the subscriber's language.
func (s *SubscriberService) SetLocale(ctx context.Context, telegramID int64, name, locale string) error {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if !s.supports(locale) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
	}
	sub, err := s.Register(ctx, telegramID, name)
	if err != nil {
		return err
	}
	return s.subscriberRepo.SetLocale(ctx, sub.ID, locale)
}

// Locales lists the supported locale tags.
func (s *SubscriberService) Locales() []string {
	return s.locales
}

// Supports reports whether locale is one of the configured locales.
func (s *SubscriberService) Supports(locale string) bool {
	return s.supports(strings.ToLower(locale))
}

// DefaultLocale is the locale given to new subscribers.
func (s *SubscriberService) DefaultLocale() string {
	return s.defaultLocale
}

// UpcomingHolidays returns the next limit holidays counted from now.
func (s *SubscriberService) UpcomingHolidays(ctx context.Context, now time.Time, limit int) ([]event.Upcoming, error) {
	events, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return event.NextOccurrences(events, now.In(s.location), limit), nil
}

func (s *SubscriberService) supports(locale string) bool {
	for _, l := range s.locales {
		if l == locale {
			return true
		}
	}
	return false
}

// ParseBirthday accepts DD-MM, DD-MM-YY and DD-MM-YYYY with '.', '-' or '/'
// separators. A two-digit year is read as 20YY unless that is later than
// now, then as 19YY. Dates after now are rejected.
func ParseBirthday(raw string, now time.Time) (subscriber.Birthday, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return subscriber.Birthday{}, fmt.Errorf("%w: empty date", ErrInvalidBirthday)
	}
	var parts []string
	for _, p := range birthdaySeparators.Split(raw, -1) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 2 && len(parts) != 3 {
		return subscriber.Birthday{}, fmt.Errorf("%w: expected DD-MM or DD-MM-YYYY", ErrInvalidBirthday)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return subscriber.Birthday{}, fmt.Errorf("%w: %q is not a number", ErrInvalidBirthday, p)
		}
		nums[i] = n
	}

	b := subscriber.Birthday{Day: nums[0], Month: nums[1]}
	checkYear := 2000 // leap year, so 29.02 without a year is accepted
	if len(parts) == 3 {
		b.Year = nums[2]
		if len(parts[2]) == 2 {
			b.Year += 2000
			if b.Year > now.Year() {
				b.Year -= 100
			}
		}
		if b.Year < 1900 || b.Year > now.Year() {
			return subscriber.Birthday{}, fmt.Errorf("%w: year %d out of range", ErrInvalidBirthday, b.Year)
		}
		checkYear = b.Year
	}

	d := time.Date(checkYear, time.Month(b.Month), b.Day, 0, 0, 0, 0, time.UTC)
	if b.Month < 1 || b.Month > 12 || d.Day() != b.Day || int(d.Month()) != b.Month {
		return subscriber.Birthday{}, fmt.Errorf("%w: %s does not exist", ErrInvalidBirthday, raw)
	}
	if b.Year != 0 {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if d.After(today) {
			return subscriber.Birthday{}, fmt.Errorf("%w: %s is in the future", ErrInvalidBirthday, raw)
		}
	}
	return b, nil
}
