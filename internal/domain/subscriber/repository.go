package subscriber

import (
	"context"
	"errors"
)

// Repository defines the operations for persisting and retrieving Subscribers.
// List methods page by ascending ID with a "greater than afterID" cursor.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Subscriber, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Subscriber, error)
	Register(ctx context.Context, telegramID int64, name, locale string) (*Subscriber, error)
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*Subscriber, error)
	ListWithBirthdayOnAfter(ctx context.Context, day, month int, afterID int64, limit int) ([]*Subscriber, error)
	SetBirthday(ctx context.Context, id int64, b Birthday) error
	ClearBirthday(ctx context.Context, id int64) error
	SetLocale(ctx context.Context, id int64, locale string) error
}

// ErrNotFound is returned by repository lookups that match no subscriber.
var ErrNotFound = errors.New("subscriber not found")
