package database

import (
	"context"
	"database/sql"
	"fmt"

	"holiday_notification_bot/internal/domain/subscriber"
)

// ErrSubscriberNotFound aliases the domain sentinel so callers can match either.
var ErrSubscriberNotFound = subscriber.ErrNotFound

const subscriberColumns = `id, telegram_id, name, birth_day, birth_month, birth_year, locale, created_at, updated_at`

type PostgresSubscriberRepository struct {
	db *sql.DB
}

func NewPostgresSubscriberRepository(db *sql.DB) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*subscriber.Subscriber, error) {
	s := &subscriber.Subscriber{}
	var day, month, year sql.NullInt32
	if err := row.Scan(&s.ID, &s.TelegramID, &s.Name, &day, &month, &year, &s.Locale, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if day.Valid && month.Valid {
		s.Birthday = &subscriber.Birthday{Day: int(day.Int32), Month: int(month.Int32), Year: int(year.Int32)}
	}
	return s, nil
}

func scanSubscribers(rows *sql.Rows) ([]*subscriber.Subscriber, error) {
	subs := make([]*subscriber.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning subscriber row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber rows: %w", err)
	}
	return subs, nil
}

func (r *PostgresSubscriberRepository) GetByID(ctx context.Context, id int64) (*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id = $1`
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("error getting subscriber by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresSubscriberRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE telegram_id = $1`
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("error getting subscriber by Telegram ID: %w", err)
	}
	return s, nil
}

// Register inserts the subscriber or refreshes the display name of an
// existing one. The stored locale and birthday are left untouched.
func (r *PostgresSubscriberRepository) Register(ctx context.Context, telegramID int64, name, locale string) (*subscriber.Subscriber, error) {
	query := `INSERT INTO subscribers (telegram_id, name, locale)
               VALUES ($1, $2, $3)
               ON CONFLICT (telegram_id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
               RETURNING ` + subscriberColumns
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, telegramID, name, locale))
	if err != nil {
		return nil, fmt.Errorf("error registering subscriber: %w", err)
	}
	return s, nil
}

// ListAfter returns up to limit subscribers with id > afterID in id order.
func (r *PostgresSubscriberRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers
               WHERE id > $1 ORDER BY id LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing subscribers: %w", err)
	}
	defer rows.Close()
	return scanSubscribers(rows)
}

// ListWithBirthdayOnAfter is ListAfter restricted to birthdays on (day, month).
func (r *PostgresSubscriberRepository) ListWithBirthdayOnAfter(ctx context.Context, day, month int, afterID int64, limit int) ([]*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers
               WHERE birth_day = $1 AND birth_month = $2 AND id > $3
               ORDER BY id LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, day, month, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing subscribers with birthday on %02d.%02d: %w", day, month, err)
	}
	defer rows.Close()
	return scanSubscribers(rows)
}

func (r *PostgresSubscriberRepository) SetBirthday(ctx context.Context, id int64, b subscriber.Birthday) error {
	var year sql.NullInt32
	if b.Year != 0 {
		year = sql.NullInt32{Int32: int32(b.Year), Valid: true}
	}
	query := `UPDATE subscribers
               SET birth_day = $1, birth_month = $2, birth_year = $3, updated_at = NOW()
               WHERE id = $4`
	return r.execOne(ctx, "setting birthday", query, b.Day, b.Month, year, id)
}

func (r *PostgresSubscriberRepository) ClearBirthday(ctx context.Context, id int64) error {
	query := `UPDATE subscribers
               SET birth_day = NULL, birth_month = NULL, birth_year = NULL, updated_at = NOW()
               WHERE id = $1`
	return r.execOne(ctx, "clearing birthday", query, id)
}

func (r *PostgresSubscriberRepository) SetLocale(ctx context.Context, id int64, locale string) error {
	query := `UPDATE subscribers SET locale = $1, updated_at = NOW() WHERE id = $2`
	return r.execOne(ctx, "setting locale", query, locale, id)
}

// execOne runs an update that must hit exactly one subscriber row.
func (r *PostgresSubscriberRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error %s: %w", op, err)
	}
	if n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}
