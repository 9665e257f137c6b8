package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"holiday_notification_bot/internal/domain/event"

	"github.com/lib/pq" // For pq.Array
)

type PostgresHolidayRepository struct {
	db *sql.DB
}

func NewPostgresHolidayRepository(db *sql.DB) *PostgresHolidayRepository {
	return &PostgresHolidayRepository{db: db}
}

const holidaySelect = `SELECT h.id, h.name, h.day, h.month, t.locale, t.name
               FROM holidays h
               LEFT JOIN holiday_translations t ON t.holiday_id = h.id`

// DueEventsToday returns the holidays falling on today's day and month.
// Rows with dates that can never occur are dropped.
func (r *PostgresHolidayRepository) DueEventsToday(ctx context.Context, today time.Time) ([]event.Event, error) {
	events, err := r.query(ctx, holidaySelect+` WHERE h.day = $1 AND h.month = $2 ORDER BY h.id`, today.Day(), int(today.Month()))
	if err != nil {
		return nil, fmt.Errorf("error loading holidays due on %s: %w", dateOnly(today), err)
	}
	return event.DueOn(events, today), nil
}

func (r *PostgresHolidayRepository) ListAll(ctx context.Context) ([]event.Event, error) {
	events, err := r.query(ctx, holidaySelect+` ORDER BY h.id`)
	if err != nil {
		return nil, fmt.Errorf("error listing holidays: %w", err)
	}
	return events, nil
}

// query folds the holiday x translation join into one Event per holiday,
// keeping the order of first appearance.
func (r *PostgresHolidayRepository) query(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var order []int64
	byID := map[int64]*event.Event{}
	for rows.Next() {
		var (
			id                int64
			name              string
			day, month        int
			locale, localized sql.NullString
		)
		if err := rows.Scan(&id, &name, &day, &month, &locale, &localized); err != nil {
			return nil, fmt.Errorf("error scanning holiday row: %w", err)
		}
		ev, ok := byID[id]
		if !ok {
			ev = &event.Event{ID: id, Kind: event.KindFixed, Day: day, Month: month, Name: name, Names: map[string]string{}}
			byID[id] = ev
			order = append(order, id)
		}
		if locale.Valid && localized.Valid {
			ev.Names[locale.String] = localized.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holiday rows: %w", err)
	}

	events := make([]event.Event, 0, len(order))
	for _, id := range order {
		events = append(events, *byID[id])
	}
	return events, nil
}

// Upsert stores ev keyed by (day, month, name) and replaces its translations.
// It sets ev.ID and reports whether the holiday row was newly created.
func (r *PostgresHolidayRepository) Upsert(ctx context.Context, ev *event.Event) (bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for holiday upsert: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	created := true
	err = txn.QueryRowContext(ctx, `INSERT INTO holidays (name, day, month)
               VALUES ($1, $2, $3)
               ON CONFLICT ON CONSTRAINT holidays_day_month_name_key DO NOTHING
               RETURNING id`, ev.Name, ev.Day, ev.Month).Scan(&ev.ID)
	if err == sql.ErrNoRows {
		created = false
		err = txn.QueryRowContext(ctx, `SELECT id FROM holidays WHERE day = $1 AND month = $2 AND name = $3`,
			ev.Day, ev.Month, ev.Name).Scan(&ev.ID)
	}
	if err != nil {
		return false, fmt.Errorf("error upserting holiday %q: %w", ev.Name, err)
	}

	if len(ev.Names) > 0 {
		locales := make([]string, 0, len(ev.Names))
		for l := range ev.Names {
			locales = append(locales, l)
		}
		sort.Strings(locales)
		names := make([]string, len(locales))
		for i, l := range locales {
			names[i] = ev.Names[l]
		}
		_, err = txn.ExecContext(ctx, `INSERT INTO holiday_translations (holiday_id, locale, name)
               SELECT $1, t.locale, t.name FROM unnest($2::text[], $3::text[]) AS t(locale, name)
               ON CONFLICT (holiday_id, locale) DO UPDATE SET name = EXCLUDED.name`,
			ev.ID, pq.Array(locales), pq.Array(names))
		if err != nil {
			return false, fmt.Errorf("error storing translations of holiday %q: %w", ev.Name, err)
		}
	}

	if err := txn.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit holiday upsert: %w", err)
	}
	return created, nil
}
