package event

import "context"

// Repository extends the Catalog with the write operations used by seeding.
type Repository interface {
	Catalog
	// Upsert stores ev keyed by (day, month, name), filling ev.ID.
	// created is false when the holiday already existed; translations
	// are refreshed either way.
	Upsert(ctx context.Context, ev *Event) (created bool, err error)
}
