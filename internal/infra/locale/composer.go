package locale

import "holiday_notification_bot/internal/domain/event"

// Composer renders notification texts. It has no side effects.
type Composer struct {
	catalog *Catalog
}

func NewComposer(c *Catalog) *Composer {
	return &Composer{catalog: c}
}

// Render returns "🎉 <name>!" for holidays and the birthday greeting for
// the birthday event, both in the subscriber's locale.
func (c *Composer) Render(ev event.Event, locale string) string {
	if ev.Kind == event.KindBirthday {
		return c.catalog.T("birthday_greeting", locale)
	}
	name := ev.Names[locale]
	if name == "" {
		name = ev.NameFor(c.catalog.defaultLocale)
	}
	return c.catalog.T("holiday_greeting", locale, name)
}
