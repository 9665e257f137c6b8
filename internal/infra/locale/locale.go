// Package locale holds the bot's translated texts and the holiday seed catalogue.
package locale

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"holiday_notification_bot/internal/domain/event"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var messagesYAML []byte

//go:embed holidays.yaml
var holidaysYAML []byte

// Catalog resolves message keys per locale. Missing keys fall back to the
// default locale, then to the key itself.
type Catalog struct {
	messages      map[string]map[string]string
	defaultLocale string
}

// Load parses the embedded message catalogue.
func Load(defaultLocale string) (*Catalog, error) {
	return Parse(messagesYAML, defaultLocale)
}

// Parse builds a Catalog from YAML shaped as locale -> key -> text.
func Parse(data []byte, defaultLocale string) (*Catalog, error) {
	messages := map[string]map[string]string{}
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	defaultLocale = strings.ToLower(defaultLocale)
	if _, ok := messages[defaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q has no messages", defaultLocale)
	}
	return &Catalog{messages: messages, defaultLocale: defaultLocale}, nil
}

func (c *Catalog) DefaultLocale() string {
	return c.defaultLocale
}

// Locales returns the supported locale tags in sorted order.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.messages))
	for l := range c.messages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// T returns the text for key in locale, formatted with args when given.
func (c *Catalog) T(key, locale string, args ...any) string {
	text, ok := c.messages[locale][key]
	if !ok {
		text, ok = c.messages[c.defaultLocale][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

type holidaySeed struct {
	DefaultLocale string `yaml:"default_locale"`
	Holidays      []struct {
		Day   int               `yaml:"day"`
		Month int               `yaml:"month"`
		Names map[string]string `yaml:"names"`
	} `yaml:"holidays"`
}

// Holidays returns the embedded seed catalogue.
func Holidays() ([]event.Event, error) {
	return ParseHolidays(holidaysYAML)
}

// ParseHolidays decodes a holiday seed document. Entries without a name in
// the document's default locale are rejected.
func ParseHolidays(data []byte) ([]event.Event, error) {
	var seed holidaySeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse holidays: %w", err)
	}
	if seed.DefaultLocale == "" {
		seed.DefaultLocale = "ru"
	}

	events := make([]event.Event, 0, len(seed.Holidays))
	for i, h := range seed.Holidays {
		name := h.Names[seed.DefaultLocale]
		if name == "" {
			return nil, fmt.Errorf("holiday #%d (%02d.%02d) has no %s name", i+1, h.Day, h.Month, seed.DefaultLocale)
		}
		events = append(events, event.Event{
			Kind:  event.KindFixed,
			Day:   h.Day,
			Month: h.Month,
			Name:  name,
			Names: h.Names,
		})
	}
	return events, nil
}
