package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"holiday_notification_bot/internal/app"
	"holiday_notification_bot/internal/domain/delivery"
	"holiday_notification_bot/internal/domain/event"
	"holiday_notification_bot/internal/domain/subscriber"
	"holiday_notification_bot/internal/infra/config"
	"holiday_notification_bot/internal/infra/locale"

	"gopkg.in/telebot.v3"
)

// fakeContext implements the telebot.Context methods the handlers use.
// Calling anything else panics on the nil embedded interface.
type fakeContext struct {
	telebot.Context
	sender    *telebot.User
	args      []string
	callback  *telebot.Callback
	sent      []string
	sendOpts  [][]interface{}
	responded int
}

func newFakeContext(id int64, args ...string) *fakeContext {
	return &fakeContext{sender: &telebot.User{ID: id, FirstName: "Aigerim"}, args: args}
}

func (f *fakeContext) Sender() *telebot.User { return f.sender }
func (f *fakeContext) Args() []string { return f.args }
func (f *fakeContext) Callback() *telebot.Callback { return f.callback }

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	text, _ := what.(string)
	f.sent = append(f.sent, text)
	f.sendOpts = append(f.sendOpts, opts)
	return nil
}

func (f *fakeContext) Respond(_ ...*telebot.CallbackResponse) error {
	f.responded++
	return nil
}

func (f *fakeContext) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

// memSubscriberRepo is an in-memory subscriber.Repository.
type memSubscriberRepo struct {
	mu     sync.Mutex
	byTG   map[int64]*subscriber.Subscriber
	nextID int64
	err    error
}

func newMemSubscriberRepo() *memSubscriberRepo {
	return &memSubscriberRepo{byTG: map[int64]*subscriber.Subscriber{}}
}

func (m *memSubscriberRepo) find(id int64) *subscriber.Subscriber {
	for _, s := range m.byTG {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *memSubscriberRepo) GetByID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.find(id); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, subscriber.ErrNotFound
}

func (m *memSubscriberRepo) GetByTelegramID(_ context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.byTG[telegramID]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriberRepo) Register(_ context.Context, telegramID int64, name, loc string) (*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.byTG[telegramID]
	if !ok {
		m.nextID++
		s = &subscriber.Subscriber{ID: m.nextID, TelegramID: telegramID, Locale: loc}
		m.byTG[telegramID] = s
	}
	s.Name = name
	cp := *s
	return &cp, nil
}

func (m *memSubscriberRepo) ListAfter(context.Context, int64, int) ([]*subscriber.Subscriber, error) {
	return nil, nil
}

func (m *memSubscriberRepo) ListWithBirthdayOnAfter(context.Context, int, int, int64, int) ([]*subscriber.Subscriber, error) {
	return nil, nil
}

func (m *memSubscriberRepo) SetBirthday(_ context.Context, id int64, b subscriber.Birthday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.find(id)
	if s == nil {
		return subscriber.ErrNotFound
	}
	s.Birthday = &b
	return nil
}

func (m *memSubscriberRepo) ClearBirthday(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.find(id)
	if s == nil {
		return subscriber.ErrNotFound
	}
	s.Birthday = nil
	return nil
}

func (m *memSubscriberRepo) SetLocale(_ context.Context, id int64, loc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.find(id)
	if s == nil {
		return subscriber.ErrNotFound
	}
	s.Locale = loc
	return nil
}

// memHolidays is an in-memory event.Repository.
type memHolidays struct {
	events []event.Event
	err    error
}

func (c *memHolidays) DueEventsToday(_ context.Context, today time.Time) ([]event.Event, error) {
	return event.DueOn(c.events, today), c.err
}

func (c *memHolidays) ListAll(context.Context) ([]event.Event, error) {
	if c.err != nil {
		return nil, c.err
	}
	return append([]event.Event(nil), c.events...), nil
}

func (c *memHolidays) Upsert(_ context.Context, ev *event.Event) (bool, error) {
	for _, e := range c.events {
		if e.Day == ev.Day && e.Month == ev.Month && e.Name == ev.Name {
			ev.ID = e.ID
			return false, nil
		}
	}
	ev.ID = int64(len(c.events) + 1)
	c.events = append(c.events, *ev)
	return true, nil
}

// nopLedger records nothing.
type nopLedger struct{ cleared int }

func (*nopLedger) HasBeenNotified(context.Context, int64, event.Ref, time.Time) (bool, error) {
	return false, nil
}
func (*nopLedger) NotifiedAmong(context.Context, string, time.Time, []int64) (map[int64]bool, error) {
	return map[int64]bool{}, nil
}
func (*nopLedger) RecordDelivery(context.Context, int64, event.Ref, time.Time) error { return nil }
func (*nopLedger) RecordDeliveries(context.Context, string, time.Time, []delivery.Delivered) error {
	return nil
}
func (l *nopLedger) ClearDeliveries(context.Context, int64, event.Ref) (int64, error) {
	l.cleared++
	return 0, nil
}
func (*nopLedger) PurgeRetractedBirthdays(context.Context) (int64, error) { return 0, nil }

const testAdminID int64 = 1001

type handlerFixture struct {
	repo     *memSubscriberRepo
	holidays *memHolidays
	ledger   *nopLedger
	commands *commandHandlers
	admin    *adminHandlers
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	messages, err := locale.Load("ru")
	if err != nil {
		t.Fatalf("locale.Load: %v", err)
	}
	loc := time.FixedZone("ALMT", 5*60*60)
	cfg := &config.AppConfig{SendHourStart: 9, SendHourEnd: 21, Location: loc, AdminTelegramID: testAdminID}

	f := &handlerFixture{repo: newMemSubscriberRepo(), holidays: &memHolidays{}, ledger: &nopLedger{}}
	subs := app.NewSubscriberService(f.repo, f.holidays, f.ledger, messages.Locales(), "ru", loc)
	adminSvc := app.NewAdminService(app.NewHolidayService(f.holidays, loc, discardLogger()), testAdminID)

	f.commands = newCommandHandlers(context.Background(), cfg, subs, adminSvc, messages, discardLogger())
	f.admin = &adminHandlers{ctx: context.Background(), admin: adminSvc, logger: discardLogger(), now: time.Now}
	return f
}
