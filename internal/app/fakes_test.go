package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"holiday_notification_bot/internal/domain/delivery"
	"holiday_notification_bot/internal/domain/event"
	"holiday_notification_bot/internal/domain/subscriber"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// memSubscribers is an in-memory subscriber.Repository.
type memSubscribers struct {
	mu      sync.Mutex
	subs    map[int64]*subscriber.Subscriber
	nextID  int64
	listErr error
	// afterList runs after every List* call with the 1-based call number.
	afterList func(call int)
	calls     int
}

func newMemSubscribers(subs ...*subscriber.Subscriber) *memSubscribers {
	m := &memSubscribers{subs: map[int64]*subscriber.Subscriber{}}
	for _, s := range subs {
		m.put(s)
	}
	return m
}

func (m *memSubscribers) put(s *subscriber.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.TelegramID == 0 {
		s.TelegramID = 1000 + s.ID
	}
	m.subs[s.ID] = s
	if s.ID > m.nextID {
		m.nextID = s.ID
	}
}

func (m *memSubscribers) GetByID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscribers) GetByTelegramID(_ context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.TelegramID == telegramID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, subscriber.ErrNotFound
}

func (m *memSubscribers) Register(ctx context.Context, telegramID int64, name, locale string) (*subscriber.Subscriber, error) {
	if s, err := m.GetByTelegramID(ctx, telegramID); err == nil {
		return s, nil
	}
	m.mu.Lock()
	m.nextID++
	s := &subscriber.Subscriber{ID: m.nextID, TelegramID: telegramID, Name: name, Locale: locale}
	m.subs[s.ID] = s
	m.mu.Unlock()
	cp := *s
	return &cp, nil
}

func (m *memSubscribers) list(afterID int64, limit int, keep func(*subscriber.Subscriber) bool) ([]*subscriber.Subscriber, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	if m.listErr != nil {
		err := m.listErr
		m.mu.Unlock()
		return nil, err
	}
	var out []*subscriber.Subscriber
	for _, s := range m.subs {
		if s.ID > afterID && keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	if m.afterList != nil {
		m.afterList(call)
	}
	return out, nil
}

func (m *memSubscribers) ListAfter(_ context.Context, afterID int64, limit int) ([]*subscriber.Subscriber, error) {
	return m.list(afterID, limit, func(*subscriber.Subscriber) bool { return true })
}

func (m *memSubscribers) ListWithBirthdayOnAfter(_ context.Context, day, month int, afterID int64, limit int) ([]*subscriber.Subscriber, error) {
	return m.list(afterID, limit, func(s *subscriber.Subscriber) bool {
		return s.Birthday != nil && s.Birthday.Day == day && s.Birthday.Month == month
	})
}

func (m *memSubscribers) SetBirthday(_ context.Context, id int64, b subscriber.Birthday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return subscriber.ErrNotFound
	}
	s.Birthday = &b
	return nil
}

func (m *memSubscribers) ClearBirthday(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return subscriber.ErrNotFound
	}
	s.Birthday = nil
	return nil
}

func (m *memSubscribers) SetLocale(_ context.Context, id int64, locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return subscriber.ErrNotFound
	}
	s.Locale = locale
	return nil
}

// memLedger is an in-memory delivery.Ledger with a uniqueness constraint
// on (subscriber, event key, occurrence day).
type memLedger struct {
	mu      sync.Mutex
	records map[string]delivery.Record
	subs    *memSubscribers

	commitErr func(eventKey string, commit int) error
	commits   int
	lookups   int
}

func newMemLedger(subs *memSubscribers) *memLedger {
	return &memLedger{records: map[string]delivery.Record{}, subs: subs}
}

func ledgerKey(subscriberID int64, eventKey string, occurrence time.Time) string {
	return fmt.Sprintf("%d|%s|%s", subscriberID, eventKey, occurrence.Format("2006-01-02"))
}

func (l *memLedger) HasBeenNotified(ctx context.Context, subscriberID int64, ref event.Ref, occurrence time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[ledgerKey(subscriberID, ref.Key(), occurrence)]
	return ok, nil
}

func (l *memLedger) NotifiedAmong(ctx context.Context, eventKey string, occurrence time.Time, subscriberIDs []int64) (map[int64]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups++
	notified := map[int64]bool{}
	for _, id := range subscriberIDs {
		if _, ok := l.records[ledgerKey(id, eventKey, occurrence)]; ok {
			notified[id] = true
		}
	}
	return notified, nil
}

func (l *memLedger) RecordDelivery(ctx context.Context, subscriberID int64, ref event.Ref, occurrence time.Time) error {
	return l.RecordDeliveries(ctx, ref.Key(), occurrence, []delivery.Delivered{{SubscriberID: subscriberID, Outcome: delivery.OutcomeSent}})
}

// RecordDeliveries fails on a done context the way database/sql does.
func (l *memLedger) RecordDeliveries(ctx context.Context, eventKey string, occurrence time.Time, delivered []delivery.Delivered) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commits++
	if l.commitErr != nil {
		if err := l.commitErr(eventKey, l.commits); err != nil {
			return err
		}
	}
	for _, d := range delivered {
		k := ledgerKey(d.SubscriberID, eventKey, occurrence)
		if _, ok := l.records[k]; ok {
			continue
		}
		l.records[k] = delivery.Record{SubscriberID: d.SubscriberID, EventKey: eventKey, OccurrenceDate: occurrence, Outcome: d.Outcome}
	}
	return nil
}

func (l *memLedger) ClearDeliveries(_ context.Context, subscriberID int64, ref event.Ref) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k, r := range l.records {
		if r.SubscriberID == subscriberID && r.EventKey == ref.Key() {
			delete(l.records, k)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) PurgeRetractedBirthdays(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k, r := range l.records {
		if r.EventKey != event.BirthdayKey {
			continue
		}
		s, err := l.subs.GetByID(ctx, r.SubscriberID)
		if err == nil && s.Birthday == nil {
			delete(l.records, k)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) count(subscriberID int64, eventKey string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.SubscriberID == subscriberID && r.EventKey == eventKey {
			n++
		}
	}
	return n
}

func (l *memLedger) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// fakeClient records successful sends per chat and fails on demand.
type fakeClient struct {
	mu       sync.Mutex
	sent     map[int64]int
	texts    map[int64][]string
	failFor  map[int64]error
	delay    time.Duration
	inflight int
	maxIn    int
	// afterSend runs after every successful send, outside the lock.
	afterSend func(chatID int64)
}

func newFakeClient() *fakeClient {
	return &fakeClient{sent: map[int64]int{}, texts: map[int64][]string{}, failFor: map[int64]error{}}
}

func (c *fakeClient) SendMessage(_ context.Context, chatID int64, text string, _ *telebot.SendOptions) error {
	c.mu.Lock()
	c.inflight++
	if c.inflight > c.maxIn {
		c.maxIn = c.inflight
	}
	delay := c.delay
	err := c.failFor[chatID]
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	c.mu.Lock()
	c.inflight--
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.sent[chatID]++
	c.texts[chatID] = append(c.texts[chatID], text)
	afterSend := c.afterSend
	c.mu.Unlock()

	if afterSend != nil {
		afterSend(chatID)
	}
	return nil
}

func (c *fakeClient) fail(chatID int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failFor, chatID)
		return
	}
	c.failFor[chatID] = err
}

func (c *fakeClient) sends(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[chatID]
}

func (c *fakeClient) totalSends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.sent {
		n += v
	}
	return n
}

type fakeComposer struct{}

func (fakeComposer) Render(ev event.Event, locale string) string {
	return fmt.Sprintf("%s/%s", ev.Key(), locale)
}

// memCatalog is an in-memory event.Repository.
type memCatalog struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (c *memCatalog) DueEventsToday(_ context.Context, today time.Time) ([]event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return event.DueOn(c.events, today), nil
}

func (c *memCatalog) ListAll(_ context.Context) ([]event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return append([]event.Event(nil), c.events...), nil
}

func (c *memCatalog) Upsert(_ context.Context, ev *event.Event) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
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

var errStorage = errors.New("storage unavailable")

func makeSubscribers(n int) []*subscriber.Subscriber {
	subs := make([]*subscriber.Subscriber, 0, n)
	for i := 1; i <= n; i++ {
		subs = append(subs, &subscriber.Subscriber{ID: int64(i), Locale: "ru"})
	}
	return subs
}
