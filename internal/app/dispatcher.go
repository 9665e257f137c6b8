// internal/app/dispatcher.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"holiday_notification_bot/internal/domain/delivery"
	"holiday_notification_bot/internal/domain/event"
	"holiday_notification_bot/internal/domain/subscriber"
	domainTelegram "holiday_notification_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize  = 50
	DefaultPagePause = 300 * time.Millisecond

	// pageCommitTimeout bounds the ledger commit of a page that has
	// already been sent, including one finishing after cancellation.
	pageCommitTimeout = 30 * time.Second
)

// Composer renders the display text of an event for a locale.
// Implementations must be free of side effects.
type Composer interface {
	Render(ev event.Event, locale string) string
}

// Pager returns up to limit candidate subscribers with ID > afterID,
// ordered by ascending ID.
type Pager func(ctx context.Context, afterID int64, limit int) ([]*subscriber.Subscriber, error)

// ResultStatus is the per-recipient outcome of a dispatch.
type ResultStatus string

const (
	ResultSent       ResultStatus = "SENT"
	ResultSuppressed ResultStatus = "SUPPRESSED" // permanent failure, recorded when suppression is on
	ResultFailed     ResultStatus = "FAILED"     // transient failure, retried next tick
)

// Result is the outcome of one delivery attempt.
type Result struct {
	SubscriberID int64
	Status       ResultStatus
	Err          error
}

// DeliveryReport summarizes one Dispatch call.
type DeliveryReport struct {
	EventKey   string
	Occurrence time.Time
	Pages      int
	Visited    int // candidates fetched across pages
	Skipped    int // already notified for this occurrence
	Sent       int
	Suppressed int
	Failed     int
	Results    []Result
}

func (r *DeliveryReport) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case ResultSent:
		r.Sent++
	case ResultSuppressed:
		r.Suppressed++
	case ResultFailed:
		r.Failed++
	}
}

// Dispatcher delivers one due event to its eligible subscribers in
// cursor-paged, rate-paced batches and commits ledger records per page.
type Dispatcher struct {
	ledger         delivery.Ledger
	composer       Composer
	telegramClient domainTelegram.Client
	logger         *logrus.Entry
	pageSize       int
	pagePause      time.Duration
	suppress       bool
	sleep          func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(
	ledger delivery.Ledger,
	composer Composer,
	tc domainTelegram.Client,
	logger *logrus.Entry,
	pageSize int,
	pagePause time.Duration,
) *Dispatcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pagePause < 0 {
		pagePause = 0
	}
	return &Dispatcher{
		ledger:         ledger,
		composer:       composer,
		telegramClient: tc,
		logger:         logger,
		pageSize:       pageSize,
		pagePause:      pagePause,
		sleep:          sleepContext,
	}
}

// SuppressUnavailable makes permanent recipient failures (bot blocked,
// account deactivated) recorded as suppressed instead of retried every tick.
func (d *Dispatcher) SuppressUnavailable(on bool) *Dispatcher {
	d.suppress = on
	return d
}

// Dispatch sends ev to every subscriber produced by pager that has not yet
// been notified for the occurrence. A storage error aborts the dispatch
// before the failing page's cursor is advanced; the returned report still
// covers the pages committed so far.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event, occurrence time.Time, pager Pager) (*DeliveryReport, error) {
	report := &DeliveryReport{EventKey: ev.Key(), Occurrence: occurrence}
	log := d.logger.WithFields(logrus.Fields{
		"event_key":  ev.Key(),
		"occurrence": occurrence.Format("2006-01-02"),
	})

	var cursor int64
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := pager(ctx, cursor, d.pageSize)
		if err != nil {
			return report, fmt.Errorf("failed to fetch subscribers after id %d: %w", cursor, err)
		}
		if len(page) == 0 {
			break
		}
		report.Pages++
		report.Visited += len(page)

		pending, err := d.filterNotNotified(ctx, ev, occurrence, page)
		if err != nil {
			return report, err
		}
		report.Skipped += len(page) - len(pending)

		// Once sending starts the page runs to its commit even if ctx is
		// cancelled; cancellation takes effect at the next page boundary.
		results := d.sendPage(context.WithoutCancel(ctx), ev, pending)
		delivered := make([]delivery.Delivered, 0, len(results))
		for _, res := range results {
			switch res.Status {
			case ResultSent:
				delivered = append(delivered, delivery.Delivered{SubscriberID: res.SubscriberID, Outcome: delivery.OutcomeSent})
			case ResultSuppressed:
				delivered = append(delivered, delivery.Delivered{SubscriberID: res.SubscriberID, Outcome: delivery.OutcomeSuppressed})
			}
		}

		if err := d.commitPage(ctx, ev.Key(), occurrence, delivered); err != nil {
			log.WithError(err).WithField("page", report.Pages).Error("Failed to commit delivery records for page")
			return report, fmt.Errorf("failed to commit page %d of %s: %w", report.Pages, ev.Key(), err)
		}
		for _, res := range results {
			report.add(res)
		}
		log.WithFields(logrus.Fields{
			"page":      report.Pages,
			"fetched":   len(page),
			"attempted": len(pending),
			"committed": len(delivered),
		}).Debug("Page dispatched")

		cursor = page[len(page)-1].ID
		// A short page means the candidates are exhausted; the next fetch
		// only picks up rows inserted past the cursor meanwhile.
		if len(page) == d.pageSize {
			if err := d.sleep(ctx, d.pagePause); err != nil {
				return report, err
			}
		}
	}

	if report.Sent+report.Suppressed+report.Failed > 0 {
		log.WithFields(logrus.Fields{
			"pages":      report.Pages,
			"sent":       report.Sent,
			"suppressed": report.Suppressed,
			"failed":     report.Failed,
			"skipped":    report.Skipped,
		}).Info("Dispatch finished")
	}
	return report, nil
}

func (d *Dispatcher) commitPage(ctx context.Context, eventKey string, occurrence time.Time, delivered []delivery.Delivered) error {
	if len(delivered) == 0 {
		return nil
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pageCommitTimeout)
	defer cancel()
	return d.ledger.RecordDeliveries(commitCtx, eventKey, occurrence, delivered)
}

// filterNotNotified drops the subscribers of page that already have a
// ledger record for the occurrence, using one ledger lookup per page.
func (d *Dispatcher) filterNotNotified(ctx context.Context, ev event.Event, occurrence time.Time, page []*subscriber.Subscriber) ([]*subscriber.Subscriber, error) {
	ids := make([]int64, len(page))
	for i, s := range page {
		ids[i] = s.ID
	}
	notified, err := d.ledger.NotifiedAmong(ctx, ev.Key(), occurrence, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check ledger for subscribers %d..%d: %w", ids[0], ids[len(ids)-1], err)
	}
	pending := make([]*subscriber.Subscriber, 0, len(page))
	for _, s := range page {
		if !notified[s.ID] {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

// sendPage issues one delivery attempt per subscriber concurrently.
// Parallelism is bounded by the page size. Results keep page order.
func (d *Dispatcher) sendPage(ctx context.Context, ev event.Event, page []*subscriber.Subscriber) []Result {
	results := make([]Result, len(page))
	var wg sync.WaitGroup
	for i, s := range page {
		wg.Add(1)
		go func(i int, s *subscriber.Subscriber) {
			defer wg.Done()
			results[i] = d.sendOne(ctx, ev, s)
		}(i, s)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, ev event.Event, s *subscriber.Subscriber) Result {
	text := d.composer.Render(ev, s.Locale)
	err := d.telegramClient.SendMessage(ctx, s.TelegramID, text, nil)
	switch {
	case err == nil:
		return Result{SubscriberID: s.ID, Status: ResultSent}
	case d.suppress && errors.Is(err, domainTelegram.ErrRecipientUnavailable):
		d.logger.WithFields(logrus.Fields{
			"event_key":     ev.Key(),
			"subscriber_id": s.ID,
		}).WithError(err).Warn("Recipient unavailable, marking notification as suppressed")
		return Result{SubscriberID: s.ID, Status: ResultSuppressed, Err: err}
	default:
		d.logger.WithFields(logrus.Fields{
			"event_key":     ev.Key(),
			"subscriber_id": s.ID,
		}).WithError(err).Warn("Failed to send notification, will retry next tick")
		return Result{SubscriberID: s.ID, Status: ResultFailed, Err: err}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
