package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"holiday_notification_bot/internal/app" // For NotificationService interface

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NotificationScheduler triggers NotificationService.RunTick every period.
// At most one tick runs at a time; a trigger that fires while a tick is
// still running is dropped, not queued.
type NotificationScheduler struct {
	cronEngine   *cron.Cron
	notifService app.NotificationService // Using the interface
	logger       *logrus.Entry
	period       time.Duration
	now          func() time.Time

	busy   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotificationScheduler(
	notifService app.NotificationService,
	logger *logrus.Entry,
	period time.Duration, // e.g., time.Minute
	loc *time.Location,
) *NotificationScheduler {
	if loc == nil {
		loc = time.Local
	}
	cronLogger := cron.VerbosePrintfLogger(logger.WithField("component", "cron"))
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		notifService: notifService,
		logger:       logger,
		period:       period,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start registers the periodic job, starts the cron engine and kicks off
// one tick immediately.
func (s *NotificationScheduler) Start() {
	s.logger.WithField("period", s.period.String()).Info("Starting notification scheduler...")

	s.cronEngine.Schedule(cron.Every(s.period), cron.FuncJob(func() {
		s.RunOnce(s.ctx)
	}))
	s.cronEngine.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(s.ctx)
	}()

	s.logger.Info("Notification scheduler started.")
}

// RunOnce runs a single tick unless one is already in progress, in which
// case it returns false without doing anything.
func (s *NotificationScheduler) RunOnce(ctx context.Context) bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug("Previous tick still running, skipping")
		return false
	}
	defer s.busy.Store(false)

	log := s.logger.WithField("tick_id", uuid.NewString())
	started := s.now()
	report, err := s.notifService.RunTick(ctx, started)
	if err != nil {
		log.WithError(err).Error("Tick finished with errors")
	}
	if report == nil || report.Skipped {
		return true
	}

	var sent, suppressed, failed int
	for _, r := range report.Reports {
		sent += r.Sent
		suppressed += r.Suppressed
		failed += r.Failed
	}
	log.WithFields(logrus.Fields{
		"day":        report.Day.Format("2006-01-02"),
		"events":     len(report.Reports),
		"sent":       sent,
		"suppressed": suppressed,
		"failed":     failed,
		"purged":     report.Purged,
		"took":       time.Since(started).String(),
	}).Debug("Tick finished")
	return true
}

// Stop cancels the running tick, stops the cron engine and waits for
// in-flight work to return.
func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	s.cancel()
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.wg.Wait()
	s.logger.Info("Notification scheduler gracefully stopped.")
}
