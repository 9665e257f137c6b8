package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"holiday_notification_bot/internal/app"

	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// blockingService blocks every RunTick until release is closed or ctx ends.
type blockingService struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	ctxErr  atomic.Value
}

func newBlockingService() *blockingService {
	return &blockingService{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingService) RunTick(ctx context.Context, _ time.Time) (*app.TickReport, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return &app.TickReport{Reports: []*app.DeliveryReport{{Sent: 1}}}, nil
	case <-ctx.Done():
		b.ctxErr.Store(ctx.Err())
		return nil, ctx.Err()
	}
}

func TestRunOnceSkipsWhileTickInProgress(t *testing.T) {
	svc := newBlockingService()
	s := NewNotificationScheduler(svc, discardLogger(), time.Minute, time.UTC)

	done := make(chan bool)
	go func() { done <- s.RunOnce(context.Background()) }()
	<-svc.started

	if s.RunOnce(context.Background()) {
		t.Fatal("second RunOnce should be skipped while the first is running")
	}
	if got := svc.calls.Load(); got != 1 {
		t.Fatalf("RunTick calls = %d, want 1", got)
	}

	close(svc.release)
	if !<-done {
		t.Fatal("first RunOnce should report that it ran")
	}
	if !s.RunOnce(context.Background()) {
		t.Fatal("RunOnce after completion should run")
	}
	if got := svc.calls.Load(); got != 2 {
		t.Fatalf("RunTick calls = %d, want 2", got)
	}
}

type errService struct{ calls int }

func (e *errService) RunTick(context.Context, time.Time) (*app.TickReport, error) {
	e.calls++
	return &app.TickReport{}, errors.New("dispatch holiday:1: storage unavailable")
}

func TestRunOnceSurvivesTickErrors(t *testing.T) {
	svc := &errService{}
	s := NewNotificationScheduler(svc, discardLogger(), time.Minute, time.UTC)

	for i := 0; i < 3; i++ {
		if !s.RunOnce(context.Background()) {
			t.Fatalf("RunOnce %d skipped", i)
		}
	}
	if svc.calls != 3 {
		t.Fatalf("calls = %d, want 3", svc.calls)
	}
}

func TestRunOncePassesCurrentTime(t *testing.T) {
	var got time.Time
	fixed := time.Date(2026, time.March, 8, 10, 0, 0, 0, time.UTC)
	s := NewNotificationScheduler(tickFunc(func(_ context.Context, now time.Time) (*app.TickReport, error) {
		got = now
		return &app.TickReport{Skipped: true}, nil
	}), discardLogger(), time.Minute, time.UTC)
	s.now = func() time.Time { return fixed }

	s.RunOnce(context.Background())
	if !got.Equal(fixed) {
		t.Fatalf("RunTick got %v, want %v", got, fixed)
	}
}

type tickFunc func(ctx context.Context, now time.Time) (*app.TickReport, error)

func (f tickFunc) RunTick(ctx context.Context, now time.Time) (*app.TickReport, error) {
	return f(ctx, now)
}

func TestStopCancelsInFlightTick(t *testing.T) {
	svc := newBlockingService()
	s := NewNotificationScheduler(svc, discardLogger(), time.Hour, time.UTC)

	s.Start()
	select {
	case <-svc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("initial tick did not start")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if err, _ := svc.ctxErr.Load().(error); !errors.Is(err, context.Canceled) {
		t.Fatalf("in-flight tick context error = %v, want context.Canceled", err)
	}
}
