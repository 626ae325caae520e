package sideeffect_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okonomi/yoyaku-go/internal/domain"
	"github.com/okonomi/yoyaku-go/internal/sideeffect"
)

type fakeRefunder struct {
	calls   atomic.Int64
	failFor int64 // fail this many calls before succeeding
}

func (f *fakeRefunder) Refund(_ context.Context, _ uuid.UUID, _ domain.ResourceType) error {
	n := f.calls.Add(1)
	if n <= f.failFor {
		return errors.New("payment gateway unavailable")
	}
	return nil
}

type fakeNotifier struct {
	calls atomic.Int64
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, _ int64, _ domain.NotificationKind, _ map[string]any) error {
	f.calls.Add(1)
	return f.err
}

func fastConfig() sideeffect.Config {
	return sideeffect.Config{
		Workers:     1,
		QueueSize:   4,
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		JobTimeout:  time.Second,
	}
}

func runDispatcher(t *testing.T, d *sideeffect.Dispatcher) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	refunder := &fakeRefunder{failFor: 2}
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	d := sideeffect.NewDispatcher(refunder, notifier, logger, fastConfig())
	stop := runDispatcher(t, d)
	defer stop()

	err := d.Enqueue(sideeffect.Job{
		Kind:          domain.EffectRefund,
		ReservationID: uuid.New(),
		ResourceType:  domain.ResourceVenue,
	})
	require.NoError(t, err)

	waitFor(t, func() bool { return refunder.calls.Load() == 3 })
}

func TestDispatcher_TerminalFailureIsLoggedNotDropped(t *testing.T) {
	var buf bytes.Buffer
	refunder := &fakeRefunder{failFor: 100} // never succeeds within retry budget
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d := sideeffect.NewDispatcher(refunder, notifier, logger, fastConfig())
	stop := runDispatcher(t, d)

	require.NoError(t, d.Enqueue(sideeffect.Job{
		Kind:          domain.EffectRefund,
		ReservationID: uuid.New(),
		ResourceType:  domain.ResourceService,
	}))

	// MaxRetries=3 means 1 initial attempt + 3 retries.
	waitFor(t, func() bool { return refunder.calls.Load() == 4 })
	stop()

	assert.Contains(t, buf.String(), "side effect terminally failed")
}

func TestDispatcher_NotifyJob(t *testing.T) {
	refunder := &fakeRefunder{}
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	d := sideeffect.NewDispatcher(refunder, notifier, logger, fastConfig())
	stop := runDispatcher(t, d)
	defer stop()

	require.NoError(t, d.Enqueue(sideeffect.Job{
		Kind:          domain.EffectNotify,
		ReservationID: uuid.New(),
		CustomerID:    42,
		Notification:  domain.NotifyCancelled,
	}))

	waitFor(t, func() bool { return notifier.calls.Load() == 1 })
	assert.Zero(t, refunder.calls.Load())
}

func TestDispatcher_ShutdownAlertsQueuedJobs(t *testing.T) {
	var buf bytes.Buffer
	refunder := &fakeRefunder{failFor: 100} // delivery never succeeds
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d := sideeffect.NewDispatcher(refunder, notifier, logger, fastConfig())

	require.NoError(t, d.Enqueue(sideeffect.Job{
		Kind:          domain.EffectRefund,
		ReservationID: uuid.New(),
	}))
	require.NoError(t, d.Enqueue(sideeffect.Job{
		Kind:          domain.EffectRefund,
		ReservationID: uuid.New(),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	// Whether a worker picked the job up before noticing the cancel or it was
	// drained from the queue, it must surface as the operational alert.
	assert.Contains(t, buf.String(), "side effect terminally failed")
}

func TestDispatcher_EnqueueFullQueue(t *testing.T) {
	refunder := &fakeRefunder{}
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	cfg := fastConfig()
	cfg.QueueSize = 1

	// Not running: the queue can only hold one job.
	d := sideeffect.NewDispatcher(refunder, notifier, logger, cfg)

	require.NoError(t, d.Enqueue(sideeffect.Job{Kind: domain.EffectNotify}))
	err := d.Enqueue(sideeffect.Job{Kind: domain.EffectNotify})

	assert.ErrorIs(t, err, sideeffect.ErrQueueFull)
}
