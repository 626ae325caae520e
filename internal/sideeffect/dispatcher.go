package sideeffect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/okonomi/yoyaku-go/internal/domain"
)

// ErrQueueFull is returned by Enqueue when the dispatcher cannot take the
// job. The transition has already committed at that point, so callers surface
// this as a warning, never as a failure.
var ErrQueueFull = errors.New("side-effect queue full")

// Refunder asynchronously reverses any captured payment for a reservation.
type Refunder interface {
	Refund(ctx context.Context, reservationID uuid.UUID, resourceType domain.ResourceType) error
}

// Notifier delivers a message to a customer through whatever channel is
// configured on the collaborator side.
type Notifier interface {
	Notify(ctx context.Context, customerID int64, kind domain.NotificationKind, payload map[string]any) error
}

// Job is one queued side effect of a committed transition.
type Job struct {
	Kind          domain.EffectKind
	ReservationID uuid.UUID
	ResourceType  domain.ResourceType
	CustomerID    int64
	Notification  domain.NotificationKind
	Payload       map[string]any
}

type Config struct {
	Workers     int
	QueueSize   int
	MaxRetries  uint64
	BaseBackoff time.Duration
	JobTimeout  time.Duration
}

// Dispatcher executes refund and notification jobs after transitions commit.
// Jobs are retried with exponential backoff; a terminally failed job is
// logged as an operational alert and dropped; it never reverses the
// transition that queued it.
type Dispatcher struct {
	refunder Refunder
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	jobs     chan Job
}

func NewDispatcher(refunder Refunder, notifier Notifier, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	return &Dispatcher{
		refunder: refunder,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		jobs:     make(chan Job, cfg.QueueSize),
	}
}

// Enqueue hands a job to the worker pool without blocking.
func (d *Dispatcher) Enqueue(job Job) error {
	select {
	case d.jobs <- job:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s for reservation %s",
			ErrQueueFull, job.Kind, job.ReservationID)
	}
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					d.drain()
					return nil
				case job := <-d.jobs:
					d.process(gCtx, job)
				}
			}
		})
	}

	return g.Wait()
}

// drain empties the queue at shutdown. Each undelivered job gets the same
// operational alert a terminal retry failure does; an accepted job is never
// silently lost.
func (d *Dispatcher) drain() {
	for {
		select {
		case job := <-d.jobs:
			d.logger.Error("side effect terminally failed",
				"kind", job.Kind,
				"reservation_id", job.ReservationID,
				"customer_id", job.CustomerID,
				"error", "dropped at shutdown",
			)
		default:
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	backoff := retry.WithMaxRetries(d.cfg.MaxRetries, retry.NewExponential(d.cfg.BaseBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.JobTimeout)
		defer cancel()

		if err := d.execute(attemptCtx, job); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// Operational alert: the transition stays committed, the effect needs
		// manual follow-up.
		d.logger.Error("side effect terminally failed",
			"kind", job.Kind,
			"reservation_id", job.ReservationID,
			"customer_id", job.CustomerID,
			"error", err,
		)
		return
	}

	d.logger.Info("side effect delivered",
		"kind", job.Kind,
		"reservation_id", job.ReservationID,
	)
}

func (d *Dispatcher) execute(ctx context.Context, job Job) error {
	switch job.Kind {
	case domain.EffectRefund:
		return d.refunder.Refund(ctx, job.ReservationID, job.ResourceType)
	case domain.EffectNotify:
		return d.notifier.Notify(ctx, job.CustomerID, job.Notification, job.Payload)
	default:
		return fmt.Errorf("unknown side-effect kind %q", job.Kind)
	}
}
