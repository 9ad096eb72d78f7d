package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastinghub/pulse/internal/models"
	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/pkg/logger"
	"github.com/fastinghub/pulse/pkg/metrics"
)

// Dispatch execution modes.
const (
	DispatchModeAsync = "async"
	DispatchModeSync  = "sync"
)

const (
	defaultDispatchWorkers   = 2
	defaultDispatchQueueSize = 256
	defaultMaxAttempts       = 3
	defaultRetryDelay        = 60 * time.Second
	maxRetryDelay            = 15 * time.Minute
)

// DispatcherConfig tunes the fan-out pipeline.
type DispatcherConfig struct {
	Mode        string
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

type fanoutJob struct {
	event   *models.Event
	attempt int
}

// FanoutRunner is the consumer the dispatcher drives, usually *FanoutService.
type FanoutRunner interface {
	FanOutEvent(ctx context.Context, event *models.Event) error
}

// Dispatcher feeds appended events to the fan-out service. In async mode jobs
// flow through a bounded queue served by worker goroutines; failed jobs are
// retried a bounded number of times with jittered exponential backoff, then
// logged and dropped. Feed-item dedup makes replays harmless.
type Dispatcher struct {
	fanout FanoutRunner
	cfg    DispatcherConfig
	log    *zap.Logger

	mu      sync.Mutex
	jobs    chan fanoutJob
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewDispatcher constructs a Dispatcher around the fan-out service.
func NewDispatcher(fanout FanoutRunner, cfg DispatcherConfig) (*Dispatcher, error) {
	if fanout == nil {
		return nil, errors.New("dispatcher: fanout service is required")
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = DispatchModeAsync
	case DispatchModeAsync, DispatchModeSync:
	default:
		return nil, fmt.Errorf("dispatcher: unknown mode %q", cfg.Mode)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultDispatchWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultDispatchQueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Dispatcher{
		fanout: fanout,
		cfg:    cfg,
		log:    logger.WithModule("dispatcher"),
	}, nil
}

// Start launches the worker pool. Sync mode has no workers; jobs run on the
// caller's goroutine.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return errors.New("dispatcher: already started")
	}
	d.started = true
	if d.cfg.Mode == DispatchModeSync {
		d.log.Info("dispatcher running synchronously")
		return nil
	}

	d.jobs = make(chan fanoutJob, d.cfg.QueueSize)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.log.Info("dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize))
	return nil
}

// Stop drains the queue and waits for workers to finish. Retries still
// pending on timers are dropped with a log line.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	if d.jobs != nil {
		close(d.jobs)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("dispatcher stopped")
}

// QueueStats reports the current queue depth and capacity. Capacity is zero
// in sync mode, where no queue exists.
func (d *Dispatcher) QueueStats() (depth, capacity int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.jobs == nil {
		return 0, 0
	}
	return len(d.jobs), cap(d.jobs)
}

// DispatchEvent hands one appended event to the pipeline. It never returns an
// error to the appender: async failures are retried and eventually dropped, a
// full queue degrades to inline processing so the event is not skipped.
func (d *Dispatcher) DispatchEvent(event *models.Event) {
	if event == nil {
		return
	}
	job := fanoutJob{event: event, attempt: 1}

	if d.cfg.Mode == DispatchModeSync {
		d.process(job)
		return
	}
	if d.submit(job) {
		return
	}
	d.log.Warn("dispatch queue unavailable, processing inline",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventTypeCode))
	d.process(job)
}

// submit enqueues without blocking. It reports false when the queue is full
// or the dispatcher is not accepting work.
func (d *Dispatcher) submit(job fanoutJob) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.stopped || d.jobs == nil {
		return false
	}
	select {
	case d.jobs <- job:
		metrics.DispatchQueueDepth.Inc()
		return true
	default:
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		metrics.DispatchQueueDepth.Dec()
		d.process(job)
	}
}

func (d *Dispatcher) process(job fanoutJob) {
	err := d.fanout.FanOutEvent(context.Background(), job.event)
	if err == nil {
		metrics.FanoutJobs.WithLabelValues("delivered").Inc()
		monitoring.RecordFanoutDelivery()
		return
	}

	if job.attempt >= d.cfg.MaxAttempts {
		metrics.FanoutJobs.WithLabelValues("dropped").Inc()
		monitoring.RecordFanoutDrop(job.event.EventTypeCode, err.Error())
		d.log.Error("fan-out dropped after final attempt",
			zap.String("event_id", job.event.ID),
			zap.String("event_type", job.event.EventTypeCode),
			zap.Int("attempts", job.attempt),
			zap.Error(err))
		return
	}
	d.scheduleRetry(job, err)
}

func (d *Dispatcher) scheduleRetry(job fanoutJob, cause error) {
	delay := backoffDelay(d.cfg.RetryDelay, job.attempt)
	metrics.FanoutRetries.Inc()
	metrics.FanoutJobs.WithLabelValues("retried").Inc()
	d.log.Warn("fan-out failed, retry scheduled",
		zap.String("event_id", job.event.ID),
		zap.String("event_type", job.event.EventTypeCode),
		zap.Int("attempt", job.attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))

	next := fanoutJob{event: job.event, attempt: job.attempt + 1}
	time.AfterFunc(delay, func() {
		if d.submit(next) {
			return
		}
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if stopped {
			metrics.FanoutJobs.WithLabelValues("dropped").Inc()
			monitoring.RecordFanoutDrop(next.event.EventTypeCode, "dispatcher stopped")
			d.log.Warn("dispatcher stopped, dropping retry",
				zap.String("event_id", next.event.ID))
			return
		}
		d.process(next)
	})
}

// backoffDelay doubles the base per attempt with ±20% jitter, capped so a
// misconfigured base cannot push retries out indefinitely.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base << (attempt - 1)
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(delay) * jitter)
}
