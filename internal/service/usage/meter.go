// Package usage records one usage event per billable call and prices a
// credential's usage from the event log.
package usage

import (
	"context"
	"time"

	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/metrics"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/util"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sink durably appends a batch of usage events.
type Sink interface {
	Write(ctx context.Context, events []model.UsageEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, events []model.UsageEvent) error

func (f SinkFunc) Write(ctx context.Context, events []model.UsageEvent) error { return f(ctx, events) }

// Counter counts the recorded events of a credential.
type Counter interface {
	CountByAPIKey(ctx context.Context, apiKey string) (int64, error)
}

// Options tunes the background writer.
type Options struct {
	QueueSize     int           // max events waiting to be written
	BatchSize     int           // max events per sink write
	BatchWait     time.Duration // max time an event waits before a flush
	Timeout       time.Duration // bound on a single sink write or count
	FailThreshold int           // consecutive failures that open the breaker
	OpenFor       time.Duration // how long an open breaker skips the sink
}

func (o *Options) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.BatchWait <= 0 {
		o.BatchWait = 500 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
}

// Meter is a best-effort usage recorder. Record never blocks and never
// fails the caller; events go through a bounded queue drained by Run.
type Meter struct {
	sink    Sink
	counter Counter
	price   decimal.Decimal
	opts    Options
	breaker *Breaker
	log     *zap.Logger

	queue chan model.UsageEvent
	now   func() time.Time
}

func NewMeter(sink Sink, counter Counter, price decimal.Decimal, opts Options, log *zap.Logger) *Meter {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Meter{
		sink:    sink,
		counter: counter,
		price:   price,
		opts:    opts,
		breaker: NewBreaker(opts.FailThreshold, opts.OpenFor),
		log:     log,
		queue:   make(chan model.UsageEvent, opts.QueueSize),
		now:     time.Now,
	}
}

// Record enqueues one usage event for apiKey. A full queue drops the event.
func (m *Meter) Record(apiKey, endpoint string) {
	now := m.now().UTC()
	ev := model.UsageEvent{ID: util.NewID(now), APIKey: apiKey, Endpoint: endpoint, CreatedAt: now}

	select {
	case m.queue <- ev:
		metrics.UsageEventsTotal.WithLabelValues("queued").Inc()
		metrics.UsageQueueDepth.Set(float64(len(m.queue)))
	default:
		metrics.UsageEventsTotal.WithLabelValues("dropped").Inc()
		m.log.Warn("usage queue full, event dropped",
			zap.String("endpoint", endpoint), zap.Int("queue_size", m.opts.QueueSize))
	}
}

// Cost returns count(events of apiKey) * unit price. Events still queued
// are not counted yet.
func (m *Meter) Cost(ctx context.Context, apiKey string) (decimal.Decimal, error) {
	const op = "usage.Cost"

	if apiKey == "" {
		return decimal.Zero, apperr.Wrap(nil, apperr.EUnauthorized, op, "missing api key")
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	n, err := m.counter.CountByAPIKey(ctx, apiKey)
	if err != nil {
		return decimal.Zero, db.Translate(err, op)
	}
	return m.price.Mul(decimal.NewFromInt(n)), nil
}

// Run drains the queue into the sink until ctx is cancelled, then flushes
// what is left. Events whose write failed are kept and retried, up to
// QueueSize events; beyond that the oldest are discarded. Sinks must accept
// replayed events.
func (m *Meter) Run(ctx context.Context) error {
	tick := time.NewTicker(m.opts.BatchWait)
	defer tick.Stop()

	batch := make([]model.UsageEvent, 0, m.opts.BatchSize)

	// flush writes batch in chunks of BatchSize, dropping each chunk once it
	// is stored. On failure the unwritten tail is kept for the next attempt.
	flush := func(final bool) {
		for len(batch) > 0 {
			if !m.breaker.TryAcquire() && !final {
				metrics.UsageEventsTotal.WithLabelValues("skipped").Add(float64(len(batch)))
				batch = m.trim(batch)
				return
			}

			n := min(len(batch), m.opts.BatchSize)
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.Timeout)
			err := m.sink.Write(wctx, batch[:n])
			cancel()

			if err != nil {
				m.breaker.OnFailure()
				metrics.UsageEventsTotal.WithLabelValues("failed").Add(float64(n))
				m.log.Error("usage flush failed", zap.Int("events", n), zap.Int("pending", len(batch)), zap.Error(err))
				batch = m.trim(batch)
				return
			}

			m.breaker.OnSuccess()
			metrics.UsageEventsTotal.WithLabelValues("flushed").Add(float64(n))
			m.log.Debug("usage flushed", zap.Int("events", n))
			batch = append(batch[:0], batch[n:]...)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-m.queue:
					batch = append(batch, ev)
					if len(batch) >= m.opts.BatchSize {
						flush(true)
						if len(batch) >= m.opts.BatchSize {
							// sink is down; give up on the rest
							m.log.Error("usage events lost on shutdown", zap.Int("events", len(batch)+len(m.queue)))
							return nil
						}
					}
				default:
					flush(true)
					if len(batch) > 0 {
						m.log.Error("usage events lost on shutdown", zap.Int("events", len(batch)))
					}
					metrics.UsageQueueDepth.Set(0)
					return nil
				}
			}

		case ev := <-m.queue:
			batch = append(batch, ev)
			metrics.UsageQueueDepth.Set(float64(len(m.queue)))
			if len(batch) >= m.opts.BatchSize && !m.breaker.Open() {
				flush(false)
			}

		case <-tick.C:
			flush(false)
		}
	}
}

// trim keeps a failed batch for the next attempt, bounded by QueueSize.
func (m *Meter) trim(batch []model.UsageEvent) []model.UsageEvent {
	if over := len(batch) - m.opts.QueueSize; over > 0 {
		metrics.UsageEventsTotal.WithLabelValues("dropped").Add(float64(over))
		m.log.Warn("usage retry buffer full, oldest events dropped", zap.Int("events", over))
		batch = append(batch[:0], batch[over:]...)
	}
	return batch
}
