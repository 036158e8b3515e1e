package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/linkdb/internal/kafka"
	"github.com/jmehdipour/linkdb/internal/metrics"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/repository"
	"go.uber.org/zap"
)

// Fetcher is the consumer side of the usage topic.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// UsageIngest:
// - fetches usage envelopes from Kafka,
// - batches them into the analytics usage store,
// - commits offsets only after the batch is stored (at-least-once).
type UsageIngest struct {
	// Dependencies
	Consumer Fetcher
	Usage    repository.UsageRepository
	Log      *zap.Logger

	// Behavior
	BatchSize  int           // max events per insert
	BatchWait  time.Duration // max time to wait before flush
	RetryDelay time.Duration // pause after a failed insert
}

// NewUsageIngest builds a worker with sane defaults.
func NewUsageIngest(consumer Fetcher, usage repository.UsageRepository, log *zap.Logger) *UsageIngest {
	if log == nil {
		log = zap.NewNop()
	}
	return &UsageIngest{
		Consumer:   consumer,
		Usage:      usage,
		Log:        log,
		BatchSize:  1000,
		BatchWait:  time.Second,
		RetryDelay: time.Second,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *UsageIngest) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 1000
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}
	if w.RetryDelay <= 0 {
		w.RetryDelay = time.Second
	}

	msgCh := make(chan kafka.Message, w.BatchSize)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	w.runBatchWriter(ctx, msgCh)
	return nil
}

// runBatchWriter does size/time-based flushes; offsets are committed after the insert succeeds.
func (w *UsageIngest) runBatchWriter(ctx context.Context, in <-chan kafka.Message) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		events []model.UsageEvent
		msgs   []kafka.Message
	)

	flush := func() bool {
		if len(msgs) == 0 {
			return true
		}

		// keep storing after shutdown starts so fetched work is not redone
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := w.Usage.InsertBatch(sctx, events); err != nil {
			metrics.UsageEventsTotal.WithLabelValues("failed").Add(float64(len(events)))
			w.Log.Error("usage ingest insert failed", zap.Int("events", len(events)), zap.Error(err))
			return false
		}
		if err := w.Consumer.Commit(sctx, msgs...); err != nil {
			// events will be redelivered; the store deduplicates by id
			w.Log.Warn("kafka commit failed", zap.Error(err))
		}

		metrics.UsageEventsTotal.WithLabelValues("flushed").Add(float64(len(events)))
		w.Log.Debug("usage ingest flushed", zap.Int("events", len(events)))
		events, msgs = events[:0], msgs[:0]
		return true
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case m, ok := <-in:
			if !ok {
				flush()
				return
			}
			msgs = append(msgs, m)

			ev, err := model.DecodeEnvelope(m.Value)
			if err != nil {
				// poison → commit with the batch, skip
				metrics.UsageEventsTotal.WithLabelValues("poison").Inc()
				w.Log.Warn("bad usage envelope", zap.Int64("offset", m.Offset), zap.Error(err))
			} else {
				events = append(events, ev)
			}

			if len(msgs) >= w.BatchSize && !flush() {
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.RetryDelay):
				}
			}

		case <-tick.C:
			flush()
		}
	}
}
