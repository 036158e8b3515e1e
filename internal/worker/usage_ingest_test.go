package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/linkdb/internal/kafka"
	"github.com/jmehdipour/linkdb/internal/metrics"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu        sync.Mutex
	msgs      chan kafka.Message
	committed []int64
}

func (f *fakeFetcher) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeFetcher) Commit(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeFetcher) offsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

type fakeUsage struct {
	mu     sync.Mutex
	failN  int
	calls  int
	stored []model.UsageEvent
}

func (r *fakeUsage) InsertBatch(_ context.Context, events []model.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failN {
		return errors.New("clickhouse down")
	}
	r.stored = append(r.stored, events...)
	return nil
}

func (r *fakeUsage) CountByAPIKey(_ context.Context, apiKey string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, ev := range r.stored {
		if ev.APIKey == apiKey {
			n++
		}
	}
	return n, nil
}

func envelope(t *testing.T, offset int64, id string) kafka.Message {
	t.Helper()
	b, err := model.EncodeEnvelope(model.UsageEvent{
		ID: id, APIKey: "k1", Endpoint: "GET /list_tables", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestUsageIngestStoresAndCommits(t *testing.T) {
	fetch := &fakeFetcher{msgs: make(chan kafka.Message, 10)}
	store := &fakeUsage{failN: 1}

	w := NewUsageIngest(fetch, store, nil)
	w.BatchSize = 3
	w.BatchWait = 10 * time.Millisecond
	w.RetryDelay = 5 * time.Millisecond
	poison := testutil.ToFloat64(metrics.UsageEventsTotal.WithLabelValues("poison"))

	fetch.msgs <- envelope(t, 1, "01HZX0000000000000000000A1")
	fetch.msgs <- kafka.Message{Offset: 2, Value: []byte("not json")}
	fetch.msgs <- envelope(t, 3, "01HZX0000000000000000000A3")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(fetch.offsets()) == 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, fetch.offsets())
	n, err := store.CountByAPIKey(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.GreaterOrEqual(t, store.calls, 2, "the failed batch is retried")
	assert.Equal(t, poison+1, testutil.ToFloat64(metrics.UsageEventsTotal.WithLabelValues("poison")))
}

func TestUsageIngestDoesNotCommitUnstoredEvents(t *testing.T) {
	fetch := &fakeFetcher{msgs: make(chan kafka.Message, 10)}
	store := &fakeUsage{failN: 1 << 30}

	w := NewUsageIngest(fetch, store, nil)
	w.BatchSize = 1
	w.BatchWait = 5 * time.Millisecond
	w.RetryDelay = time.Millisecond

	fetch.msgs <- envelope(t, 7, "01HZX0000000000000000000A7")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls >= 3
	}, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, fetch.offsets())
}
