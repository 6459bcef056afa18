package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	applogger "MarketSignal/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(values))}
	for i, v := range values {
		r.msgs <- kafka.Message{Offset: int64(i), Value: []byte(v)}
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type funcHandler struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(string) error
}

func (h *funcHandler) Topic() string { return "signals" }

func (h *funcHandler) Handle(_ context.Context, b []byte) error {
	h.mu.Lock()
	h.calls[string(b)]++
	h.mu.Unlock()
	return h.fn(string(b))
}

func (h *funcHandler) count(v string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[v]
}

func newTestConsumer(t *testing.T, r *fakeReader, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(applogger.Nop(), opts...)
	require.NoError(t, err)
	c.newRead = func(string) messageReader { return r }
	return c
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	r := newFakeReader("a", "b")
	c := newTestConsumer(t, r)
	h := &funcHandler{calls: map[string]int{}, fn: func(string) error { return nil }}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.ElementsMatch(t, []int64{0, 1}, r.commits())
}

func TestConsumerRetriesThenParksOnDLQ(t *testing.T) {
	r := newFakeReader("bad")
	c := newTestConsumer(t, r, WithConsumerDLQ("signals.dlq"))
	dlq := &fakeWriter{}
	c.dlq = dlq
	h := &funcHandler{calls: map[string]int{}, fn: func(string) error { return errors.New("nope") }}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, 3, h.count("bad"), "one attempt plus two retries")
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "signals.dlq", dlq.msgs[0].Topic)
}

func TestConsumerLeavesFailedMessageUncommittedWithoutDLQ(t *testing.T) {
	r := newFakeReader("bad", "good")
	c := newTestConsumer(t, r, WithConsumerRetry(0, time.Millisecond, time.Millisecond))
	h := &funcHandler{calls: map[string]int{}, fn: func(v string) error {
		if v == "bad" {
			return errors.New("nope")
		}
		return nil
	}}
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return h.count("good") == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []int64{1}, r.commits())
}

func TestStartWithoutHandlers(t *testing.T) {
	c := newTestConsumer(t, newFakeReader())
	assert.Error(t, c.Start())
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestProducerEncodesValues(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip", nil)

	require.NoError(t, p.Publish(context.Background(), "t", []byte("k"), map[string]int{"a": 1}))
	require.NoError(t, p.PublishMessage(context.Background(), "t", "raw"))
	require.NoError(t, p.PublishBatch(context.Background(), "t", []Message{{Value: []byte("x")}, {Value: 2}}))

	require.Len(t, w.msgs, 4)
	assert.JSONEq(t, `{"a":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, "x", string(w.msgs[2].Value))
	assert.Equal(t, "2", string(w.msgs[3].Value))
}
