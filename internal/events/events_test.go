package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeChannel struct {
	key string
	pub amqp.Publishing
	err error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.key = key
	c.pub = msg
	return nil
}

func (c *fakeChannel) Close() error { return nil }

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }
func (f failing) Close() error                         { return f.err }

func TestKafkaProducer_Publish(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "user_events"}
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), Event{Type: UserLoggedIn, UserID: "u-1", OccurredAt: at}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "u-1", string(w.msgs[0].Key))
	assert.Equal(t, at, w.msgs[0].Time)

	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, UserLoggedIn, got.Type)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaProducer_WriteError(t *testing.T) {
	t.Parallel()

	boom := errors.New("leader not available")
	p := &KafkaProducer{writer: &fakeWriter{err: boom}, topic: "user_events"}

	err := p.Publish(context.Background(), Event{Type: TokenRevoked})
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaProducer_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewKafkaProducer(nil, "user_events")
	assert.Error(t, err)
}

func TestRabbitPublisher_Publish(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p := &RabbitPublisher{ch: ch, queue: "user.events"}

	require.NoError(t, p.Publish(context.Background(), Event{Type: UserRegistered, Email: "a@x.com"}))
	assert.Equal(t, "user.events", ch.key)
	assert.Equal(t, "application/json", ch.pub.ContentType)
	assert.Equal(t, amqp.Persistent, ch.pub.DeliveryMode)
	assert.Equal(t, UserRegistered, ch.pub.Type)

	ch.err = errors.New("channel closed")
	assert.Error(t, p.Publish(context.Background(), Event{Type: UserRegistered}))
	require.NoError(t, p.Close())
}

func TestMulti_AggregatesErrors(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	errA := errors.New("a down")
	errB := errors.New("b down")
	m := Multi{failing{errA}, &KafkaProducer{writer: w, topic: "t"}, failing{errB}}

	err := m.Publish(context.Background(), Event{Type: UserLoggedIn})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, w.msgs, 1, "healthy publishers still receive the event")

	assert.NoError(t, Multi{Noop{}}.Publish(context.Background(), Event{}))
	assert.NoError(t, Multi{}.Close())
}

func TestEvent_Key(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "u-9", Event{Type: UserLoggedIn, UserID: "u-9"}.Key())
	assert.Equal(t, TokensSwept, Event{Type: TokensSwept}.Key())
}

type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
	closed  bool
}

func (p *blockingPublisher) Publish(_ context.Context, e Event) error {
	<-p.release
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e)
	return nil
}

func (p *blockingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestAsync_PublishDoesNotWaitForSink(t *testing.T) {
	t.Parallel()

	sink := &blockingPublisher{release: make(chan struct{})}
	a := NewAsync(sink, 2, nil)

	start := time.Now()
	require.NoError(t, a.Publish(context.Background(), Event{Type: UserLoggedIn, UserID: "u-1"}))
	require.NoError(t, a.Publish(context.Background(), Event{Type: UserLoggedIn, UserID: "u-2"}))
	assert.Less(t, time.Since(start), time.Second)

	require.Eventually(t, func() bool {
		return a.Publish(context.Background(), Event{Type: TokenRevoked}) == nil
	}, time.Second, time.Millisecond, "first event leaves the queue for the sink")
	assert.ErrorIs(t, a.Publish(context.Background(), Event{Type: TokenRevoked}), ErrQueueFull)

	close(sink.release)
	require.NoError(t, a.Close())
	assert.Len(t, sink.got, 3, "queued events are delivered before close returns")
	assert.True(t, sink.closed)

	assert.ErrorIs(t, a.Publish(context.Background(), Event{Type: UserLoggedIn}), ErrClosed)
	assert.NoError(t, a.Close())
}

func TestAsync_SinkErrorsAreLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&syncWriter{w: &buf}, nil))
	a := NewAsync(failing{errors.New("broker down")}, 0, l)

	require.NoError(t, a.Publish(context.Background(), Event{Type: UserRegistered}))
	assert.Error(t, a.Close(), "close error of the sink is returned")
	assert.Contains(t, buf.String(), `"msg":"event_publish_error"`)
	assert.Contains(t, buf.String(), "broker down")
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
