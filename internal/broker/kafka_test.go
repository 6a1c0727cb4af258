package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging/internal/config"
	"messaging/internal/logger"
	apperrors "messaging/pkg/errors"
	"messaging/pkg/models"
	"messaging/pkg/retry"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type recordingProducer struct {
	mu     sync.Mutex
	topics []string
	events []*models.Event
}

func (p *recordingProducer) Publish(_ context.Context, topic string, event *models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func newTestConsumer(dlq Producer) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         config.KafkaConfig{DLQTopic: "messaging_dlq"},
		logger:      logger.NopLogger(),
		dlqProducer: dlq,
		serviceName: "test",
		policy: retry.Policy{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			Multiplier:      2,
		},
	}
}

func encode(t *testing.T, event *models.Event) kafka.Message {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: body}
}

func TestPublishKeysByRequestEventID(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, logger: logger.NopLogger(), serviceName: "test"}

	event := models.NewEventBuilder(models.EventTypeEdge, models.EventSourceRequestContent).
		WithRequestEventID("req-1").
		Build()
	require.NoError(t, p.Publish(context.Background(), "edge_requests", event))

	require.Len(t, w.messages, 1)
	assert.Equal(t, "edge_requests", w.messages[0].Topic)
	assert.Equal(t, []byte("req-1"), w.messages[0].Key)

	var decoded models.Event
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
}

func TestPublishWrapsWriterError(t *testing.T) {
	p := &KafkaProducer{writer: &fakeWriter{err: errors.New("no leader")}, logger: logger.NopLogger()}

	err := p.Publish(context.Background(), "edge_requests", models.NewEventBuilder("t", "s").Build())
	assert.ErrorContains(t, err, "no leader")
}

func TestHandleMessageRetriesThenSucceeds(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	calls := 0
	handler := func(ctx context.Context, event *models.Event) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}

	c.handleMessage(context.Background(), encode(t, models.NewEventBuilder("t", "s").Build()), handler, "app_events")

	assert.Equal(t, 2, calls)
	assert.Empty(t, dlq.events)
}

func TestHandleMessageSendsExhaustedEventToDLQ(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	calls := 0
	handler := func(ctx context.Context, event *models.Event) error {
		calls++
		return errors.New("still failing")
	}

	event := models.NewEventBuilder("t", "s").Build()
	c.handleMessage(context.Background(), encode(t, event), handler, "app_events")

	assert.Equal(t, 3, calls)
	require.Len(t, dlq.events, 1)
	assert.Equal(t, "messaging_dlq", dlq.topics[0])
	assert.Equal(t, event.ID, dlq.events[0].ID)
	assert.Equal(t, "app_events", dlq.events[0].Metadata.Annotations["dlq_source_topic"])
	assert.Contains(t, dlq.events[0].Metadata.Annotations["dlq_reason"], "still failing")
}

func TestHandleMessageDoesNotRetryPanicsOrValidation(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	calls := 0
	c.handleMessage(context.Background(), encode(t, models.NewEventBuilder("t", "s").Build()),
		func(ctx context.Context, event *models.Event) error {
			calls++
			panic("bad handler")
		}, "app_events")
	c.handleMessage(context.Background(), encode(t, models.NewEventBuilder("t", "s").Build()),
		func(ctx context.Context, event *models.Event) error {
			calls++
			return apperrors.ErrValidation
		}, "app_events")

	assert.Equal(t, 2, calls)
	assert.Len(t, dlq.events, 2)
}

func TestHandleMessageSkipsUndecodable(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	called := false
	c.handleMessage(context.Background(), kafka.Message{Value: []byte("{not json")},
		func(ctx context.Context, event *models.Event) error {
			called = true
			return nil
		}, "app_events")

	assert.False(t, called)
	assert.Empty(t, dlq.events)
}

func TestTopicDispatcher(t *testing.T) {
	p := &recordingProducer{}
	d := NewTopicDispatcher(p, "edge_requests")

	require.NoError(t, d.Dispatch(context.Background(), models.NewEventBuilder("t", "s").Build()))
	assert.Equal(t, []string{"edge_requests"}, p.topics)
}
