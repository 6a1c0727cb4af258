package broker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"

	"messaging/internal/config"
	"messaging/internal/logger"
	"messaging/pkg/models"
)

func TestKafkaRoundTripIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if os.Getenv("MESSAGING_CONTAINER_TESTS") == "" {
		t.Skip("set MESSAGING_CONTAINER_TESTS=1 to run container tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0", kafkamodule.WithClusterID("messaging-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	cfg := config.KafkaConfig{Brokers: brokers, GroupID: "messaging-it"}
	topic := "personalization_decisions_it"

	producer := NewKafkaProducer(cfg, logger.NopLogger())
	defer producer.Close()

	event := &models.Event{
		ID:             "evt-1",
		Name:           "personalization:decisions",
		Type:           models.EventTypeEdge,
		Source:         models.EventSourcePersonalizationDecide,
		RequestEventID: "req-1",
		Timestamp:      time.Now().UTC(),
		Data:           map[string]interface{}{"payload": []interface{}{}},
	}
	require.NoError(t, producer.Publish(ctx, topic, event))

	consumer := NewKafkaConsumer(cfg, logger.NopLogger())
	defer consumer.Close()

	received := make(chan *models.Event, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = consumer.Consume(consumeCtx, topic, func(_ context.Context, e *models.Event) error {
			select {
			case received <- e:
			default:
			}
			return nil
		})
	}()

	select {
	case got := <-received:
		assert.Equal(t, "evt-1", got.ID)
		assert.Equal(t, "req-1", got.RequestEventID)
		assert.Equal(t, models.EventSourcePersonalizationDecide, got.Source)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
