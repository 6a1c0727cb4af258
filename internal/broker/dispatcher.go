package broker

import (
	"context"

	"messaging/pkg/models"
)

// TopicDispatcher publishes every dispatched event to one topic.
type TopicDispatcher struct {
	producer Producer
	topic    string
}

func NewTopicDispatcher(producer Producer, topic string) *TopicDispatcher {
	return &TopicDispatcher{producer: producer, topic: topic}
}

func (d *TopicDispatcher) Dispatch(ctx context.Context, event *models.Event) error {
	return d.producer.Publish(ctx, d.topic, event)
}
