package models

import (
	"time"

	"github.com/google/uuid"
)

type EventBuilder struct {
	event *Event
}

func NewEventBuilder(eventType, source string) *EventBuilder {
	return &EventBuilder{
		event: &Event{
			Type:   eventType,
			Source: source,
			Data:   make(map[string]interface{}),
		},
	}
}

func (b *EventBuilder) WithID(id string) *EventBuilder {
	b.event.ID = id
	return b
}

func (b *EventBuilder) WithName(name string) *EventBuilder {
	b.event.Name = name
	return b
}

func (b *EventBuilder) WithTimestamp(timestamp time.Time) *EventBuilder {
	b.event.Timestamp = timestamp
	return b
}

func (b *EventBuilder) WithData(data map[string]interface{}) *EventBuilder {
	b.event.Data = data
	return b
}

func (b *EventBuilder) WithRequestEventID(requestEventID string) *EventBuilder {
	b.event.RequestEventID = requestEventID
	return b
}

func (b *EventBuilder) WithTraceID(traceID string) *EventBuilder {
	b.event.Metadata.TraceID = traceID
	return b
}

func (b *EventBuilder) Build() *Event {
	if b.event.ID == "" {
		b.event.ID = uuid.NewString()
	}
	if b.event.Timestamp.IsZero() {
		b.event.Timestamp = time.Now().UTC()
	}
	if b.event.Data == nil {
		b.event.Data = make(map[string]interface{})
	}
	return b.event
}
