package models

import "time"

// ControlEvent asks a running service to refresh its messages or to drop all
// cached messaging state.
type ControlEvent struct {
	Action    string    `json:"action"`
	Surfaces  []string  `json:"surfaces,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

const (
	ControlActionRefresh = "refresh"
	ControlActionReset   = "reset"
)

// ControlEventFromEvent reads a control event carried in the data of a
// broker event.
func ControlEventFromEvent(event *Event) (*ControlEvent, error) {
	if event == nil {
		return nil, &ValidationError{Field: "event", Message: "event cannot be nil"}
	}
	control := &ControlEvent{Timestamp: event.Timestamp}
	if action, ok := event.Data["action"].(string); ok {
		control.Action = action
	}
	if changedBy, ok := event.Data["changed_by"].(string); ok {
		control.ChangedBy = changedBy
	}
	switch surfaces := event.Data["surfaces"].(type) {
	case []string:
		control.Surfaces = append(control.Surfaces, surfaces...)
	case []interface{}:
		for _, s := range surfaces {
			if uri, ok := s.(string); ok {
				control.Surfaces = append(control.Surfaces, uri)
			}
		}
	}
	if err := ValidateControlEvent(control); err != nil {
		return nil, err
	}
	return control, nil
}

// ToEvent wraps the control event for transport over the broker.
func (c ControlEvent) ToEvent() *Event {
	data := map[string]interface{}{"action": c.Action}
	if len(c.Surfaces) > 0 {
		data["surfaces"] = append([]string(nil), c.Surfaces...)
	}
	if c.ChangedBy != "" {
		data["changed_by"] = c.ChangedBy
	}
	return NewEventBuilder(EventTypeMessaging, EventSourceRequestContent).
		WithName(EventNameControl).
		WithTimestamp(c.Timestamp).
		WithData(data).
		Build()
}
