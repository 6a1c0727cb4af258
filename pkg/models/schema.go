package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateEvent(event *Event) error {
	if event == nil {
		return &ValidationError{Field: "event", Message: "event cannot be nil"}
	}
	if event.ID == "" {
		return &ValidationError{Field: "id", Message: "event ID is required"}
	}
	if event.Type == "" {
		return &ValidationError{Field: "type", Message: "event type is required"}
	}
	if event.Source == "" {
		return &ValidationError{Field: "source", Message: "event source is required"}
	}
	if event.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "event timestamp is required"}
	}
	return nil
}

func ValidateControlEvent(event *ControlEvent) error {
	if event == nil {
		return &ValidationError{Field: "event", Message: "control event cannot be nil"}
	}
	switch event.Action {
	case ControlActionRefresh, ControlActionReset:
		return nil
	case "":
		return &ValidationError{Field: "action", Message: "action is required"}
	default:
		return &ValidationError{Field: "action", Message: fmt.Sprintf("unsupported action %q", event.Action)}
	}
}
