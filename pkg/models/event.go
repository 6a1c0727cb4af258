package models

import "time"

// Event types and sources exchanged with the edge network and the rules engine.
const (
	EventTypeEdge        = "com.adobe.eventType.edge"
	EventTypeMessaging   = "com.adobe.eventType.messaging"
	EventTypeRulesEngine = "com.adobe.eventType.rulesEngine"
	EventTypeGeneric     = "com.adobe.eventType.generic.track"

	EventSourceRequestContent        = "com.adobe.eventSource.requestContent"
	EventSourceResponseContent       = "com.adobe.eventSource.responseContent"
	EventSourcePersonalizationDecide = "personalization:decisions"
)

const (
	EventNameRefreshMessages     = "Retrieve message definitions"
	EventNameTrackInteraction    = "Messaging interaction event"
	EventNamePersonalizationResp = "AEP Response Event Handle"
	EventNameControl             = "Messaging control event"
)

// Event is the unit exchanged over the broker: personalization requests going
// out, decision responses and app events coming in.
type Event struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name,omitempty"`
	Type           string                 `json:"type"`
	Source         string                 `json:"source"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestEventID string                 `json:"request_event_id,omitempty"`
	Data           map[string]interface{} `json:"data"`
	Metadata       Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID     string            `json:"trace_id,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Annotate sets a metadata annotation, allocating the map on first use.
func (e *Event) Annotate(key, value string) {
	if e.Metadata.Annotations == nil {
		e.Metadata.Annotations = make(map[string]string)
	}
	e.Metadata.Annotations[key] = value
}

func (e *Event) GetDataField(name string) (interface{}, bool) {
	if e.Data == nil {
		return nil, false
	}
	value, ok := e.Data[name]
	return value, ok
}

func (e *Event) SetDataField(name string, value interface{}) {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[name] = value
}

// IsPersonalizationDecision reports whether the event carries an edge
// personalization:decisions response.
func (e *Event) IsPersonalizationDecision() bool {
	return e.Type == EventTypeEdge && e.Source == EventSourcePersonalizationDecide
}
