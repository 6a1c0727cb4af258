package cel

import (
	"encoding/json"
	"strconv"

	"messaging/pkg/models"
)

// Reserved keys added next to the flattened event data.
const (
	KeyEventType    = "~type"
	KeyEventSource  = "~source"
	KeyEventID      = "~id"
	KeyEventName    = "~name"
	KeyTimestampU   = "~timestampu"
	KeyTimestampZ   = "~timestampz"
	KeyRequestEvent = "~requestEventId"
)

// EventData flattens an event into the map conditions are evaluated against.
func EventData(event *models.Event) map[string]interface{} {
	data := FlattenData(event.Data)

	data[KeyEventType] = event.Type
	data[KeyEventSource] = event.Source
	data[KeyEventID] = event.ID
	if event.Name != "" {
		data[KeyEventName] = event.Name
	}
	if event.RequestEventID != "" {
		data[KeyRequestEvent] = event.RequestEventID
	}
	if !event.Timestamp.IsZero() {
		data[KeyTimestampU] = float64(event.Timestamp.Unix())
		data[KeyTimestampZ] = event.Timestamp.UTC().Format("2006-01-02T15:04:05Z")
	}
	return data
}

// FlattenData joins nested object keys with dots. Numbers become float64 so
// that numeric matchers compare them uniformly.
func FlattenData(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	flatten("", in, out)
	return out
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		if v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			out[key] = f
			continue
		}
		out[key] = v
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
