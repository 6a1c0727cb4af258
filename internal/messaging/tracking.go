package messaging

import (
	"context"
	"fmt"
	"strings"

	apperrors "messaging/pkg/errors"
	"messaging/pkg/metrics"
	"messaging/pkg/models"
)

// EdgeEventType is the kind of proposition interaction reported to the edge.
type EdgeEventType string

const (
	EdgeEventDismiss         EdgeEventType = "dismiss"
	EdgeEventInteract        EdgeEventType = "interact"
	EdgeEventTrigger         EdgeEventType = "trigger"
	EdgeEventDisplay         EdgeEventType = "display"
	EdgeEventDisqualify      EdgeEventType = "disqualify"
	EdgeEventSuppressDisplay EdgeEventType = "suppressDisplay"
)

const (
	xdmEventTypePersonalizationRequest = "personalization.request"
	xdmEventTypePrefix                 = "decisioning.proposition"
)

var edgeEventTypes = []EdgeEventType{
	EdgeEventDismiss,
	EdgeEventInteract,
	EdgeEventTrigger,
	EdgeEventDisplay,
	EdgeEventDisqualify,
	EdgeEventSuppressDisplay,
}

// ParseEdgeEventType accepts the propositionEventType key in any case.
func ParseEdgeEventType(s string) (EdgeEventType, error) {
	for _, t := range edgeEventTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", apperrors.ErrValidation.
		WithMessage(fmt.Sprintf("unknown interaction event type %q", s)).
		WithDetail("field", "event_type")
}

// XDMEventType is the xdm.eventType value, e.g. decisioning.propositionDisplay.
func (t EdgeEventType) XDMEventType() string {
	key := string(t)
	if key == "" {
		return xdmEventTypePrefix
	}
	return xdmEventTypePrefix + strings.ToUpper(key[:1]) + key[1:]
}

// PropositionEventKey is the key set in propositionEventType.
func (t EdgeEventType) PropositionEventKey() string {
	return string(t)
}

// Interaction describes one proposition interaction to report.
type Interaction struct {
	EventType   EdgeEventType
	Interaction string
	Info        *models.PropositionInfo
	ItemID      string
}

// BuildInteractionEvent renders the experience event for an interaction.
func BuildInteractionEvent(in Interaction, datasetID string) (*models.Event, error) {
	if in.Info == nil {
		return nil, apperrors.ErrValidation.WithMessage("proposition info is required for tracking")
	}

	proposition := in.Info.ToXDM()
	if in.ItemID != "" {
		proposition["items"] = []interface{}{
			map[string]interface{}{"id": in.ItemID},
		}
	}

	decisioning := map[string]interface{}{
		"propositions": []interface{}{proposition},
		"propositionEventType": map[string]interface{}{
			in.EventType.PropositionEventKey(): 1,
		},
	}
	if in.Interaction != "" {
		decisioning["propositionAction"] = map[string]interface{}{
			"id":    in.Interaction,
			"label": in.Interaction,
		}
	}

	data := map[string]interface{}{
		"xdm": map[string]interface{}{
			"eventType": in.EventType.XDMEventType(),
			"_experience": map[string]interface{}{
				"decisioning": decisioning,
			},
		},
	}
	if datasetID != "" {
		data["meta"] = map[string]interface{}{
			"collect": map[string]interface{}{"datasetId": datasetID},
		}
	}

	return models.NewEventBuilder(models.EventTypeEdge, models.EventSourceRequestContent).
		WithName(models.EventNameTrackInteraction).
		WithData(data).
		Build(), nil
}

// SendPropositionInteraction dispatches an interaction event for the
// proposition described by info.
func (h *ResponseHandler) SendPropositionInteraction(ctx context.Context, interaction string, eventType EdgeEventType, info *models.PropositionInfo, itemID string) error {
	event, err := BuildInteractionEvent(Interaction{
		EventType:   eventType,
		Interaction: interaction,
		Info:        info,
		ItemID:      itemID,
	}, h.datasetID)
	if err != nil {
		metrics.InteractionsTotal.WithLabelValues(string(eventType), "invalid").Inc()
		return err
	}

	if err := h.dispatcher.Dispatch(ctx, event); err != nil {
		metrics.InteractionsTotal.WithLabelValues(string(eventType), "error").Inc()
		return apperrors.ErrServiceUnavailable.WithMessage("failed to dispatch interaction").WithCause(err)
	}

	metrics.InteractionsTotal.WithLabelValues(string(eventType), "sent").Inc()
	h.logger.DebugwCtx(ctx, "Dispatched proposition interaction",
		"event_type", eventType.XDMEventType(),
		"proposition_id", info.ID,
		"interaction", interaction,
	)
	return nil
}

// TrackMessage reports an interaction for a loaded in-app message by its
// consequence id.
func (h *ResponseHandler) TrackMessage(ctx context.Context, messageID, interaction string, eventType EdgeEventType) error {
	info, ok := h.PropositionInfo(messageID)
	if !ok {
		return apperrors.ErrNotFound.
			WithMessage("no tracking info for message").
			WithDetail("message_id", messageID)
	}
	return h.SendPropositionInteraction(ctx, interaction, eventType, &info, "")
}

// TrackItem reports an interaction for a proposition item held in memory,
// resolving the owning proposition through the registry.
func (h *ResponseHandler) TrackItem(ctx context.Context, propositionID, itemID, interaction string, eventType EdgeEventType) error {
	p, ok := h.Proposition(propositionID)
	if !ok {
		return apperrors.ErrNotFound.
			WithMessage("proposition is not loaded").
			WithDetail("proposition_id", propositionID)
	}
	if itemID != "" {
		if _, ok := p.Item(itemID); !ok {
			return apperrors.ErrNotFound.
				WithMessage("item does not belong to proposition").
				WithDetail("proposition_id", propositionID).
				WithDetail("item_id", itemID)
		}
	}
	info, err := models.NewPropositionInfo(&p)
	if err != nil {
		return err
	}
	return h.SendPropositionInteraction(ctx, interaction, eventType, info, itemID)
}
