package messaging

import (
	"context"

	"messaging/internal/rules"
	"messaging/pkg/datareader"
	apperrors "messaging/pkg/errors"
	"messaging/pkg/metrics"
	"messaging/pkg/models"
)

// Presenter displays in-app messages. Rendering is up to the implementation.
type Presenter interface {
	Show(ctx context.Context, msg *Message) error
}

// Message is an in-app message built from a matched rule consequence.
type Message struct {
	ID               string                  `json:"id"`
	HTML             string                  `json:"html"`
	MobileParameters map[string]interface{}  `json:"mobileParameters,omitempty"`
	AssetMap         map[string]string       `json:"assetMap,omitempty"`
	PropositionInfo  *models.PropositionInfo `json:"propositionInfo,omitempty"`
	AutoTrack        bool                    `json:"autoTrack"`

	handler *ResponseHandler
}

// Track reports an interaction for the message. Messages without tracking
// info cannot be tracked.
func (m *Message) Track(ctx context.Context, interaction string, eventType EdgeEventType) error {
	if m.PropositionInfo == nil {
		return apperrors.ErrValidation.
			WithMessage("message has no proposition info").
			WithDetail("message_id", m.ID)
	}
	return m.handler.SendPropositionInteraction(ctx, interaction, eventType, m.PropositionInfo, "")
}

// Dismiss records the dismissal, sending dismiss tracking when auto-track is on.
func (m *Message) Dismiss(ctx context.Context) error {
	metrics.MessagesTotal.WithLabelValues("dismissed").Inc()
	if !m.AutoTrack {
		return nil
	}
	return m.Track(ctx, "", EdgeEventDismiss)
}

// CreateInAppMessage builds a message from an in-app consequence, binds its
// tracking info and asks the presenter to show it.
func (h *ResponseHandler) CreateInAppMessage(ctx context.Context, consequence rules.Consequence) (*Message, error) {
	if !ClassifyConsequence(consequence).IsInApp {
		metrics.MessagesTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.ErrValidation.
			WithMessage("consequence is not an in-app message").
			WithDetail("consequence_id", consequence.ID).
			WithDetail("type", consequence.Type)
	}
	if h.presenter == nil {
		h.logger.WarnwCtx(ctx, "Unable to show in-app message, no presenter is available",
			"consequence_id", consequence.ID,
		)
		metrics.MessagesTotal.WithLabelValues("no_presenter").Inc()
		return nil, apperrors.ErrServiceUnavailable.WithMessage("no message presenter available")
	}

	html, params := messageContent(consequence)
	if html == "" {
		metrics.MessagesTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.ErrValidation.
			WithMessage("in-app message has no html content").
			WithDetail("consequence_id", consequence.ID)
	}

	msg := &Message{
		ID:               consequence.ID,
		HTML:             html,
		MobileParameters: params,
		AutoTrack:        h.autoTrack,
		handler:          h,
	}
	if info, ok := h.PropositionInfo(consequence.ID); ok {
		msg.PropositionInfo = &info
	} else {
		h.logger.DebugwCtx(ctx, "No proposition info for in-app message, tracking disabled",
			"consequence_id", consequence.ID,
		)
	}
	if h.assets != nil {
		msg.AssetMap = assetMapFor(h.assets.Snapshot(), RemoteAssets(consequence))
	}

	if msg.AutoTrack && msg.PropositionInfo != nil {
		if err := msg.Track(ctx, "", EdgeEventTrigger); err != nil {
			h.logger.WarnwCtx(ctx, "Failed to track message trigger",
				"message_id", msg.ID,
				"error", err,
			)
		}
	}

	if err := h.presenter.Show(ctx, msg); err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		return msg, apperrors.ErrInternal.WithMessage("failed to show in-app message").WithCause(err)
	}
	metrics.MessagesTotal.WithLabelValues("shown").Inc()
	return msg, nil
}

// messageContent reads html and mobile parameters from a legacy detail or
// from the data object of a schema based one.
func messageContent(c rules.Consequence) (string, map[string]interface{}) {
	detail := datareader.Reader(c.Detail)
	html := detail.String("html", "")
	params := detail.Map("mobileParameters")

	if data := detail.Reader("data"); data != nil {
		if html == "" {
			html = data.String("content", "")
		}
		if params == nil {
			params = data.Map("mobileParameters")
		}
	}
	return html, datareader.CopyMap(params)
}

func assetMapFor(snapshot map[string]string, urls []string) map[string]string {
	if len(urls) == 0 {
		return nil
	}
	out := make(map[string]string, len(urls))
	for _, u := range urls {
		if p, ok := snapshot[u]; ok {
			out[u] = p
		}
	}
	return out
}
