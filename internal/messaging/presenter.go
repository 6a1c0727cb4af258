package messaging

import (
	"context"

	"messaging/internal/logger"
)

// LogPresenter records shown messages in the service log. The service has no
// screen of its own; hosts read created messages from the HTTP API.
type LogPresenter struct {
	Logger logger.Logger
}

func (p LogPresenter) Show(ctx context.Context, msg *Message) error {
	p.Logger.InfowCtx(ctx, "In-app message shown",
		"message_id", msg.ID,
		"assets", len(msg.AssetMap),
		"tracked", msg.PropositionInfo != nil,
	)
	return nil
}
