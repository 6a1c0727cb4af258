package messaging

import (
	"context"

	"messaging/internal/constants"
	"messaging/internal/logger"
	apperrors "messaging/pkg/errors"
	"messaging/pkg/metrics"
	"messaging/pkg/models"
)

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Extension serializes every state-changing operation of a ResponseHandler
// through one goroutine.
type Extension struct {
	handler *ResponseHandler
	queue   chan task
	logger  logger.Logger
	stopped chan struct{}
}

func NewExtension(handler *ResponseHandler, queueSize int, log logger.Logger) *Extension {
	if queueSize <= 0 {
		queueSize = constants.EventQueueSize
	}
	return &Extension{
		handler: handler,
		queue:   make(chan task, queueSize),
		logger:  log,
		stopped: make(chan struct{}),
	}
}

func (e *Extension) Handler() *ResponseHandler {
	return e.handler
}

// Run drains the queue until ctx is cancelled.
func (e *Extension) Run(ctx context.Context) error {
	defer close(e.stopped)
	e.logger.InfowCtx(ctx, "Messaging event loop started")

	for {
		select {
		case <-ctx.Done():
			e.logger.InfowCtx(ctx, "Messaging event loop stopped")
			return nil
		case t := <-e.queue:
			metrics.EventQueueSize.Set(float64(len(e.queue)))
			err := apperrors.Guard(func() error {
				return t.fn(t.ctx)
			})
			if apperrors.IsPanic(err) {
				e.logger.ErrorwCtx(t.ctx, "Recovered panic in messaging event loop", "error", err)
			}
			t.done <- err
		}
	}
}

// do queues fn and waits for its result.
func (e *Extension) do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-e.stopped:
		return errStopped()
	default:
	}

	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case e.queue <- t:
		metrics.EventQueueSize.Set(float64(len(e.queue)))
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return errStopped()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		// the loop may have finished this task right before exiting
		select {
		case err := <-t.done:
			return err
		default:
			return errStopped()
		}
	}
}

func errStopped() error {
	return apperrors.ErrServiceUnavailable.WithMessage("messaging event loop is stopped")
}

func (e *Extension) Start(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context) error {
		e.handler.LoadCachedPropositions(ctx)
		return nil
	})
}

func (e *Extension) FetchMessages(ctx context.Context, surfaces []models.Surface) error {
	_, err := e.Fetch(ctx, surfaces)
	return err
}

// Fetch dispatches a personalization request and returns the request it sent,
// read on the event loop so concurrent fetches never see each other's id.
func (e *Extension) Fetch(ctx context.Context, surfaces []models.Surface) (FetchResult, error) {
	var res FetchResult
	err := e.do(ctx, func(ctx context.Context) error {
		r, err := e.handler.Fetch(ctx, surfaces)
		res = r
		return err
	})
	if err != nil {
		return FetchResult{}, err
	}
	return res, nil
}

// RefreshMessages re-fetches the app surface.
func (e *Extension) RefreshMessages(ctx context.Context) error {
	return e.FetchMessages(ctx, nil)
}

func (e *Extension) Reset(ctx context.Context) error {
	return e.do(ctx, e.handler.Reset)
}

// ProcessEvent evaluates an app event and returns the messages it produced.
func (e *Extension) ProcessEvent(ctx context.Context, event *models.Event) ([]*Message, error) {
	var messages []*Message
	err := e.do(ctx, func(ctx context.Context) error {
		var err error
		messages, err = e.handler.ProcessEvent(ctx, event)
		return err
	})
	return messages, err
}

// HandleEvent routes an event received from the broker: personalization
// responses go to the handler, control events refresh or reset, anything
// else is evaluated as an app event.
func (e *Extension) HandleEvent(ctx context.Context, event *models.Event) error {
	switch {
	case event.IsPersonalizationDecision():
		return e.do(ctx, func(ctx context.Context) error {
			return e.handler.HandleEdgePersonalizationNotification(ctx, event)
		})
	case event.Name == models.EventNameControl:
		return e.HandleControlEvent(ctx, event)
	default:
		_, err := e.ProcessEvent(ctx, event)
		return err
	}
}

// HandleControlEvent applies a refresh or reset request.
func (e *Extension) HandleControlEvent(ctx context.Context, event *models.Event) error {
	control, err := models.ControlEventFromEvent(event)
	if err != nil {
		e.logger.WarnwCtx(ctx, "Ignoring invalid control event", "id", event.ID, "error", err)
		return nil
	}

	e.logger.InfowCtx(ctx, "Applying control event",
		"action", control.Action,
		"surfaces", control.Surfaces,
		"changed_by", control.ChangedBy,
	)

	switch control.Action {
	case models.ControlActionReset:
		return e.Reset(ctx)
	default:
		if len(control.Surfaces) == 0 {
			return e.RefreshMessages(ctx)
		}
		return e.FetchMessages(ctx, e.handler.ResolveSurfaces(control.Surfaces))
	}
}
