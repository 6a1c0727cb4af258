package messaging

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging/internal/logger"
	"messaging/pkg/errors"
	"messaging/pkg/models"
)

// FetchRequest lists surfaces to fetch, as paths relative to the app surface
// or full mobileapp URIs. Empty means the app surface.
type FetchRequest struct {
	Surfaces []string `json:"surfaces"`
}

type FetchResponse struct {
	RequestEventID string   `json:"request_event_id"`
	Surfaces       []string `json:"surfaces"`
}

// InteractionRequest reports an interaction either for an in-app message
// (message_id) or for an item of a proposition (proposition_id, item_id).
type InteractionRequest struct {
	MessageID     string `json:"message_id"`
	PropositionID string `json:"proposition_id"`
	ItemID        string `json:"item_id"`
	EventType     string `json:"event_type" binding:"required"`
	Interaction   string `json:"interaction"`
}

// AppEventRequest is an app event evaluated against the in-app rules.
type AppEventRequest struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Source string                 `json:"source"`
	Data   map[string]interface{} `json:"data"`
}

type AppEventResponse struct {
	Messages []*Message `json:"messages"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type Handler struct {
	Extension *Extension
	Logger    logger.Logger
}

func NewHandler(ext *Extension, log logger.Logger) *Handler {
	return &Handler{Extension: ext, Logger: log}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		messages := v1.Group("/messages")
		{
			messages.POST("/fetch", h.FetchMessages)
			messages.POST("/reset", h.Reset)
		}

		v1.GET("/propositions", h.GetPropositions)
		v1.POST("/interactions", h.TrackInteraction)
		v1.POST("/events", h.ProcessEvent)
	}
}

// FetchMessages godoc
// @Summary      Fetch messages
// @Description  Dispatch a personalization request for the given surfaces, or the app surface when none are given
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        request  body      FetchRequest  false  "Surfaces to fetch"
// @Success      202      {object}  FetchResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /messages/fetch [post]
func (h *Handler) FetchMessages(c *gin.Context) {
	var req FetchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
			return
		}
	}

	handler := h.Extension.Handler()
	var surfaces []models.Surface
	if len(req.Surfaces) > 0 {
		surfaces = handler.ResolveSurfaces(req.Surfaces)
		if len(surfaces) == 0 {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
				errors.ErrValidation.WithMessage("no valid surfaces in request"),
			))
			return
		}
	}

	res, err := h.Extension.Fetch(c.Request.Context(), surfaces)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, FetchResponse{
		RequestEventID: res.RequestEventID,
		Surfaces:       models.SurfaceURIs(res.Surfaces),
	})
}

// GetPropositions godoc
// @Summary      Get propositions for surfaces
// @Description  Return code-based propositions and feed content held in memory, keyed by surface URI
// @Tags         propositions
// @Produce      json
// @Param        surface  query     []string  true  "Surface paths or URIs"  collectionFormat(multi)
// @Success      200      {object}  map[string]SurfaceContent
// @Failure      400      {object}  errors.ErrorResponse
// @Router       /propositions [get]
func (h *Handler) GetPropositions(c *gin.Context) {
	handler := h.Extension.Handler()
	surfaces := handler.ResolveSurfaces(c.QueryArray("surface"))
	if len(surfaces) == 0 {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithMessage("at least one valid surface is required"),
		))
		return
	}

	content := handler.GetPropositionsForSurfaces(surfaces)
	out := make(map[string]SurfaceContent, len(content))
	for s, sc := range content {
		out[s.URI] = sc
	}
	c.JSON(http.StatusOK, out)
}

// TrackInteraction godoc
// @Summary      Track a proposition interaction
// @Description  Send a display, interact, dismiss or other edge event for a message or proposition item
// @Tags         interactions
// @Accept       json
// @Produce      json
// @Param        interaction  body      InteractionRequest  true  "Interaction"
// @Success      202          {object}  StatusResponse
// @Failure      400          {object}  errors.ErrorResponse
// @Failure      404          {object}  errors.ErrorResponse
// @Failure      503          {object}  errors.ErrorResponse
// @Router       /interactions [post]
func (h *Handler) TrackInteraction(c *gin.Context) {
	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	eventType, err := ParseEdgeEventType(req.EventType)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	handler := h.Extension.Handler()
	ctx := c.Request.Context()
	switch {
	case req.MessageID != "":
		err = handler.TrackMessage(ctx, req.MessageID, req.Interaction, eventType)
	case req.PropositionID != "" && req.ItemID != "":
		err = handler.TrackItem(ctx, req.PropositionID, req.ItemID, req.Interaction, eventType)
	default:
		err = errors.ErrValidation.WithMessage("message_id or proposition_id with item_id is required")
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, StatusResponse{Status: "sent"})
}

// ProcessEvent godoc
// @Summary      Evaluate an app event
// @Description  Run an app event through the in-app rules and return the messages it triggered
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        event  body      AppEventRequest  true  "App event"
// @Success      200    {object}  AppEventResponse
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /events [post]
func (h *Handler) ProcessEvent(c *gin.Context) {
	var req AppEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	eventType := req.Type
	if eventType == "" {
		eventType = models.EventTypeGeneric
	}
	source := req.Source
	if source == "" {
		source = models.EventSourceRequestContent
	}
	event := models.NewEventBuilder(eventType, source).
		WithID(req.ID).
		WithName(req.Name).
		WithTimestamp(time.Now().UTC()).
		WithData(req.Data).
		Build()

	messages, err := h.Extension.ProcessEvent(c.Request.Context(), event)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if messages == nil {
		messages = []*Message{}
	}

	c.JSON(http.StatusOK, AppEventResponse{Messages: messages})
}

// Reset godoc
// @Summary      Reset messaging state
// @Description  Drop in-memory propositions, rules, the durable cache and cached assets
// @Tags         messages
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /messages/reset [post]
func (h *Handler) Reset(c *gin.Context) {
	if err := h.Extension.Reset(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: "reset"})
}
