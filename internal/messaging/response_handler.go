package messaging

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"messaging/internal/logger"
	"messaging/internal/rules"
	apperrors "messaging/pkg/errors"
	"messaging/pkg/logging"
	"messaging/pkg/metrics"
	"messaging/pkg/models"
	"messaging/pkg/tracing"
)

// Dispatcher sends events towards the edge network.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.Event) error
}

// PropositionStore is the durable surface to propositions cache.
type PropositionStore interface {
	GetCachedPropositions(ctx context.Context) map[models.Surface][]models.Proposition
	UpdateSurfaces(ctx context.Context, propositions map[models.Surface][]models.Proposition, surfacesToRemove []models.Surface) error
	ClearCachedData(ctx context.Context) error
}

// AssetCache retains image assets referenced by in-app messages.
type AssetCache interface {
	CacheImageAssets(ctx context.Context, urls []string)
	Snapshot() map[string]string
	Clear(ctx context.Context)
}

// HandlerOptions carries the collaborators of a ResponseHandler. Assets and
// Presenter are optional.
type HandlerOptions struct {
	AppSurface  models.Surface
	Dispatcher  Dispatcher
	Classifier  *Classifier
	InAppEngine *rules.Engine
	FeedEngine  *rules.FeedEngine
	Store       PropositionStore
	Assets      AssetCache
	Presenter   Presenter
	AutoTrack   bool
	DatasetID   string
	Logger      logger.Logger
}

// ResponseHandler requests propositions, correlates responses with the last
// request and keeps the rules engines, in-memory state and durable cache in
// step with them.
type ResponseHandler struct {
	appSurface  models.Surface
	dispatcher  Dispatcher
	classifier  *Classifier
	inAppEngine *rules.Engine
	feedEngine  *rules.FeedEngine
	store       PropositionStore
	assets      AssetCache
	presenter   Presenter
	autoTrack   bool
	datasetID   string
	logger      logger.Logger

	mu                          sync.RWMutex
	lastRequestEventID          string
	requestedSurfaces           []models.Surface
	lastProcessedRequestEventID string
	inMemoryPropositions        map[models.Surface][]models.Proposition
	inAppPropositions           map[models.Surface][]models.Proposition
	propositionInfo             map[string]models.PropositionInfo
	inAppRules                  map[models.Surface][]rules.Rule
	feedRules                   map[models.Surface][]rules.Rule
	feedInbound                 map[models.Surface][]models.Inbound
	registry                    map[string]models.Proposition
}

func NewResponseHandler(opts HandlerOptions) *ResponseHandler {
	return &ResponseHandler{
		appSurface:           opts.AppSurface,
		dispatcher:           opts.Dispatcher,
		classifier:           opts.Classifier,
		inAppEngine:          opts.InAppEngine,
		feedEngine:           opts.FeedEngine,
		store:                opts.Store,
		assets:               opts.Assets,
		presenter:            opts.Presenter,
		autoTrack:            opts.AutoTrack,
		datasetID:            opts.DatasetID,
		logger:               opts.Logger,
		inMemoryPropositions: make(map[models.Surface][]models.Proposition),
		inAppPropositions:    make(map[models.Surface][]models.Proposition),
		propositionInfo:      make(map[string]models.PropositionInfo),
		inAppRules:           make(map[models.Surface][]rules.Rule),
		feedRules:            make(map[models.Surface][]rules.Rule),
		feedInbound:          make(map[models.Surface][]models.Inbound),
		registry:             make(map[string]models.Proposition),
	}
}

// FetchResult identifies a dispatched personalization request.
type FetchResult struct {
	RequestEventID string
	Surfaces       []models.Surface
}

// FetchMessages dispatches a personalization request for surfaces, or for the
// app surface when none are given. Invalid surfaces are dropped; when none
// remain the request is not sent.
func (h *ResponseHandler) FetchMessages(ctx context.Context, surfaces []models.Surface) error {
	_, err := h.Fetch(ctx, surfaces)
	return err
}

// Fetch is FetchMessages returning the request it dispatched. The result is
// zero when nothing was sent.
func (h *ResponseHandler) Fetch(ctx context.Context, surfaces []models.Surface) (FetchResult, error) {
	if len(surfaces) == 0 {
		surfaces = []models.Surface{h.appSurface}
	}

	valid := make([]models.Surface, 0, len(surfaces))
	seen := make(map[models.Surface]struct{}, len(surfaces))
	for _, s := range surfaces {
		if !s.Valid() {
			h.logger.DebugwCtx(ctx, "Dropping invalid surface from request", "surface", s.URI)
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		h.logger.WarnwCtx(ctx, "Unable to fetch messages, no valid surfaces were provided")
		return FetchResult{}, nil
	}
	tracing.AnnotateSurfaces(ctx, valid)

	event := models.NewEventBuilder(models.EventTypeEdge, models.EventSourceRequestContent).
		WithName(models.EventNameRefreshMessages).
		WithTraceID(logging.GetTraceID(ctx)).
		WithData(map[string]interface{}{
			"xdm": map[string]interface{}{
				"eventType": xdmEventTypePersonalizationRequest,
			},
			"query": map[string]interface{}{
				"personalization": map[string]interface{}{
					"surfaces": models.SurfaceURIs(valid),
				},
			},
			"request": map[string]interface{}{
				"sendCompletion": true,
			},
		}).
		Build()

	h.mu.Lock()
	h.lastRequestEventID = event.ID
	h.requestedSurfaces = valid
	h.mu.Unlock()

	ctx = logging.WithRequestEventID(ctx, event.ID)
	if err := h.dispatcher.Dispatch(ctx, event); err != nil {
		return FetchResult{}, apperrors.ErrServiceUnavailable.WithMessage("failed to dispatch personalization request").WithCause(err)
	}

	h.logger.InfowCtx(ctx, "Requested propositions", "surfaces", models.SurfaceURIs(valid))
	return FetchResult{
		RequestEventID: event.ID,
		Surfaces:       append([]models.Surface(nil), valid...),
	}, nil
}

// ResolveSurfaces turns surface paths relative to the app surface, or full
// URIs, into valid surfaces. URIs of other schemes are dropped.
func (h *ResponseHandler) ResolveSurfaces(values []string) []models.Surface {
	uris := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "://") {
			uris = append(uris, v)
			continue
		}
		uris = append(uris, strings.TrimSuffix(h.appSurface.URI, "/")+"/"+strings.Trim(v, "/"))
	}
	return models.SurfacesFromURIs(uris)
}

// LastRequestEventID returns the id of the latest dispatched request.
func (h *ResponseHandler) LastRequestEventID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastRequestEventID
}

func (h *ResponseHandler) RequestedSurfaces() []models.Surface {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.Surface(nil), h.requestedSurfaces...)
}

// HandleEdgePersonalizationNotification applies a personalization:decisions
// response. Responses to anything but the latest request are ignored. The
// first response to a request clears that request's surfaces; later ones
// merge into them.
func (h *ResponseHandler) HandleEdgePersonalizationNotification(ctx context.Context, event *models.Event) error {
	start := time.Now()
	if event == nil {
		return apperrors.ErrValidation.WithMessage("event is required")
	}
	ctx = logging.WithRequestEventID(logging.WithEventID(ctx, event.ID), event.RequestEventID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if event.RequestEventID == "" || event.RequestEventID != h.lastRequestEventID {
		h.logger.DebugwCtx(ctx, "Ignoring personalization response for a request that is not the latest",
			"latest_request_event_id", h.lastRequestEventID,
		)
		metrics.ObserveResponseDuration(time.Since(start), "stale")
		return nil
	}

	requested := append([]models.Surface(nil), h.requestedSurfaces...)
	if event.RequestEventID != h.lastProcessedRequestEventID {
		h.clearSurfacesLocked(requested)
		h.lastProcessedRequestEventID = event.RequestEventID
	}

	payload, _ := event.Data["payload"].([]interface{})
	if len(payload) == 0 {
		h.logger.InfowCtx(ctx, "Empty personalization payload, clearing requested surfaces",
			"surfaces", models.SurfaceURIs(requested),
		)
		h.clearSurfacesLocked(requested)
		h.applyLocked(ctx, event, requested)
		metrics.ObserveResponseDuration(time.Since(start), "empty")
		return nil
	}

	propositions := ParsePropositions(payload, h.logger)
	parsed := NewParsedPropositions(GroupBySurface(propositions), requested, h.classifier, h.logger)
	h.mergeLocked(parsed)
	h.applyLocked(ctx, event, requested)

	h.logger.InfowCtx(ctx, "Processed personalization response",
		"propositions", len(propositions),
		"rules", parsed.RuleCount(),
		"surfaces", models.SurfaceURIs(requested),
	)
	metrics.ObserveResponseDuration(time.Since(start), "processed")
	return nil
}

func (h *ResponseHandler) clearSurfacesLocked(surfaces []models.Surface) {
	for _, s := range surfaces {
		delete(h.inMemoryPropositions, s)
		delete(h.inAppPropositions, s)
		delete(h.inAppRules, s)
		delete(h.feedRules, s)
		delete(h.feedInbound, s)
	}
	cleared := make(map[models.Surface]struct{}, len(surfaces))
	for _, s := range surfaces {
		cleared[s] = struct{}{}
	}
	for id, info := range h.propositionInfo {
		if _, ok := cleared[info.Surface()]; ok {
			delete(h.propositionInfo, id)
		}
	}
	for id, p := range h.registry {
		if _, ok := cleared[p.Surface()]; ok {
			delete(h.registry, id)
		}
	}
}

func (h *ResponseHandler) mergeLocked(parsed *ParsedPropositions) {
	for id, info := range parsed.PropositionInfoToCache {
		h.propositionInfo[id] = info
	}
	for s, props := range parsed.PropositionsToCache {
		h.inMemoryPropositions[s] = mergePropositions(h.inMemoryPropositions[s], props)
		h.register(props)
	}
	for s, props := range parsed.PropositionsToPersist {
		h.inAppPropositions[s] = mergePropositions(h.inAppPropositions[s], props)
		h.register(props)
	}

	for inboundType, bySurface := range parsed.SurfaceRulesByInboundType {
		switch inboundType {
		case models.InboundTypeInApp:
			for s, r := range bySurface {
				h.inAppRules[s] = rules.MergeRules(h.inAppRules[s], r)
			}
		case models.InboundTypeFeed, models.InboundTypeContentCard:
			for s, r := range bySurface {
				h.feedRules[s] = rules.MergeRules(h.feedRules[s], r)
			}
		default:
			for s, r := range bySurface {
				h.logger.Debugw("Ignoring rules with an unsupported inbound type",
					"inbound_type", inboundType,
					"surface", s.URI,
					"rules", len(r),
				)
			}
		}
	}
}

func (h *ResponseHandler) register(props []models.Proposition) {
	for _, p := range props {
		h.registry[p.UniqueID] = p
	}
}

// applyLocked pushes state into the engines, resolves feed content against
// the triggering event and persists the in-app propositions of surfaces.
func (h *ResponseHandler) applyLocked(ctx context.Context, event *models.Event, surfaces []models.Surface) {
	h.inAppEngine.ReplaceRules(flattenRules(h.inAppRules))
	h.feedEngine.ReplaceRules(h.feedRules)

	if event != nil {
		inbound := h.feedEngine.Evaluate(ctx, event)
		for s, items := range inbound {
			h.feedInbound[s] = items
		}
		for s := range h.feedInbound {
			if _, ok := inbound[s]; !ok {
				delete(h.feedInbound, s)
			}
		}
	}

	persist := make(map[models.Surface][]models.Proposition, len(surfaces))
	for _, s := range surfaces {
		if props := h.inAppPropositions[s]; len(props) > 0 {
			persist[s] = props
		}
	}
	if h.store != nil {
		if err := h.store.UpdateSurfaces(ctx, persist, surfaces); err != nil {
			h.logger.WarnwCtx(ctx, "Failed to update proposition cache", "error", err)
		}
	}

	h.retainAssetsLocked(ctx)
}

// retainAssetsLocked hands the asset cache the remote assets of every loaded
// in-app rule.
func (h *ResponseHandler) retainAssetsLocked(ctx context.Context) {
	if h.assets == nil {
		return
	}
	var urls []string
	for _, surfaceRules := range h.inAppRules {
		for _, rule := range surfaceRules {
			for _, c := range rule.Consequences {
				if ClassifyConsequence(c).IsInApp {
					urls = append(urls, RemoteAssets(c)...)
				}
			}
		}
	}
	h.assets.CacheImageAssets(ctx, urls)
}

// LoadCachedPropositions restores in-app rules and tracking info from the
// durable cache.
func (h *ResponseHandler) LoadCachedPropositions(ctx context.Context) int {
	if h.store == nil {
		return 0
	}
	cached := h.store.GetCachedPropositions(ctx)
	if len(cached) == 0 {
		return 0
	}

	surfaces := make([]models.Surface, 0, len(cached))
	for s := range cached {
		surfaces = append(surfaces, s)
	}
	parsed := NewParsedPropositions(cached, surfaces, h.classifier, h.logger)

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, info := range parsed.PropositionInfoToCache {
		h.propositionInfo[id] = info
	}
	for s, props := range parsed.PropositionsToPersist {
		h.inAppPropositions[s] = mergePropositions(h.inAppPropositions[s], props)
		h.register(props)
	}
	for s, r := range parsed.SurfaceRulesByInboundType[models.InboundTypeInApp] {
		h.inAppRules[s] = rules.MergeRules(h.inAppRules[s], r)
	}
	h.inAppEngine.ReplaceRules(flattenRules(h.inAppRules))
	h.retainAssetsLocked(ctx)

	h.logger.InfowCtx(ctx, "Loaded cached propositions",
		"surfaces", len(surfaces),
		"rules", len(h.inAppEngine.Rules()),
	)
	return len(surfaces)
}

// Reset drops all in-memory state, the durable cache and cached assets.
func (h *ResponseHandler) Reset(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastRequestEventID = ""
	h.lastProcessedRequestEventID = ""
	h.requestedSurfaces = nil
	h.inMemoryPropositions = make(map[models.Surface][]models.Proposition)
	h.inAppPropositions = make(map[models.Surface][]models.Proposition)
	h.propositionInfo = make(map[string]models.PropositionInfo)
	h.inAppRules = make(map[models.Surface][]rules.Rule)
	h.feedRules = make(map[models.Surface][]rules.Rule)
	h.feedInbound = make(map[models.Surface][]models.Inbound)
	h.registry = make(map[string]models.Proposition)

	h.inAppEngine.ReplaceRules(nil)
	h.feedEngine.ReplaceRules(nil)
	if h.assets != nil {
		h.assets.Clear(ctx)
	}
	if h.store != nil {
		if err := h.store.ClearCachedData(ctx); err != nil {
			return err
		}
	}
	h.logger.InfowCtx(ctx, "Messaging state reset")
	return nil
}

// SurfaceContent is what is held in memory for one surface.
type SurfaceContent struct {
	Propositions []models.Proposition `json:"propositions"`
	Inbound      []models.Inbound     `json:"inbound,omitempty"`
}

// GetPropositionsForSurfaces returns code-based propositions and resolved
// feed content for the valid surfaces given.
func (h *ResponseHandler) GetPropositionsForSurfaces(surfaces []models.Surface) map[models.Surface]SurfaceContent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[models.Surface]SurfaceContent, len(surfaces))
	for _, s := range surfaces {
		if !s.Valid() {
			continue
		}
		props := h.inMemoryPropositions[s]
		inbound := h.feedInbound[s]
		if len(props) == 0 && len(inbound) == 0 {
			continue
		}
		out[s] = SurfaceContent{
			Propositions: append([]models.Proposition(nil), props...),
			Inbound:      append([]models.Inbound(nil), inbound...),
		}
	}
	return out
}

// PropositionInfo looks up tracking info by consequence id.
func (h *ResponseHandler) PropositionInfo(id string) (models.PropositionInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info, ok := h.propositionInfo[id]
	return info, ok
}

// Proposition resolves a loaded proposition by id.
func (h *ResponseHandler) Proposition(id string) (models.Proposition, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.registry[id]
	return p, ok
}

// ParentOf resolves the proposition owning item.
func (h *ResponseHandler) ParentOf(item models.PropositionItem) (models.Proposition, bool) {
	return h.Proposition(item.PropositionID)
}

// ProcessEvent runs an app event through the in-app rules and turns matched
// in-app consequences into messages.
func (h *ResponseHandler) ProcessEvent(ctx context.Context, event *models.Event) ([]*Message, error) {
	if err := models.ValidateEvent(event); err != nil {
		return nil, apperrors.ErrValidation.WithCause(err)
	}
	ctx = logging.WithEventID(ctx, event.ID)

	var messages []*Message
	for _, consequence := range h.inAppEngine.Process(ctx, event) {
		if !ClassifyConsequence(consequence).IsInApp {
			continue
		}
		msg, err := h.CreateInAppMessage(ctx, consequence)
		if err != nil {
			h.logger.WarnwCtx(ctx, "Unable to create in-app message",
				"consequence_id", consequence.ID,
				"error", err,
			)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// flattenRules concatenates rules in surface URI order.
func flattenRules(bySurface map[models.Surface][]rules.Rule) []rules.Rule {
	surfaces := make([]models.Surface, 0, len(bySurface))
	for s := range bySurface {
		surfaces = append(surfaces, s)
	}
	sort.Slice(surfaces, func(i, j int) bool { return surfaces[i].URI < surfaces[j].URI })

	var out []rules.Rule
	for _, s := range surfaces {
		out = append(out, bySurface[s]...)
	}
	return out
}

// mergePropositions appends the propositions of add not yet present by id.
func mergePropositions(base, add []models.Proposition) []models.Proposition {
	out := append([]models.Proposition(nil), base...)
	for _, p := range add {
		if !containsProposition(out, p.UniqueID) {
			out = append(out, p)
		}
	}
	return out
}
