package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"messaging/internal/cache"
	"messaging/internal/logger"
	"messaging/internal/rules"
	"messaging/pkg/cel"
	"messaging/pkg/models"
)

const testAppID = "com.example.app"

var (
	appSurface   = models.NewSurface(testAppID, "")
	promoSurface = models.NewSurface(testAppID, "promos")
	otherSurface = models.NewSurface(testAppID, "other")
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event *models.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) last() *models.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.events) == 0 {
		return nil
	}
	return d.events[len(d.events)-1]
}

func (d *recordingDispatcher) byName(name string) []*models.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*models.Event
	for _, e := range d.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type fakePresenter struct {
	mu    sync.Mutex
	shown []*Message
	err   error
}

func (p *fakePresenter) Show(_ context.Context, msg *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.shown = append(p.shown, msg)
	return nil
}

type fakeAssets struct {
	mu       sync.Mutex
	retained [][]string
	paths    map[string]string
	cleared  int
}

func (a *fakeAssets) CacheImageAssets(_ context.Context, urls []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.retained = append(a.retained, append([]string(nil), urls...))
}

func (a *fakeAssets) Snapshot() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.paths))
	for k, v := range a.paths {
		out[k] = v
	}
	return out
}

func (a *fakeAssets) Clear(context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleared++
}

func (a *fakeAssets) lastRetained() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.retained) == 0 {
		return nil
	}
	return a.retained[len(a.retained)-1]
}

type testEnv struct {
	handler    *ResponseHandler
	dispatcher *recordingDispatcher
	presenter  *fakePresenter
	assets     *fakeAssets
	store      *cache.PropositionCache
	fs         afero.Fs
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	parser, err := rules.NewParser(evaluator, logger.NopLogger())
	require.NoError(t, err)
	return NewClassifier(parser)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs := afero.NewMemMapFs()
	return newTestEnvWithFs(t, fs)
}

func newTestEnvWithFs(t *testing.T, fs afero.Fs) *testEnv {
	t.Helper()
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	parser, err := rules.NewParser(evaluator, logger.NopLogger())
	require.NoError(t, err)

	env := &testEnv{
		dispatcher: &recordingDispatcher{},
		presenter:  &fakePresenter{},
		assets:     &fakeAssets{paths: map[string]string{}},
		store:      cache.NewPropositionCache(cache.NewFileStore(fs, "/data"), logger.NopLogger()),
		fs:         fs,
	}
	env.handler = NewResponseHandler(HandlerOptions{
		AppSurface:  appSurface,
		Dispatcher:  env.dispatcher,
		Classifier:  NewClassifier(parser),
		InAppEngine: rules.NewEngine("inapp", evaluator, logger.NopLogger()),
		FeedEngine:  rules.NewFeedEngine("feed", evaluator, logger.NopLogger()),
		Store:       env.store,
		Assets:      env.assets,
		Presenter:   env.presenter,
		AutoTrack:   true,
		DatasetID:   "ds-1",
		Logger:      logger.NopLogger(),
	})
	return env
}

// fetch requests surfaces and returns the request event id.
func (e *testEnv) fetch(t *testing.T, surfaces ...models.Surface) string {
	t.Helper()
	require.NoError(t, e.handler.FetchMessages(context.Background(), surfaces))
	return e.handler.LastRequestEventID()
}

func (e *testEnv) respond(t *testing.T, requestID string, payload ...interface{}) {
	t.Helper()
	require.NoError(t, e.handler.HandleEdgePersonalizationNotification(context.Background(), responseEvent(requestID, payload...)))
}

func responseEvent(requestID string, payload ...interface{}) *models.Event {
	if payload == nil {
		payload = []interface{}{}
	}
	return models.NewEventBuilder(models.EventTypeEdge, models.EventSourcePersonalizationDecide).
		WithName(models.EventNamePersonalizationResp).
		WithRequestEventID(requestID).
		WithData(map[string]interface{}{"payload": payload}).
		Build()
}

func propositionRaw(id string, surface models.Surface, items ...interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":    id,
		"scope": surface.URI,
		"scopeDetails": map[string]interface{}{
			"correlationID": "corr-" + id,
			"activity":      map[string]interface{}{"id": "act-" + id},
		},
		"items": items,
	}
}

func itemRaw(id, schema string, content interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":     id,
		"schema": schema,
		"data": map[string]interface{}{
			"id":      id,
			"content": content,
		},
	}
}

func matcherCondition(key, value string) map[string]interface{} {
	return map[string]interface{}{
		"type": "group",
		"definition": map[string]interface{}{
			"logic": "and",
			"conditions": []interface{}{
				map[string]interface{}{
					"type": "matcher",
					"definition": map[string]interface{}{
						"key":     key,
						"matcher": "eq",
						"values":  []interface{}{value},
					},
				},
			},
		},
	}
}

func ruleSet(rs ...map[string]interface{}) map[string]interface{} {
	list := make([]interface{}, 0, len(rs))
	for _, r := range rs {
		list = append(list, r)
	}
	return map[string]interface{}{"version": 1, "rules": list}
}

// inAppRule matches app events whose action equals action.
func inAppRule(consequenceID, action string, assets ...string) map[string]interface{} {
	remote := make([]interface{}, 0, len(assets))
	for _, a := range assets {
		remote = append(remote, a)
	}
	return map[string]interface{}{
		"condition": matcherCondition("action", action),
		"consequences": []interface{}{
			map[string]interface{}{
				"id":   consequenceID,
				"type": models.ConsequenceTypeSchema,
				"detail": map[string]interface{}{
					"schema": models.SchemaInApp,
					"data": map[string]interface{}{
						"content":          "<html>" + consequenceID + "</html>",
						"contentType":      models.ContentTypeHTML,
						"mobileParameters": map[string]interface{}{"template": "modal"},
						"remoteAssets":     remote,
					},
				},
			},
		},
	}
}

// feedRule matches every edge event.
func feedRule(consequenceID, title string) map[string]interface{} {
	return map[string]interface{}{
		"condition": matcherCondition(cel.KeyEventType, models.EventTypeEdge),
		"consequences": []interface{}{
			map[string]interface{}{
				"id":   consequenceID,
				"type": models.ConsequenceTypeSchema,
				"detail": map[string]interface{}{
					"schema": models.SchemaFeedItem,
					"data": map[string]interface{}{
						"content":       map[string]interface{}{"title": title, "body": "body"},
						"contentType":   models.ContentTypeJSON,
						"publishedDate": 1700000000,
						"expiryDate":    1900000000,
					},
				},
			},
		},
	}
}

func inAppProposition(id, consequenceID string, surface models.Surface, assets ...string) map[string]interface{} {
	return propositionRaw(id, surface,
		itemRaw(id+"-item", models.SchemaRuleset, ruleSet(inAppRule(consequenceID, "open", assets...))),
	)
}

func codeBasedProposition(id string, surface models.Surface) map[string]interface{} {
	return propositionRaw(id, surface,
		itemRaw(id+"-item", models.SchemaJSONContent, map[string]interface{}{"title": "code based " + id}),
	)
}

func decodePropositions(t *testing.T, raw ...interface{}) map[models.Surface][]models.Proposition {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	var payload []interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	return GroupBySurface(ParsePropositions(payload, logger.NopLogger()))
}

func appEvent(action string) *models.Event {
	return models.NewEventBuilder(models.EventTypeGeneric, models.EventSourceRequestContent).
		WithData(map[string]interface{}{"action": action}).
		Build()
}

var errDispatch = errors.New("broker unavailable")

func surfacesOf(event *models.Event) []string {
	query, _ := event.Data["query"].(map[string]interface{})
	personalization, _ := query["personalization"].(map[string]interface{})
	surfaces, _ := personalization["surfaces"].([]string)
	return surfaces
}
