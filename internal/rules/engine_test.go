package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging/internal/logger"
	"messaging/pkg/models"
)

func trackEvent(action string) *models.Event {
	return models.NewEventBuilder(models.EventTypeGeneric, models.EventSourceRequestContent).
		WithData(map[string]interface{}{"action": action}).
		Build()
}

func TestEngineReplaceAddProcess(t *testing.T) {
	p := newTestParser(t)
	engine := NewEngine("inapp", newTestEvaluator(t), logger.NopLogger())

	first, err := p.Parse(ruleset(t,
		ruleJSON(t, "action", "open", map[string]interface{}{"id": "m1", "type": "cjmiam"}),
	))
	require.NoError(t, err)
	second, err := p.Parse(ruleset(t,
		ruleJSON(t, "action", "open", map[string]interface{}{"id": "m2", "type": "cjmiam"}),
		ruleJSON(t, "action", "close", map[string]interface{}{"id": "m3", "type": "cjmiam"}),
	))
	require.NoError(t, err)

	engine.ReplaceRules(first)
	got := engine.Process(context.Background(), trackEvent("OPEN"))
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)

	engine.AddRules(second)
	engine.AddRules(second)
	assert.Len(t, engine.Rules(), 3)

	got = engine.Process(context.Background(), trackEvent("open"))
	assert.Equal(t, []string{"m1", "m2"}, []string{got[0].ID, got[1].ID})

	engine.ReplaceRules(second)
	got = engine.Process(context.Background(), trackEvent("open"))
	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0].ID)

	assert.Empty(t, engine.Process(context.Background(), trackEvent("other")))
}

func TestFeedEngineEvaluate(t *testing.T) {
	p := newTestParser(t)
	feed := NewFeedEngine("feed", newTestEvaluator(t), logger.NopLogger())

	feedRules, err := p.Parse(ruleset(t,
		ruleJSON(t, "~type", models.EventTypeEdge, map[string]interface{}{
			"id":   "f1",
			"type": "schema",
			"detail": map[string]interface{}{
				"schema": models.SchemaFeedItem,
				"data": map[string]interface{}{
					"content":       map[string]interface{}{"title": "t", "body": "b"},
					"publishedDate": 1,
					"expiryDate":    2,
				},
			},
		}),
		ruleJSON(t, "~type", models.EventTypeEdge, map[string]interface{}{
			"id":     "broken",
			"type":   "schema",
			"detail": map[string]interface{}{"schema": models.SchemaFeedItem},
		}),
	))
	require.NoError(t, err)

	surface := models.SurfaceFromURI("mobileapp://app/feed")
	feed.ReplaceRules(map[models.Surface][]Rule{surface: feedRules})
	assert.Equal(t, 2, feed.RuleCount())

	event := models.NewEventBuilder(models.EventTypeEdge, models.EventSourcePersonalizationDecide).Build()
	out := feed.Evaluate(context.Background(), event)
	require.Len(t, out[surface], 1)
	assert.Equal(t, "f1", out[surface][0].UniqueID)
	assert.Equal(t, models.InboundTypeFeed, out[surface][0].InboundType)

	feed.ReplaceRules(nil)
	assert.Empty(t, feed.Evaluate(context.Background(), event))
}
