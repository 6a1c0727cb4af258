package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "messaging/pkg/errors"
	"messaging/pkg/models"
)

func TestFetchMessagesBuildsPersonalizationRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.handler.FetchMessages(ctx, []models.Surface{
		promoSurface,
		models.SurfaceFromURI("https://not-a-surface"),
		promoSurface,
		otherSurface,
	}))

	event := env.dispatcher.last()
	require.NotNil(t, event)
	assert.Equal(t, models.EventTypeEdge, event.Type)
	assert.Equal(t, models.EventSourceRequestContent, event.Source)
	assert.Equal(t, models.EventNameRefreshMessages, event.Name)
	assert.Equal(t, event.ID, env.handler.LastRequestEventID())

	xdm := event.Data["xdm"].(map[string]interface{})
	assert.Equal(t, "personalization.request", xdm["eventType"])
	query := event.Data["query"].(map[string]interface{})["personalization"].(map[string]interface{})
	assert.Equal(t, []string{promoSurface.URI, otherSurface.URI}, query["surfaces"])
	assert.Equal(t, true, event.Data["request"].(map[string]interface{})["sendCompletion"])
	assert.Equal(t, []models.Surface{promoSurface, otherSurface}, env.handler.RequestedSurfaces())
}

func TestFetchReturnsDispatchedRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.handler.Fetch(ctx, []models.Surface{promoSurface, promoSurface})
	require.NoError(t, err)
	event := env.dispatcher.last()
	require.NotNil(t, event)
	assert.Equal(t, event.ID, res.RequestEventID)
	assert.Equal(t, []models.Surface{promoSurface}, res.Surfaces)

	res, err = env.handler.Fetch(ctx, []models.Surface{models.SurfaceFromURI("bad")})
	require.NoError(t, err)
	assert.Equal(t, FetchResult{}, res)
	assert.Equal(t, event.ID, env.handler.LastRequestEventID())
}

func TestFetchMessagesDefaultsToAppSurface(t *testing.T) {
	env := newTestEnv(t)

	env.fetch(t)

	assert.Equal(t, []models.Surface{appSurface}, env.handler.RequestedSurfaces())
}

func TestFetchMessagesWithoutValidSurfacesSendsNothing(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.handler.FetchMessages(context.Background(), []models.Surface{models.SurfaceFromURI("bad")}))

	assert.Nil(t, env.dispatcher.last())
	assert.Empty(t, env.handler.LastRequestEventID())
}

func TestFetchMessagesDispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.err = errDispatch

	err := env.handler.FetchMessages(context.Background(), nil)

	assert.True(t, apperrors.IsServiceUnavailable(err))
}

func TestResolveSurfaces(t *testing.T) {
	env := newTestEnv(t)

	got := env.handler.ResolveSurfaces([]string{"promos", "/promos/", "mobileapp://com.example.app/other", "", "http://x"})

	assert.Equal(t, []models.Surface{promoSurface, otherSurface}, got)
}

func TestInAppResponseLoadsRulesInfoAndAssets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	requestID := env.fetch(t, promoSurface)

	env.respond(t, requestID, inAppProposition("p1", "m1", promoSurface, "http://x/a.png"))

	assert.Len(t, env.handler.inAppEngine.Rules(), 1)
	info, ok := env.handler.PropositionInfo("m1")
	require.True(t, ok)
	assert.Equal(t, "p1", info.ID)
	assert.Equal(t, []string{"http://x/a.png"}, env.assets.lastRetained())

	cached := env.store.GetCachedPropositions(ctx)
	require.Len(t, cached[promoSurface], 1)
	assert.Equal(t, "p1", cached[promoSurface][0].UniqueID)

	assert.Empty(t, env.handler.GetPropositionsForSurfaces([]models.Surface{promoSurface}))

	p, ok := env.handler.Proposition("p1")
	require.True(t, ok)
	parent, ok := env.handler.ParentOf(p.Items[0])
	require.True(t, ok)
	assert.Equal(t, "p1", parent.UniqueID)
}

func TestCodeBasedAndFeedContentIsHeldInMemory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	requestID := env.fetch(t, promoSurface, otherSurface)

	env.respond(t, requestID,
		codeBasedProposition("c1", promoSurface),
		propositionRaw("f1", otherSurface, itemRaw("fi", models.SchemaRuleset, ruleSet(feedRule("feed-1", "Hello")))),
	)

	content := env.handler.GetPropositionsForSurfaces([]models.Surface{promoSurface, otherSurface, appSurface})
	require.Len(t, content, 2)
	require.Len(t, content[promoSurface].Propositions, 1)
	assert.Equal(t, "c1", content[promoSurface].Propositions[0].UniqueID)

	require.Len(t, content[otherSurface].Inbound, 1)
	inbound := content[otherSurface].Inbound[0]
	assert.Equal(t, "feed-1", inbound.UniqueID)
	assert.Equal(t, models.InboundTypeFeed, inbound.InboundType)

	assert.Nil(t, env.store.GetCachedPropositions(ctx))
}

func TestStaleResponsesAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.fetch(t, promoSurface)

	env.respond(t, "some-other-request", inAppProposition("p1", "m1", promoSurface))
	env.respond(t, "", inAppProposition("p1", "m1", promoSurface))

	_, ok := env.handler.PropositionInfo("m1")
	assert.False(t, ok)
	assert.Empty(t, env.handler.inAppEngine.Rules())
}

func TestSameRequestMergesNewRequestClears(t *testing.T) {
	env := newTestEnv(t)

	first := env.fetch(t, promoSurface)
	env.respond(t, first, inAppProposition("p1", "m1", promoSurface))
	env.respond(t, first, inAppProposition("p2", "m2", promoSurface))

	_, ok := env.handler.PropositionInfo("m1")
	assert.True(t, ok, "second response for the same request merges")
	_, ok = env.handler.PropositionInfo("m2")
	assert.True(t, ok)
	assert.Len(t, env.handler.inAppEngine.Rules(), 2)
	assert.Len(t, env.store.GetCachedPropositions(context.Background())[promoSurface], 2)

	second := env.fetch(t, promoSurface)
	env.respond(t, second, inAppProposition("p3", "m3", promoSurface))

	_, ok = env.handler.PropositionInfo("m1")
	assert.False(t, ok, "new request clears the surface first")
	_, ok = env.handler.PropositionInfo("m2")
	assert.False(t, ok)
	_, ok = env.handler.PropositionInfo("m3")
	assert.True(t, ok)
	assert.Len(t, env.handler.inAppEngine.Rules(), 1)
}

func TestNewRequestOnlyClearsRequestedSurfaces(t *testing.T) {
	env := newTestEnv(t)

	first := env.fetch(t, promoSurface, otherSurface)
	env.respond(t, first,
		inAppProposition("p1", "m1", promoSurface),
		inAppProposition("p2", "m2", otherSurface),
	)

	second := env.fetch(t, promoSurface)
	env.respond(t, second, inAppProposition("p3", "m3", promoSurface))

	_, ok := env.handler.PropositionInfo("m1")
	assert.False(t, ok)
	_, ok = env.handler.PropositionInfo("m2")
	assert.True(t, ok)

	cached := env.store.GetCachedPropositions(context.Background())
	assert.Equal(t, "p3", cached[promoSurface][0].UniqueID)
	assert.Equal(t, "p2", cached[otherSurface][0].UniqueID)
}

func TestEmptyPayloadClearsSurface(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.fetch(t, promoSurface)
	env.respond(t, first, inAppProposition("p1", "m1", promoSurface, "http://x/a.png"))
	require.NotNil(t, env.store.GetCachedPropositions(ctx))

	second := env.fetch(t, promoSurface)
	env.respond(t, second)

	assert.Nil(t, env.store.GetCachedPropositions(ctx))
	_, ok := env.handler.PropositionInfo("m1")
	assert.False(t, ok)
	assert.Empty(t, env.handler.inAppEngine.Rules())
	assert.Empty(t, env.assets.lastRetained())
}

func TestEmptyPayloadForSameRequestAlsoClears(t *testing.T) {
	env := newTestEnv(t)

	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, inAppProposition("p1", "m1", promoSurface))
	env.respond(t, requestID)

	_, ok := env.handler.PropositionInfo("m1")
	assert.False(t, ok)
}

func TestUnrequestedScopesAreNotLoaded(t *testing.T) {
	env := newTestEnv(t)

	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, inAppProposition("p1", "m1", otherSurface))

	_, ok := env.handler.PropositionInfo("m1")
	assert.False(t, ok)
	assert.Nil(t, env.store.GetCachedPropositions(context.Background()))
}

func TestUnparseableRuleIsCachedAsCodeBased(t *testing.T) {
	env := newTestEnv(t)

	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, propositionRaw("p1", promoSurface, itemRaw("i1", models.SchemaRuleset, "{not json")))

	content := env.handler.GetPropositionsForSurfaces([]models.Surface{promoSurface})
	require.Len(t, content[promoSurface].Propositions, 1)
	assert.Empty(t, env.handler.inAppEngine.Rules())
	assert.Equal(t, 0, env.handler.feedEngine.RuleCount())
}

func TestLoadCachedPropositionsRestoresInAppState(t *testing.T) {
	first := newTestEnv(t)
	requestID := first.fetch(t, promoSurface)
	first.respond(t, requestID, inAppProposition("p1", "m1", promoSurface, "http://x/a.png"))

	restarted := newTestEnvWithFs(t, first.fs)
	n := restarted.handler.LoadCachedPropositions(context.Background())

	assert.Equal(t, 1, n)
	assert.Len(t, restarted.handler.inAppEngine.Rules(), 1)
	_, ok := restarted.handler.PropositionInfo("m1")
	assert.True(t, ok)
	assert.Equal(t, []string{"http://x/a.png"}, restarted.assets.lastRetained())
}

func TestLoadCachedPropositionsWithEmptyCache(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, 0, env.handler.LoadCachedPropositions(context.Background()))
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, inAppProposition("p1", "m1", promoSurface), codeBasedProposition("c1", promoSurface))

	require.NoError(t, env.handler.Reset(ctx))

	assert.Empty(t, env.handler.LastRequestEventID())
	assert.Empty(t, env.handler.inAppEngine.Rules())
	assert.Empty(t, env.handler.GetPropositionsForSurfaces([]models.Surface{promoSurface}))
	assert.Nil(t, env.store.GetCachedPropositions(ctx))
	assert.Equal(t, 1, env.assets.cleared)

	// a late response to the request issued before the reset is stale
	env.respond(t, requestID, inAppProposition("p1", "m1", promoSurface))
	_, ok := env.handler.PropositionInfo("m1")
	assert.False(t, ok)
}

func TestProcessEventCreatesMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.assets.paths["http://x/a.png"] = "/data/images/a.png"

	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, inAppProposition("p1", "m1", promoSurface, "http://x/a.png"))

	messages, err := env.handler.ProcessEvent(ctx, appEvent("close"))
	require.NoError(t, err)
	assert.Empty(t, messages)

	messages, err = env.handler.ProcessEvent(ctx, appEvent("open"))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, map[string]string{"http://x/a.png": "/data/images/a.png"}, messages[0].AssetMap)
	assert.Len(t, env.presenter.shown, 1)
}

func TestProcessEventRejectsInvalidEvent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.handler.ProcessEvent(context.Background(), &models.Event{})

	assert.True(t, apperrors.IsValidation(err))
}
