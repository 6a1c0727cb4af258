package messaging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging/internal/logger"
	"messaging/pkg/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *testEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestEnv(t)
	ext := startExtension(t, env)
	router := gin.New()
	NewHandler(ext, logger.NopLogger()).RegisterRoutes(router)
	return router, env
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPFetchMessages(t *testing.T) {
	router, env := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/messages/fetch", FetchRequest{Surfaces: []string{"promos"}})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp FetchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, env.handler.LastRequestEventID(), resp.RequestEventID)
	assert.Equal(t, []string{promoSurface.URI}, resp.Surfaces)

	w = doJSON(t, router, http.MethodPost, "/api/v1/messages/fetch", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []models.Surface{appSurface}, env.handler.RequestedSurfaces())

	w = doJSON(t, router, http.MethodPost, "/api/v1/messages/fetch", FetchRequest{Surfaces: []string{"https://bad"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPFetchMessagesConcurrentResponsesMatchTheirRequest(t *testing.T) {
	router, env := newTestRouter(t)

	const n = 16
	responses := make([]FetchResponse, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := doJSON(t, router, http.MethodPost, "/api/v1/messages/fetch", FetchRequest{Surfaces: []string{"s" + strconv.Itoa(i)}})
			if assert.Equal(t, http.StatusAccepted, w.Code) {
				assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &responses[i]))
			}
		}(i)
	}
	wg.Wait()

	env.dispatcher.mu.Lock()
	sent := make(map[string][]string, len(env.dispatcher.events))
	for _, e := range env.dispatcher.events {
		sent[e.ID] = surfacesOf(e)
	}
	env.dispatcher.mu.Unlock()
	require.Len(t, sent, n)

	for i, resp := range responses {
		want := models.NewSurface(testAppID, "s"+strconv.Itoa(i)).URI
		assert.Equal(t, []string{want}, resp.Surfaces)
		assert.Equal(t, []string{want}, sent[resp.RequestEventID], "response %d reported another request's id", i)
	}
}

func TestHTTPFetchMessagesDispatchFailure(t *testing.T) {
	router, env := newTestRouter(t)
	env.dispatcher.err = errDispatch

	w := doJSON(t, router, http.MethodPost, "/api/v1/messages/fetch", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHTTPGetPropositions(t *testing.T) {
	router, env := newTestRouter(t)
	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, codeBasedProposition("c1", promoSurface))

	w := doJSON(t, router, http.MethodGet, "/api/v1/propositions?surface=promos&surface=other", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]SurfaceContent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp, promoSurface.URI)
	assert.NotContains(t, resp, otherSurface.URI)
	assert.Equal(t, "c1", resp[promoSurface.URI].Propositions[0].UniqueID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/propositions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPTrackInteraction(t *testing.T) {
	router, env := newTestRouter(t)
	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, inAppProposition("p1", "m1", promoSurface), codeBasedProposition("c1", promoSurface))

	tests := []struct {
		name   string
		req    InteractionRequest
		status int
	}{
		{"message", InteractionRequest{MessageID: "m1", EventType: "interact", Interaction: "cta"}, http.StatusAccepted},
		{"item", InteractionRequest{PropositionID: "c1", ItemID: "c1-item", EventType: "display"}, http.StatusAccepted},
		{"unknown message", InteractionRequest{MessageID: "nope", EventType: "display"}, http.StatusNotFound},
		{"bad event type", InteractionRequest{MessageID: "m1", EventType: "clicked"}, http.StatusBadRequest},
		{"no target", InteractionRequest{EventType: "display"}, http.StatusBadRequest},
		{"missing event type", InteractionRequest{MessageID: "m1"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/interactions", tt.req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	assert.Len(t, env.dispatcher.byName(models.EventNameTrackInteraction), 2)
}

func TestHTTPProcessEvent(t *testing.T) {
	router, env := newTestRouter(t)
	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, inAppProposition("p1", "m1", promoSurface))

	w := doJSON(t, router, http.MethodPost, "/api/v1/events", AppEventRequest{Data: map[string]interface{}{"action": "open"}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AppEventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	require.NotNil(t, resp.Messages[0].PropositionInfo)
	assert.Equal(t, "p1", resp.Messages[0].PropositionInfo.ID)

	w = doJSON(t, router, http.MethodPost, "/api/v1/events", AppEventRequest{Data: map[string]interface{}{"action": "close"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Messages)
}

func TestHTTPReset(t *testing.T) {
	router, env := newTestRouter(t)
	requestID := env.fetch(t, promoSurface)
	env.respond(t, requestID, inAppProposition("p1", "m1", promoSurface))

	w := doJSON(t, router, http.MethodPost, "/api/v1/messages/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, ok := env.handler.PropositionInfo("m1")
	assert.False(t, ok)
}
