package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging/internal/logger"
	apperrors "messaging/pkg/errors"
	"messaging/pkg/models"
)

func startExtension(t *testing.T, env *testEnv) *Extension {
	t.Helper()
	ext := NewExtension(env.handler, 8, logger.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ext.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ext
}

func TestExtensionRoutesEvents(t *testing.T) {
	env := newTestEnv(t)
	ext := startExtension(t, env)
	ctx := context.Background()

	require.NoError(t, ext.FetchMessages(ctx, []models.Surface{promoSurface}))
	requestID := env.handler.LastRequestEventID()
	require.NotEmpty(t, requestID)

	require.NoError(t, ext.HandleEvent(ctx, responseEvent(requestID, inAppProposition("p1", "m1", promoSurface))))
	_, ok := env.handler.PropositionInfo("m1")
	require.True(t, ok)

	require.NoError(t, ext.HandleEvent(ctx, appEvent("open")))
	assert.Len(t, env.presenter.shown, 1)

	messages, err := ext.ProcessEvent(ctx, appEvent("open"))
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestExtensionControlEvents(t *testing.T) {
	env := newTestEnv(t)
	ext := startExtension(t, env)
	ctx := context.Background()

	refresh := models.ControlEvent{
		Action:    models.ControlActionRefresh,
		Surfaces:  []string{"promos", otherSurface.URI},
		Timestamp: time.Now().UTC(),
		ChangedBy: "ops",
	}
	require.NoError(t, ext.HandleEvent(ctx, refresh.ToEvent()))
	assert.Equal(t, []models.Surface{promoSurface, otherSurface}, env.handler.RequestedSurfaces())

	appRefresh := models.ControlEvent{Action: models.ControlActionRefresh, Timestamp: time.Now().UTC()}
	require.NoError(t, ext.HandleEvent(ctx, appRefresh.ToEvent()))
	assert.Equal(t, []models.Surface{appSurface}, env.handler.RequestedSurfaces())

	requestID := env.handler.LastRequestEventID()
	require.NoError(t, ext.HandleEvent(ctx, responseEvent(requestID, inAppProposition("p1", "m1", appSurface))))
	_, ok := env.handler.PropositionInfo("m1")
	require.True(t, ok)

	reset := models.ControlEvent{Action: models.ControlActionReset, Timestamp: time.Now().UTC()}
	require.NoError(t, ext.HandleEvent(ctx, reset.ToEvent()))
	_, ok = env.handler.PropositionInfo("m1")
	assert.False(t, ok)
	assert.Empty(t, env.handler.LastRequestEventID())

	invalid := models.ControlEvent{Action: "explode", Timestamp: time.Now().UTC()}
	assert.NoError(t, ext.HandleEvent(ctx, invalid.ToEvent()))
}

func TestExtensionStartLoadsCache(t *testing.T) {
	first := newTestEnv(t)
	requestID := first.fetch(t, promoSurface)
	first.respond(t, requestID, inAppProposition("p1", "m1", promoSurface))

	restarted := newTestEnvWithFs(t, first.fs)
	ext := startExtension(t, restarted)

	require.NoError(t, ext.Start(context.Background()))
	_, ok := restarted.handler.PropositionInfo("m1")
	assert.True(t, ok)
}

func TestExtensionRecoversPanics(t *testing.T) {
	env := newTestEnv(t)
	ext := startExtension(t, env)
	ctx := context.Background()

	err := ext.do(ctx, func(context.Context) error { panic("boom") })
	assert.True(t, apperrors.IsPanic(err))

	assert.NoError(t, ext.RefreshMessages(ctx), "loop keeps running after a panic")
}

func TestExtensionStopped(t *testing.T) {
	env := newTestEnv(t)
	ext := NewExtension(env.handler, 1, logger.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ext.Run(ctx))

	// fill the queue so the only way out is the stopped signal
	ext.queue <- task{}
	err := ext.RefreshMessages(context.Background())
	assert.True(t, apperrors.IsServiceUnavailable(err))
}

func TestExtensionStoppedWithFreeQueue(t *testing.T) {
	env := newTestEnv(t)
	ext := NewExtension(env.handler, 8, logger.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ext.Run(ctx))

	for i := 0; i < 20; i++ {
		errc := make(chan error, 1)
		go func() { errc <- ext.RefreshMessages(context.Background()) }()

		select {
		case err := <-errc:
			assert.True(t, apperrors.IsServiceUnavailable(err))
		case <-time.After(time.Second):
			t.Fatal("call blocked after the event loop stopped")
		}
	}
	assert.Nil(t, env.dispatcher.last())
}
