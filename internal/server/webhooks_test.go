package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/config"
	"nexus/internal/engine"
)

type delivery struct {
	header http.Header
	body   webhookEvent
}

type hookSink struct {
	mu       sync.Mutex
	received []delivery
	status   int
}

func (s *hookSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var evt webhookEvent
	_ = json.Unmarshal(data, &evt)
	s.mu.Lock()
	s.received = append(s.received, delivery{header: r.Header.Clone(), body: evt})
	status := s.status
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (s *hookSink) deliveries() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.received...)
}

func TestWebhookDispatchFiltersAndAdvances(t *testing.T) {
	s := newTestServer(t)
	sink := &hookSink{}
	hook := httptest.NewServer(sink)
	t.Cleanup(hook.Close)

	e := s.app.Engine
	e.Config.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"channel.create"}, Secret: "s3"}}
	d := newWebhookDispatcher(e, s.app.Log)
	ctx := context.Background()

	// Events recorded before the dispatcher first looks are skipped.
	d.dispatchAll(ctx)
	assert.Empty(t, sink.deliveries())

	registerZoe(t, e)
	_, err := e.CreateChannel(ctx, "alerts", operator)
	require.NoError(t, err)

	d.dispatchAll(ctx)
	got := sink.deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "channel.create", got[0].body.Type)
	assert.Equal(t, "channel.create", got[0].header.Get("X-Nexus-Event"))
	assert.Equal(t, "s3", got[0].header.Get("X-Nexus-Secret"))
	assert.NotEmpty(t, got[0].header.Get("X-Nexus-Delivery"))

	d.dispatchAll(ctx)
	assert.Len(t, sink.deliveries(), 1)
}

func TestWebhookFailureRetriesSameEvent(t *testing.T) {
	s := newTestServer(t)
	sink := &hookSink{status: http.StatusBadGateway}
	hook := httptest.NewServer(sink)
	t.Cleanup(hook.Close)

	e := s.app.Engine
	e.Config.Webhooks = []config.WebhookConfig{{URL: hook.URL}}
	d := newWebhookDispatcher(e, s.app.Log)
	ctx := context.Background()
	d.dispatchAll(ctx)

	registerZoe(t, e)
	d.dispatchAll(ctx)
	first := sink.deliveries()
	require.Len(t, first, 1)

	sink.mu.Lock()
	sink.status = http.StatusOK
	sink.mu.Unlock()
	d.dispatchAll(ctx)
	all := sink.deliveries()
	require.GreaterOrEqual(t, len(all), 2)
	assert.Equal(t, first[0].body.ID, all[1].body.ID)
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("anything"))
	assert.True(t, newEventFilter([]string{" ", ""}).match("anything"))
	f := newEventFilter([]string{"task.claim"})
	assert.True(t, f.match("task.claim"))
	assert.False(t, f.match("task.create"))
}

func registerZoe(t *testing.T, e engine.Engine) {
	t.Helper()
	_, err := e.RegisterAgent(context.Background(), engine.RegisterOptions{
		AgentID: "zoe-1", Name: "Zoe", Role: "zoe", Identity: operator,
	})
	require.NoError(t, err)
}
