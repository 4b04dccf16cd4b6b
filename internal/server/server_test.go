package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/app"
	"nexus/internal/config"
	"nexus/internal/domain"
)

const (
	testSecret = "test-secret"
	operator   = "op"
)

type testServer struct {
	*httptest.Server
	app *app.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Operators = []string{operator}
	a, err := app.Open(context.Background(), app.Options{
		Workspace: t.TempDir(),
		Config:    cfg,
		LogOutput: io.Discard,
	})
	require.NoError(t, err)
	handler, err := New(Config{
		Engine:   a.Engine,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, DevLogin: true, Logger: a.Log},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return &testServer{Server: srv, app: a}
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func bearer(t *testing.T, identity string) map[string]string {
	t.Helper()
	token, err := signDevToken(testSecret, identity, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *testServer) call(t *testing.T, method, path string, body any, headers map[string]string, want int) []byte {
	t.Helper()
	res, data := doJSON(t, method, s.URL+"/v0"+path, body, headers)
	require.Equalf(t, want, res.StatusCode, "%s %s: %s", method, path, data)
	return data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Error.Code
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	s.call(t, http.MethodGet, "/health", nil, nil, http.StatusOK)

	data := s.call(t, http.MethodGet, "/me", nil, nil, http.StatusUnauthorized)
	assert.Equal(t, "unauthorized", errorCode(t, data))

	data = s.call(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized)
	assert.Equal(t, "invalid_credentials", errorCode(t, data))

	data = s.call(t, http.MethodGet, "/me", nil, map[string]string{"X-Api-Key": "nx_missing"}, http.StatusUnauthorized)
	assert.Equal(t, "invalid_credentials", errorCode(t, data))

	data = s.call(t, http.MethodPost, "/auth/dev/login", DevLoginRequest{Identity: "dev"}, nil, http.StatusOK)
	login := decode[DevLoginResponse](t, data)
	require.NotEmpty(t, login.Token)

	data = s.call(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + login.Token}, http.StatusOK)
	me := decode[MeResponse](t, data)
	assert.Equal(t, "dev", me.Identity)
	assert.Equal(t, domain.RoleZeno, me.Role)
	assert.Nil(t, me.Agent)
}

func TestAPIKeyAuthentication(t *testing.T) {
	s := newTestServer(t)
	op := bearer(t, operator)
	s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "zoe-1", Name: "Zoe", Role: "zoe"}, op, http.StatusCreated)

	data := s.call(t, http.MethodPost, "/api-keys", CreateAPIKeyRequest{Name: "ci"}, op, http.StatusCreated)
	var key struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(data, &key))
	require.NotEmpty(t, key.Key)

	withKey := map[string]string{"X-Api-Key": key.Key}
	data = s.call(t, http.MethodGet, "/me", nil, withKey, http.StatusOK)
	me := decode[MeResponse](t, data)
	assert.Equal(t, operator, me.Identity)
	assert.Equal(t, domain.RoleZoe, me.Role)
	require.NotNil(t, me.Agent)
	assert.Equal(t, "zoe-1", me.Agent.ID)

	data = s.call(t, http.MethodGet, "/api-keys", nil, op, http.StatusOK)
	assert.Len(t, decode[[]domain.APIKey](t, data), 1)

	s.call(t, http.MethodPost, "/api-keys", CreateAPIKeyRequest{Identity: operator}, bearer(t, "other"), http.StatusForbidden)

	s.call(t, http.MethodDelete, "/api-keys/"+key.ID, nil, op, http.StatusNoContent)
	s.call(t, http.MethodGet, "/me", nil, withKey, http.StatusUnauthorized)
}

func TestGovernanceFlow(t *testing.T) {
	s := newTestServer(t)
	op := bearer(t, operator)
	s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "zoe-1", Name: "Zoe", Role: "zoe"}, op, http.StatusCreated)

	voters := make([]map[string]string, 5)
	for i := range voters {
		identity := fmt.Sprintf("z%d", i)
		voters[i] = bearer(t, identity)
		s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "agent-" + identity, Name: identity}, voters[i], http.StatusCreated)
	}

	data := s.call(t, http.MethodGet, "/thresholds", nil, op, http.StatusOK)
	th := decode[ThresholdsResponse](t, data)
	assert.Equal(t, 5, th.Thresholds.Quorum)

	data = s.call(t, http.MethodPost, "/ideas", ProposeIdeaRequest{Title: "indexer"}, op, http.StatusCreated)
	idea := decode[domain.Idea](t, data)
	assert.Equal(t, domain.IdeaVoting, idea.Status)
	assert.Equal(t, 6, idea.ActiveAgentCount)

	ideaPath := fmt.Sprintf("/ideas/%d/votes", idea.ID)
	for _, h := range voters {
		data = s.call(t, http.MethodPost, ideaPath, VoteRequest{Type: "up"}, h, http.StatusOK)
	}
	idea = decode[domain.Idea](t, data)
	assert.Equal(t, domain.IdeaApprovedForProject, idea.Status)

	data = s.call(t, http.MethodPost, ideaPath, VoteRequest{Type: "up"}, op, http.StatusConflict)
	assert.Equal(t, "invalid_state", errorCode(t, data))

	s.call(t, http.MethodPost, "/projects", CreateProjectRequest{SourceIdeaID: idea.ID, Name: "indexer"}, voters[0], http.StatusForbidden)
	data = s.call(t, http.MethodPost, "/projects", CreateProjectRequest{SourceIdeaID: idea.ID, Name: "indexer"}, op, http.StatusCreated)
	project := decode[domain.Project](t, data)

	data = s.call(t, http.MethodPost, fmt.Sprintf("/projects/%d/tasks", project.ID), CreateTaskRequest{Title: "schema", Priority: 3}, op, http.StatusCreated)
	task := decode[domain.Task](t, data)
	assert.Equal(t, domain.TaskOpen, task.Status)

	taskPath := fmt.Sprintf("/tasks/%d", task.ID)
	data = s.call(t, http.MethodPost, taskPath+"/status", TaskStatusRequest{Status: "review"}, op, http.StatusUnprocessableEntity)
	assert.Equal(t, "invalid_transition", errorCode(t, data))

	data = s.call(t, http.MethodPost, taskPath+"/claim", nil, voters[0], http.StatusOK)
	assert.Equal(t, domain.TaskClaimed, decode[domain.Task](t, data).Status)
	s.call(t, http.MethodPost, taskPath+"/claim", nil, voters[1], http.StatusConflict)

	s.call(t, http.MethodPost, taskPath+"/status", TaskStatusRequest{Status: "in_progress"}, voters[1], http.StatusForbidden)
	for _, status := range []string{"in_progress", "review"} {
		s.call(t, http.MethodPost, taskPath+"/status", TaskStatusRequest{Status: status}, voters[0], http.StatusOK)
	}
	s.call(t, http.MethodPost, taskPath+"/status", TaskStatusRequest{Status: "completed"}, voters[0], http.StatusForbidden)
	data = s.call(t, http.MethodPost, taskPath+"/status", TaskStatusRequest{Status: "completed"}, op, http.StatusOK)
	done := decode[domain.Task](t, data)
	assert.Equal(t, domain.TaskCompleted, done.Status)
	assert.Equal(t, 1, done.ReviewCount)

	data = s.call(t, http.MethodGet, fmt.Sprintf("/tasks?project_id=%d&status=completed", project.ID), nil, op, http.StatusOK)
	assert.Len(t, decode[[]domain.Task](t, data), 1)

	s.call(t, http.MethodGet, "/tasks/9999", nil, op, http.StatusNotFound)
	s.call(t, http.MethodPost, "/ideas", ProposeIdeaRequest{}, op, http.StatusBadRequest)
}

func TestDependenciesAndDiscoveries(t *testing.T) {
	s := newTestServer(t)
	op := bearer(t, operator)
	s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "zoe-1", Name: "Zoe", Role: "zoe"}, op, http.StatusCreated)
	worker := bearer(t, "w")
	s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "agent-w", Name: "w"}, worker, http.StatusCreated)

	project := seedProject(t, s)
	tasks := make([]domain.Task, 2)
	for i := range tasks {
		data := s.call(t, http.MethodPost, fmt.Sprintf("/projects/%d/tasks", project.ID), CreateTaskRequest{Title: fmt.Sprintf("t%d", i)}, op, http.StatusCreated)
		tasks[i] = decode[domain.Task](t, data)
	}
	first, second := tasks[0], tasks[1]

	s.call(t, http.MethodPost, fmt.Sprintf("/tasks/%d/dependencies", second.ID), DependencyRequest{DependsOnID: first.ID}, worker, http.StatusCreated)
	data := s.call(t, http.MethodPost, fmt.Sprintf("/tasks/%d/dependencies", first.ID), DependencyRequest{DependsOnID: second.ID}, worker, http.StatusConflict)
	assert.Equal(t, "conflict", errorCode(t, data))

	data = s.call(t, http.MethodGet, fmt.Sprintf("/tasks/%d/blockers", second.ID), nil, worker, http.StatusOK)
	assert.True(t, decode[BlockersResponse](t, data).Blocked)
	data = s.call(t, http.MethodGet, fmt.Sprintf("/tasks/%d/dependencies", second.ID), nil, worker, http.StatusOK)
	assert.Len(t, decode[[]domain.TaskDependency](t, data), 1)

	data = s.call(t, http.MethodPost, fmt.Sprintf("/projects/%d/discoveries", project.ID), DiscoverRequest{Title: "flaky test", Priority: 2}, worker, http.StatusCreated)
	disc := decode[domain.DiscoveredTask](t, data)
	assert.Equal(t, domain.DiscoveryPendingReview, disc.Status)

	reviewPath := fmt.Sprintf("/discoveries/%d/review", disc.ID)
	s.call(t, http.MethodPost, reviewPath, ReviewRequest{Decision: "approve_as_task"}, worker, http.StatusForbidden)
	data = s.call(t, http.MethodPost, reviewPath, ReviewRequest{Decision: "approve_as_task"}, op, http.StatusOK)
	disc = decode[domain.DiscoveredTask](t, data)
	assert.Equal(t, domain.DiscoveryApproved, disc.Status)
	require.NotNil(t, disc.CreatedTaskID)

	data = s.call(t, http.MethodGet, fmt.Sprintf("/discoveries?project_id=%d", project.ID), nil, worker, http.StatusOK)
	assert.Len(t, decode[[]domain.DiscoveredTask](t, data), 1)
}

func TestChannelsAndMessages(t *testing.T) {
	s := newTestServer(t)
	op := bearer(t, operator)
	s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "zoe-1", Name: "Zoe", Role: "zoe"}, op, http.StatusCreated)
	member := bearer(t, "m")
	s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "agent-m", Name: "m"}, member, http.StatusCreated)

	s.call(t, http.MethodPost, "/channels", CreateChannelRequest{Name: "ops"}, member, http.StatusForbidden)
	data := s.call(t, http.MethodPost, "/channels", CreateChannelRequest{Name: "Ops"}, op, http.StatusCreated)
	ch := decode[domain.Channel](t, data)
	assert.Equal(t, "ops", ch.Name)
	s.call(t, http.MethodPost, "/channels", CreateChannelRequest{Name: "ops"}, op, http.StatusConflict)

	msgPath := fmt.Sprintf("/channels/%d/messages", ch.ID)
	s.call(t, http.MethodPost, msgPath, SendMessageRequest{Content: "hello"}, member, http.StatusCreated)
	s.call(t, http.MethodPost, msgPath, SendMessageRequest{Content: "stop", Type: "directive"}, member, http.StatusForbidden)
	s.call(t, http.MethodPost, msgPath, SendMessageRequest{Content: "stop", Type: "directive"}, op, http.StatusCreated)

	data = s.call(t, http.MethodGet, msgPath, nil, member, http.StatusOK)
	msgs := decode[[]domain.Message](t, data)
	require.Len(t, msgs, 2)
	data = s.call(t, http.MethodGet, fmt.Sprintf("%s?after=%d", msgPath, msgs[0].ID), nil, member, http.StatusOK)
	assert.Len(t, decode[[]domain.Message](t, data), 1)

	s.call(t, http.MethodGet, "/channels/9999/messages", nil, member, http.StatusNotFound)
}

func TestEventsPaging(t *testing.T) {
	s := newTestServer(t)
	op := bearer(t, operator)
	s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "zoe-1", Name: "Zoe", Role: "zoe"}, op, http.StatusCreated)
	for i := 0; i < 3; i++ {
		s.call(t, http.MethodPost, "/channels", CreateChannelRequest{Name: fmt.Sprintf("c%d", i)}, op, http.StatusCreated)
	}

	data := s.call(t, http.MethodGet, "/events?type=channel.create&limit=2", nil, op, http.StatusOK)
	page := decode[paginatedEvents](t, data)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.Greater(t, page.Items[0].ID, page.Items[1].ID)

	data = s.call(t, http.MethodGet, "/events?type=channel.create&limit=2&cursor="+page.NextCursor, nil, op, http.StatusOK)
	page = decode[paginatedEvents](t, data)
	assert.Len(t, page.Items, 1)
	assert.Empty(t, page.NextCursor)

	s.call(t, http.MethodGet, "/events?cursor=abc", nil, op, http.StatusBadRequest)
}

func TestConfigEndpoints(t *testing.T) {
	s := newTestServer(t)
	op := bearer(t, operator)
	s.call(t, http.MethodPost, "/agents", RegisterAgentRequest{ID: "zoe-1", Name: "Zoe", Role: "zoe"}, op, http.StatusCreated)

	s.call(t, http.MethodPut, "/config/activity_window_days", SetConfigRequest{Value: "0"}, op, http.StatusBadRequest)
	s.call(t, http.MethodPut, "/config/activity_window_days", SetConfigRequest{Value: "14"}, bearer(t, "x"), http.StatusForbidden)
	s.call(t, http.MethodPut, "/config/activity_window_days", SetConfigRequest{Value: "14"}, op, http.StatusOK)

	data := s.call(t, http.MethodGet, "/thresholds", nil, op, http.StatusOK)
	assert.Equal(t, 14, decode[ThresholdsResponse](t, data).WindowDays)
}

func TestOpenAPIAndMetrics(t *testing.T) {
	s := newTestServer(t)
	res, data := doJSON(t, http.MethodGet, s.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "paths")

	res, data = doJSON(t, http.MethodGet, s.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "nexus_commands_total")
}

// seedProject writes an approved idea straight to the store and opens a
// project on it through the API.
func seedProject(t *testing.T, s *testServer) domain.Project {
	t.Helper()
	idea, err := s.app.Engine.Repo.InsertIdea(context.Background(), nil, domain.Idea{
		Title: "seed", Status: domain.IdeaApprovedForProject,
		Quorum: 5, ApprovalThreshold: 5, VetoThreshold: 3,
		CreatedBy: "zoe-1", CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	data := s.call(t, http.MethodPost, "/projects", CreateProjectRequest{SourceIdeaID: idea.ID, Name: "seeded"}, bearer(t, operator), http.StatusCreated)
	return decode[domain.Project](t, data)
}
