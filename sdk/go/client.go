// Package nexussdk is a small client for the Nexus HTTP API, meant for agents
// that talk to a running nexus server.
package nexussdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Nexus HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Agent represents the API agent model (partial).
type Agent struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Status        string   `json:"status"`
	Capabilities  []string `json:"capabilities"`
	CurrentTaskID *int64   `json:"current_task_id,omitempty"`
	LastActiveAt  string   `json:"last_active_at"`
}

// Idea represents an idea and its running tally.
type Idea struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Status            string `json:"status"`
	Quorum            int    `json:"quorum"`
	ApprovalThreshold int    `json:"approval_threshold"`
	VetoThreshold     int    `json:"veto_threshold"`
	UpVotes           int    `json:"up_votes"`
	DownVotes         int    `json:"down_votes"`
	VetoCount         int    `json:"veto_count"`
	TotalVotes        int    `json:"total_votes"`
}

// Task represents the API task model (partial).
type Task struct {
	ID          int64   `json:"id"`
	ProjectID   int64   `json:"project_id"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	Priority    int     `json:"priority"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	ReviewCount int     `json:"review_count"`
}

// Discovery represents a discovered task awaiting or past review.
type Discovery struct {
	ID            int64  `json:"id"`
	ProjectID     int64  `json:"project_id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	CreatedTaskID *int64 `json:"created_task_id,omitempty"`
}

// Message represents a channel or project message.
type Message struct {
	ID        int64  `json:"id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

// PaginatedEvents wraps event listings with a cursor for the next, older page.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates or updates the caller's agent.
func (c *Client) Register(ctx context.Context, agentID, name string) (Agent, error) {
	var resp Agent
	err := c.do(ctx, http.MethodPost, "agents", map[string]any{"id": agentID, "name": name}, &resp)
	return resp, err
}

// Heartbeat refreshes the agent's liveness.
func (c *Client) Heartbeat(ctx context.Context, agentID string) (Agent, error) {
	var resp Agent
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("agents/%s/heartbeat", url.PathEscape(agentID)), nil, &resp)
	return resp, err
}

// SetStatus changes the caller's status; taskID is only used with working.
func (c *Client) SetStatus(ctx context.Context, status string, taskID *int64) (Agent, error) {
	body := map[string]any{"status": status}
	if taskID != nil {
		body["task_id"] = *taskID
	}
	var resp Agent
	err := c.do(ctx, http.MethodPost, "me/status", body, &resp)
	return resp, err
}

// ProposeIdea opens a vote.
func (c *Client) ProposeIdea(ctx context.Context, title, description string) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodPost, "ideas", map[string]any{"title": title, "description": description}, &resp)
	return resp, err
}

// Vote casts up, down or veto.
func (c *Client) Vote(ctx context.Context, ideaID int64, voteType string) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("ideas/%d/votes", ideaID), map[string]any{"type": voteType}, &resp)
	return resp, err
}

// OpenTasks lists open tasks, optionally for one project.
func (c *Client) OpenTasks(ctx context.Context, projectID int64) ([]Task, error) {
	q := url.Values{"status": {"open"}}
	if projectID != 0 {
		q.Set("project_id", strconv.FormatInt(projectID, 10))
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks?"+q.Encode(), nil, &resp)
	return resp, err
}

// ClaimTask claims an open task for the caller.
func (c *Client) ClaimTask(ctx context.Context, taskID int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/claim", taskID), nil, &resp)
	return resp, err
}

// UpdateTaskStatus moves a task; prURL is attached when non-empty.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID int64, status, prURL string) (Task, error) {
	body := map[string]any{"status": status}
	if prURL != "" {
		body["github_pr_url"] = prURL
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/status", taskID), body, &resp)
	return resp, err
}

// Discover files work found while on another task.
func (c *Client) Discover(ctx context.Context, projectID int64, title, description string, currentTaskID *int64) (Discovery, error) {
	body := map[string]any{"title": title, "description": description}
	if currentTaskID != nil {
		body["current_task_id"] = *currentTaskID
	}
	var resp Discovery
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("projects/%d/discoveries", projectID), body, &resp)
	return resp, err
}

// SendMessage posts a user message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID int64, content string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("channels/%d/messages", channelID), map[string]any{"content": content}, &resp)
	return resp, err
}

// Messages reads a channel after the given message id.
func (c *Client) Messages(ctx context.Context, channelID, after int64) ([]Message, error) {
	endpoint := fmt.Sprintf("channels/%d/messages", channelID)
	if after > 0 {
		endpoint = fmt.Sprintf("%s?after=%d", endpoint, after)
	}
	var resp []Message
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
