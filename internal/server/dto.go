package server

import (
	"nexus/internal/domain"
	"nexus/internal/engine/quorum"
)

// Request payloads

type RegisterAgentRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ZenonAddress string `json:"zenon_address,omitempty"`
	Role         string `json:"role,omitempty" enum:"zoe,admin,zeno"`
}

type CapabilitiesRequest struct {
	Capabilities []string `json:"capabilities"`
}

type AgentStatusRequest struct {
	Status string `json:"status" enum:"online,offline,working"`
	TaskID *int64 `json:"task_id,omitempty"`
}

type ProposeIdeaRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

type VoteRequest struct {
	Type string `json:"type" enum:"up,down,veto"`
}

type CreateProjectRequest struct {
	SourceIdeaID int64  `json:"source_idea_id"`
	Name         string `json:"name"`
	GithubRepo   string `json:"github_repo,omitempty"`
	Description  string `json:"description,omitempty"`
}

type ProjectStatusRequest struct {
	Status string `json:"status" enum:"active,paused"`
}

type CreateTaskRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Priority       int    `json:"priority,omitempty" minimum:"0" maximum:"10"`
	SourceIdeaID   *int64 `json:"source_idea_id,omitempty"`
	GithubIssueURL string `json:"github_issue_url,omitempty"`
}

type TaskStatusRequest struct {
	Status        string  `json:"status" enum:"open,claimed,in_progress,review,completed,blocked,archived"`
	GithubPRURL   string  `json:"github_pr_url,omitempty"`
	ArchiveReason *string `json:"archive_reason,omitempty"`
}

type DependencyRequest struct {
	DependsOnID int64  `json:"depends_on_id"`
	Type        string `json:"type,omitempty" enum:"blocks,parent-child"`
}

type DiscoverRequest struct {
	CurrentTaskID *int64 `json:"current_task_id,omitempty"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Priority      int    `json:"priority,omitempty" minimum:"0" maximum:"10"`
	TaskType      string `json:"task_type,omitempty"`
	Severity      string `json:"severity,omitempty"`
}

type ReviewRequest struct {
	Decision string  `json:"decision" enum:"approve_as_task,reject,escalate_to_idea"`
	Reason   *string `json:"reason,omitempty"`
}

type CreateChannelRequest struct {
	Name string `json:"name"`
}

type SendMessageRequest struct {
	Content   string `json:"content"`
	Type      string `json:"type,omitempty" enum:"user,system,directive"`
	ContextID string `json:"context_id,omitempty"`
}

type SetConfigRequest struct {
	Value string `json:"value"`
}

type CreateAPIKeyRequest struct {
	Identity string `json:"identity,omitempty"`
	Name     string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	Identity string `json:"identity"`
}

// Responses

type MeResponse struct {
	Identity string        `json:"identity"`
	Role     domain.Role   `json:"role"`
	Agent    *domain.Agent `json:"agent,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type ThresholdsResponse struct {
	WindowDays int               `json:"window_days"`
	Thresholds quorum.Thresholds `json:"thresholds"`
}

type BlockersResponse struct {
	TaskID  int64 `json:"task_id"`
	Blocked bool  `json:"blocked"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
