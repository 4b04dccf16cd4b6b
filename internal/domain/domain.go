package domain

type Role string

const (
	RoleZoe   Role = "zoe"
	RoleAdmin Role = "admin"
	RoleZeno  Role = "zeno"
)

type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
	AgentWorking AgentStatus = "working"
)

type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskClaimed    TaskStatus = "claimed"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
	TaskArchived   TaskStatus = "archived"
)

// TaskStatuses lists every task state in lifecycle order.
var TaskStatuses = []TaskStatus{TaskOpen, TaskClaimed, TaskInProgress, TaskReview, TaskCompleted, TaskBlocked, TaskArchived}

type DependencyType string

const (
	DepBlocks      DependencyType = "blocks"
	DepParentChild DependencyType = "parent-child"
)

// Blocking reports whether edges of this type gate claiming and take part in cycle checks.
func (d DependencyType) Blocking() bool {
	return d == DepBlocks || d == DepParentChild
}

type IdeaStatus string

const (
	IdeaVoting             IdeaStatus = "voting"
	IdeaApprovedForProject IdeaStatus = "approved_for_project"
	IdeaRejected           IdeaStatus = "rejected"
	IdeaImplemented        IdeaStatus = "implemented"
)

type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
	VoteVeto VoteType = "veto"
)

type ProjectStatus string

const (
	ProjectActive ProjectStatus = "active"
	ProjectPaused ProjectStatus = "paused"
)

type DiscoveryStatus string

const (
	DiscoveryPendingReview   DiscoveryStatus = "pending_review"
	DiscoveryApproved        DiscoveryStatus = "approved"
	DiscoveryRejected        DiscoveryStatus = "rejected"
	DiscoveryEscalatedToIdea DiscoveryStatus = "escalated_to_idea"
)

type ReviewDecision string

const (
	DecisionApproveAsTask  ReviewDecision = "approve_as_task"
	DecisionReject         ReviewDecision = "reject"
	DecisionEscalateToIdea ReviewDecision = "escalate_to_idea"
)

type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageSystem    MessageType = "system"
	MessageDirective MessageType = "directive"
)

type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Role          Role        `json:"role" enum:"zoe,admin,zeno"`
	Capabilities  []string    `json:"capabilities"`
	Status        AgentStatus `json:"status" enum:"online,offline,working"`
	Identity      string      `json:"identity"`
	ZenonAddress  string      `json:"zenon_address,omitempty"`
	CurrentTaskID *int64      `json:"current_task_id,omitempty"`
	LastHeartbeat string      `json:"last_heartbeat" format:"date-time"`
	CreatedAt     string      `json:"created_at" format:"date-time"`
	LastActiveAt  string      `json:"last_active_at" format:"date-time"`
}

type IdentityRole struct {
	Identity   string `json:"identity"`
	Role       Role   `json:"role" enum:"zoe,admin,zeno"`
	AssignedAt string `json:"assigned_at" format:"date-time"`
}

type Project struct {
	ID           int64         `json:"id"`
	SourceIdeaID int64         `json:"source_idea_id"`
	Name         string        `json:"name"`
	GithubRepo   string        `json:"github_repo,omitempty"`
	Description  string        `json:"description,omitempty"`
	Status       ProjectStatus `json:"status" enum:"active,paused"`
	CreatedBy    string        `json:"created_by"`
	CreatedAt    string        `json:"created_at" format:"date-time"`
}

type Task struct {
	ID                int64       `json:"id"`
	ProjectID         int64       `json:"project_id"`
	Title             string      `json:"title"`
	Description       string      `json:"description,omitempty"`
	Status            TaskStatus  `json:"status" enum:"open,claimed,in_progress,review,completed,blocked,archived"`
	AssignedTo        *string     `json:"assigned_to,omitempty"`
	ClaimedAt         *string     `json:"claimed_at,omitempty" format:"date-time"`
	GithubIssueURL    *string     `json:"github_issue_url,omitempty"`
	GithubPRURL       *string     `json:"github_pr_url,omitempty"`
	Priority          int         `json:"priority" minimum:"0" maximum:"10"`
	SourceIdeaID      *int64      `json:"source_idea_id,omitempty"`
	ReviewCount       int         `json:"review_count"`
	BlockedFromStatus *TaskStatus `json:"blocked_from_status,omitempty"`
	ArchivedReason    *string     `json:"archived_reason,omitempty"`
	StatusChangedBy   *string     `json:"status_changed_by,omitempty"`
	StatusChangedAt   *string     `json:"status_changed_at,omitempty" format:"date-time"`
	CreatedBy         string      `json:"created_by"`
	CreatedAt         string      `json:"created_at" format:"date-time"`
	UpdatedAt         string      `json:"updated_at" format:"date-time"`
}

type TaskDependency struct {
	TaskID      int64          `json:"task_id"`
	DependsOnID int64          `json:"depends_on_id"`
	Type        DependencyType `json:"type" enum:"blocks,parent-child"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
}

type Idea struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Category          string     `json:"category,omitempty"`
	Status            IdeaStatus `json:"status" enum:"voting,approved_for_project,rejected,implemented"`
	ActiveAgentCount  int        `json:"active_agent_count"`
	Quorum            int        `json:"quorum"`
	ApprovalThreshold int        `json:"approval_threshold"`
	VetoThreshold     int        `json:"veto_threshold"`
	UpVotes           int        `json:"up_votes"`
	DownVotes         int        `json:"down_votes"`
	VetoCount         int        `json:"veto_count"`
	TotalVotes        int        `json:"total_votes"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         string     `json:"created_at" format:"date-time"`
	UpdatedAt         string     `json:"updated_at" format:"date-time"`
}

type Vote struct {
	ID        int64    `json:"id"`
	IdeaID    int64    `json:"idea_id"`
	AgentID   string   `json:"agent_id"`
	Type      VoteType `json:"type" enum:"up,down,veto"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type DiscoveredTask struct {
	ID              int64           `json:"id"`
	DiscoveredBy    string          `json:"discovered_by"`
	CurrentTaskID   *int64          `json:"current_task_id,omitempty"`
	ProjectID       int64           `json:"project_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Priority        int             `json:"priority" minimum:"0" maximum:"10"`
	TaskType        string          `json:"task_type,omitempty"`
	Severity        string          `json:"severity,omitempty"`
	Status          DiscoveryStatus `json:"status" enum:"pending_review,approved,rejected,escalated_to_idea"`
	CreatedTaskID   *int64          `json:"created_task_id,omitempty"`
	EscalatedIdeaID *int64          `json:"escalated_idea_id,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	CreatedAt       string          `json:"created_at" format:"date-time"`
	ReviewedAt      *string         `json:"reviewed_at,omitempty" format:"date-time"`
	ReviewedBy      *string         `json:"reviewed_by,omitempty"`
}

type Channel struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Message struct {
	ID        int64       `json:"id"`
	ChannelID *int64      `json:"channel_id,omitempty"`
	ProjectID *int64      `json:"project_id,omitempty"`
	SenderID  string      `json:"sender_id"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type" enum:"user,system,directive"`
	ContextID *string     `json:"context_id,omitempty"`
	CreatedAt string      `json:"created_at" format:"date-time"`
}

type ConfigEntry struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload,omitempty"`
}

type APIKey struct {
	ID        string `json:"id"`
	Identity  string `json:"identity"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
