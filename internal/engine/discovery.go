package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nexus/internal/domain"
	"nexus/internal/events"
	"nexus/internal/repo"
)

// DiscoveryOptions is the argument bundle for Discover.
type DiscoveryOptions struct {
	CurrentTaskID *int64
	ProjectID     int64
	Title         string
	Description   string
	Priority      int
	TaskType      string
	Severity      string
	Identity      string
}

// Discover files a finding against a project for admin triage.
func (e Engine) Discover(ctx context.Context, opts DiscoveryOptions) (domain.DiscoveredTask, error) {
	var out domain.DiscoveredTask
	err := e.withTx(ctx, "discover_task", func(tx *sql.Tx, ob *outbox) error {
		agent, err := e.caller(ctx, tx, opts.Identity)
		if err != nil {
			return err
		}
		if strings.TrimSpace(opts.Title) == "" {
			return domain.Errorf(domain.ErrValidation, "title is required")
		}
		if err := validPriority(opts.Priority); err != nil {
			return err
		}
		if _, err := getProject(ctx, e.Repo, tx, opts.ProjectID); err != nil {
			return err
		}
		if opts.CurrentTaskID != nil {
			if _, err := getTask(ctx, e.Repo, tx, *opts.CurrentTaskID); err != nil {
				return err
			}
		}
		d, err := e.Repo.InsertDiscovery(ctx, tx, domain.DiscoveredTask{
			DiscoveredBy:  agent.ID,
			CurrentTaskID: opts.CurrentTaskID,
			ProjectID:     opts.ProjectID,
			Title:         strings.TrimSpace(opts.Title),
			Description:   opts.Description,
			Priority:      opts.Priority,
			TaskType:      opts.TaskType,
			Severity:      opts.Severity,
			Status:        domain.DiscoveryPendingReview,
			CreatedAt:     e.stamp(),
		})
		if err != nil {
			return fmt.Errorf("insert discovery: %w", err)
		}
		if err := e.touch(ctx, tx, agent.ID); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "discovery.create", "discovery", idString(d.ID), opts.Identity, events.EventPayload{
			"project_id": d.ProjectID, "severity": d.Severity,
		}); err != nil {
			return err
		}
		ob.post(ChannelGeneral, fmt.Sprintf("New discovery: %d", d.ID))
		out = d
		return nil
	})
	return out, err
}

// ReviewDiscovery routes a pending discovery into a task, a rejection or an idea. Admin only.
func (e Engine) ReviewDiscovery(ctx context.Context, discoveryID int64, decision domain.ReviewDecision, reason *string, identity string) (domain.DiscoveredTask, error) {
	var out domain.DiscoveredTask
	err := e.withTx(ctx, "review_discovered_task", func(tx *sql.Tx, _ *outbox) error {
		if _, err := domain.ParseReviewDecision(string(decision)); err != nil {
			return err
		}
		if err := e.authority().RequireRole(ctx, tx, identity, domain.RoleAdmin); err != nil {
			return err
		}
		reviewer, err := e.caller(ctx, tx, identity)
		if err != nil {
			return err
		}
		d, err := e.Repo.GetDiscovery(ctx, tx, discoveryID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("discovery %d: %w", discoveryID, repo.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if d.Status != domain.DiscoveryPendingReview {
			return domain.Errorf(domain.ErrInvalidState, "discovery %d already reviewed with status %s", d.ID, d.Status)
		}
		if reason != nil && decision != domain.DecisionReject {
			return domain.Errorf(domain.ErrValidation, "reason can only be provided when rejecting")
		}

		now := e.stamp()
		payload := events.EventPayload{"decision": decision}
		switch decision {
		case domain.DecisionApproveAsTask:
			if _, err := getProject(ctx, e.Repo, tx, d.ProjectID); err != nil {
				return err
			}
			t, err := e.Repo.InsertTask(ctx, tx, domain.Task{
				ProjectID:   d.ProjectID,
				Title:       d.Title,
				Description: d.Description,
				Status:      domain.TaskOpen,
				Priority:    d.Priority,
				CreatedBy:   reviewer.ID,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("insert task: %w", err)
			}
			d.Status = domain.DiscoveryApproved
			d.CreatedTaskID = &t.ID
			payload["task_id"] = t.ID
		case domain.DecisionReject:
			d.Status = domain.DiscoveryRejected
			d.RejectionReason = reason
		case domain.DecisionEscalateToIdea:
			th, err := e.thresholds(ctx, tx)
			if err != nil {
				return err
			}
			idea, err := e.insertIdea(ctx, tx, d.Title, d.Description, d.TaskType, d.DiscoveredBy, th)
			if err != nil {
				return err
			}
			d.Status = domain.DiscoveryEscalatedToIdea
			d.EscalatedIdeaID = &idea.ID
			payload["idea_id"] = idea.ID
		}
		d.ReviewedAt = &now
		d.ReviewedBy = &reviewer.ID
		if err := e.Repo.UpdateDiscoveryReview(ctx, tx, d); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "discovery.review", "discovery", idString(d.ID), identity, payload); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err == nil {
		e.Metrics.Review(string(decision))
	}
	return out, err
}

func (e Engine) GetDiscovery(ctx context.Context, id int64) (domain.DiscoveredTask, error) {
	d, err := e.Repo.GetDiscovery(ctx, nil, id)
	if errors.Is(err, repo.ErrNotFound) {
		return d, fmt.Errorf("discovery %d: %w", id, repo.ErrNotFound)
	}
	return d, err
}

func (e Engine) ListDiscoveries(ctx context.Context, f repo.DiscoveryFilters) ([]domain.DiscoveredTask, error) {
	return e.Repo.ListDiscoveries(ctx, nil, f)
}
