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

// ProjectCreateOptions is the argument bundle for CreateProject.
type ProjectCreateOptions struct {
	SourceIdeaID int64
	Name         string
	GithubRepo   string
	Description  string
	Identity     string
}

// CreateProject turns an approved idea into an active project with its own channel.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	var out domain.Project
	err := e.withTx(ctx, "create_project", func(tx *sql.Tx, ob *outbox) error {
		if err := e.authority().RequireRole(ctx, tx, opts.Identity, domain.RoleAdmin); err != nil {
			return err
		}
		creator, err := e.caller(ctx, tx, opts.Identity)
		if err != nil {
			return err
		}
		if strings.TrimSpace(opts.Name) == "" {
			return domain.Errorf(domain.ErrValidation, "name is required")
		}
		idea, err := getIdea(ctx, e.Repo, tx, opts.SourceIdeaID)
		if err != nil {
			return err
		}
		if idea.Status != domain.IdeaApprovedForProject {
			return domain.Errorf(domain.ErrInvalidState, "idea %d is not approved for project (status %s)", idea.ID, idea.Status)
		}
		if _, err := e.Repo.GetProjectBySourceIdea(ctx, tx, idea.ID); err == nil {
			return domain.Errorf(domain.ErrConflict, "project already exists for idea %d", idea.ID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		now := e.stamp()
		p, err := e.Repo.InsertProject(ctx, tx, domain.Project{
			SourceIdeaID: idea.ID,
			Name:         strings.TrimSpace(opts.Name),
			GithubRepo:   opts.GithubRepo,
			Description:  opts.Description,
			Status:       domain.ProjectActive,
			CreatedBy:    creator.ID,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if err := e.Repo.InsertProjectChannel(ctx, tx, p.ID, now); err != nil {
			return fmt.Errorf("insert project channel: %w", err)
		}
		if err := e.event(ctx, tx, "project.create", "project", idString(p.ID), opts.Identity, events.EventPayload{"source_idea_id": idea.ID}); err != nil {
			return err
		}
		ob.post(ChannelGeneral, fmt.Sprintf("Project '%s' created from idea %d", p.Name, idea.ID))
		out = p
		return nil
	})
	return out, err
}

// UpdateProjectStatus pauses or resumes a project. Admin only.
func (e Engine) UpdateProjectStatus(ctx context.Context, projectID int64, status domain.ProjectStatus, identity string) (domain.Project, error) {
	var out domain.Project
	err := e.withTx(ctx, "update_project_status", func(tx *sql.Tx, _ *outbox) error {
		if _, err := domain.ParseProjectStatus(string(status)); err != nil {
			return err
		}
		if err := e.authority().RequireRole(ctx, tx, identity, domain.RoleAdmin); err != nil {
			return err
		}
		p, err := getProject(ctx, e.Repo, tx, projectID)
		if err != nil {
			return err
		}
		if err := e.Repo.UpdateProjectStatus(ctx, tx, p.ID, status); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "project.status", "project", idString(p.ID), identity, events.EventPayload{"from": p.Status, "to": status}); err != nil {
			return err
		}
		p.Status = status
		out = p
		return nil
	})
	return out, err
}

func (e Engine) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	return getProject(ctx, e.Repo, nil, id)
}

func (e Engine) ListProjects(ctx context.Context, status string) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx, nil, status)
}
