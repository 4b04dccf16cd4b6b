package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nexus/internal/domain"
	"nexus/internal/engine/quorum"
	"nexus/internal/events"
	"nexus/internal/repo"
)

// IdeaProposal is the argument bundle for ProposeIdea.
type IdeaProposal struct {
	Title       string
	Description string
	Category    string
	Identity    string
}

// ProposeIdea opens a vote with thresholds snapshotted from current activity.
func (e Engine) ProposeIdea(ctx context.Context, p IdeaProposal) (domain.Idea, error) {
	var out domain.Idea
	err := e.withTx(ctx, "propose_idea", func(tx *sql.Tx, ob *outbox) error {
		agent, err := e.caller(ctx, tx, p.Identity)
		if err != nil {
			return err
		}
		if strings.TrimSpace(p.Title) == "" {
			return domain.Errorf(domain.ErrValidation, "title is required")
		}
		th, err := e.thresholds(ctx, tx)
		if err != nil {
			return err
		}
		idea, err := e.insertIdea(ctx, tx, strings.TrimSpace(p.Title), p.Description, p.Category, agent.ID, th)
		if err != nil {
			return err
		}
		if err := e.touch(ctx, tx, agent.ID); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "idea.propose", "idea", idString(idea.ID), p.Identity, events.EventPayload{
			"quorum": th.Quorum, "approval": th.Approval, "veto": th.Veto, "active_agents": th.ActiveAgents,
		}); err != nil {
			return err
		}
		ob.post(ChannelGeneral, fmt.Sprintf("New idea proposed: %d", idea.ID))
		out = idea
		return nil
	})
	return out, err
}

func (e Engine) insertIdea(ctx context.Context, tx *sql.Tx, title, description, category, createdBy string, th quorum.Thresholds) (domain.Idea, error) {
	now := e.stamp()
	idea, err := e.Repo.InsertIdea(ctx, tx, domain.Idea{
		Title:             title,
		Description:       description,
		Category:          category,
		Status:            domain.IdeaVoting,
		ActiveAgentCount:  th.ActiveAgents,
		Quorum:            th.Quorum,
		ApprovalThreshold: th.Approval,
		VetoThreshold:     th.Veto,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return domain.Idea{}, fmt.Errorf("insert idea: %w", err)
	}
	return idea, nil
}

// ApplyVote adds a vote to the tallies and resolves the idea. The order is
// fixed: veto, then quorum, then approval.
func ApplyVote(idea domain.Idea, v domain.VoteType) domain.Idea {
	switch v {
	case domain.VoteUp:
		idea.UpVotes++
	case domain.VoteDown:
		idea.DownVotes++
	case domain.VoteVeto:
		idea.VetoCount++
	}
	idea.TotalVotes++
	switch {
	case idea.VetoCount >= idea.VetoThreshold:
		idea.Status = domain.IdeaRejected
	case idea.TotalVotes < idea.Quorum:
	case idea.UpVotes >= idea.ApprovalThreshold:
		idea.Status = domain.IdeaApprovedForProject
	}
	return idea
}

// VoteIdea casts the caller's single vote on an idea still in voting.
func (e Engine) VoteIdea(ctx context.Context, ideaID int64, voteType domain.VoteType, identity string) (domain.Idea, error) {
	var out domain.Idea
	err := e.withTx(ctx, "vote_idea", func(tx *sql.Tx, ob *outbox) error {
		if _, err := domain.ParseVoteType(string(voteType)); err != nil {
			return err
		}
		agent, err := e.caller(ctx, tx, identity)
		if err != nil {
			return err
		}
		idea, err := getIdea(ctx, e.Repo, tx, ideaID)
		if err != nil {
			return err
		}
		if idea.Status != domain.IdeaVoting {
			return domain.Errorf(domain.ErrInvalidState, "voting closed for idea %d", idea.ID)
		}
		if _, err := e.Repo.GetVote(ctx, tx, idea.ID, agent.ID); err == nil {
			return domain.Errorf(domain.ErrConflict, "agent %s already voted on idea %d", agent.ID, idea.ID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		now := e.stamp()
		if _, err := e.Repo.InsertVote(ctx, tx, domain.Vote{IdeaID: idea.ID, AgentID: agent.ID, Type: voteType, CreatedAt: now}); err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
		updated := ApplyVote(idea, voteType)
		updated.UpdatedAt = now
		if err := e.Repo.UpdateIdea(ctx, tx, updated); err != nil {
			return err
		}
		if err := e.touch(ctx, tx, agent.ID); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "idea.vote", "idea", idString(idea.ID), identity, events.EventPayload{
			"vote": voteType, "status": updated.Status, "total": updated.TotalVotes,
		}); err != nil {
			return err
		}
		switch updated.Status {
		case domain.IdeaRejected:
			ob.post(ChannelGeneral, fmt.Sprintf("Idea %d rejected by veto", idea.ID))
		case domain.IdeaApprovedForProject:
			ob.post(ChannelGeneral, fmt.Sprintf("Idea '%s' approved", idea.Title))
			ob.post(ChannelZoe, fmt.Sprintf("Idea '%s' approved for project creation. Review and create project when ready.", idea.Title))
		}
		out = updated
		return nil
	})
	if err == nil {
		e.Metrics.Vote(string(voteType))
		if out.Status != domain.IdeaVoting {
			e.Metrics.IdeaOutcome(string(out.Status))
		}
	}
	return out, err
}

// MarkImplemented closes an approved idea. Zoe only.
func (e Engine) MarkImplemented(ctx context.Context, ideaID int64, identity string) (domain.Idea, error) {
	var out domain.Idea
	err := e.withTx(ctx, "mark_idea_implemented", func(tx *sql.Tx, _ *outbox) error {
		if err := e.authority().RequireRole(ctx, tx, identity, domain.RoleZoe); err != nil {
			return err
		}
		idea, err := getIdea(ctx, e.Repo, tx, ideaID)
		if err != nil {
			return err
		}
		if idea.Status != domain.IdeaApprovedForProject {
			return domain.Errorf(domain.ErrInvalidState, "idea %d must be approved for project before implementation (status %s)", idea.ID, idea.Status)
		}
		idea.Status = domain.IdeaImplemented
		idea.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateIdea(ctx, tx, idea); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "idea.implemented", "idea", idString(idea.ID), identity, nil); err != nil {
			return err
		}
		out = idea
		return nil
	})
	return out, err
}

func (e Engine) GetIdea(ctx context.Context, id int64) (domain.Idea, error) {
	return getIdea(ctx, e.Repo, nil, id)
}

func (e Engine) ListIdeas(ctx context.Context, status string) ([]domain.Idea, error) {
	return e.Repo.ListIdeas(ctx, nil, status)
}

func (e Engine) ListVotes(ctx context.Context, ideaID int64) ([]domain.Vote, error) {
	if _, err := getIdea(ctx, e.Repo, nil, ideaID); err != nil {
		return nil, err
	}
	return e.Repo.ListVotes(ctx, nil, ideaID)
}
