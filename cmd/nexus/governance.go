package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/repo"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "agent", Short: "Manage agents"}
	cmd.AddCommand(agentRegisterCmd())
	cmd.AddCommand(agentListCmd())
	cmd.AddCommand(agentShowCmd())
	cmd.AddCommand(agentWhoamiCmd())
	cmd.AddCommand(agentHeartbeatCmd())
	cmd.AddCommand(agentStatusCmd())
	cmd.AddCommand(agentCapabilitiesCmd())
	return cmd
}

func agentRegisterCmd() *cobra.Command {
	var opts engine.RegisterOptions
	var role string
	cmd := &cobra.Command{
		Use:   "register <agent-id>",
		Short: "Register the caller's agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			opts.AgentID = args[0]
			opts.Identity = id
			opts.Role = domain.Role(role)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.RegisterAgent(ctx, opts)
				if err != nil {
					return err
				}
				return printRecord(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.ZenonAddress, "zenon-address", "", "zenon address")
	cmd.Flags().StringVar(&role, "role", "", "requested role (zoe, admin, zeno)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func agentListCmd() *cobra.Command {
	var f repo.AgentFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				agents, err := e.ListAgents(ctx, f)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(agents))
				for _, a := range agents {
					rows = append(rows, table.Row{a.ID, a.Name, a.Role, a.Status, deref(a.CurrentTaskID), strings.Join(a.Capabilities, ","), a.LastActiveAt})
				}
				return printTable(agents, table.Row{"ID", "Name", "Role", "Status", "Task", "Capabilities", "Last Active"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Capability, "capability", "", "capability filter")
	return cmd
}

func agentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.GetAgent(ctx, args[0])
				if err != nil {
					return err
				}
				return printRecord(a)
			})
		},
	}
}

func agentWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the caller's role and agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, role, err := e.WhoAmI(ctx, id)
				out := map[string]any{"identity": id, "role": role}
				switch {
				case err == nil:
					out["agent"] = a
				case !errors.Is(err, repo.ErrNotFound):
					return err
				}
				return printRecord(out)
			})
		},
	}
}

func agentHeartbeatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <agent-id>",
		Short: "Refresh agent liveness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Heartbeat(ctx, args[0], id)
				if err != nil {
					return err
				}
				return printRecord(a)
			})
		},
	}
}

func agentStatusCmd() *cobra.Command {
	var taskID int64
	cmd := &cobra.Command{
		Use:   "status <online|offline|working>",
		Short: "Change the caller's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.SetAgentStatus(ctx, domain.AgentStatus(args[0]), optionalID(taskID), id)
				if err != nil {
					return err
				}
				return printRecord(a)
			})
		},
	}
	cmd.Flags().Int64Var(&taskID, "task", 0, "task being worked on")
	return cmd
}

func agentCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities [tag...]",
		Short: "Replace the caller's capability tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.UpdateCapabilities(ctx, args, id)
				if err != nil {
					return err
				}
				return printRecord(a)
			})
		},
	}
}

func ideaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "idea", Short: "Propose and vote on ideas"}
	cmd.AddCommand(ideaProposeCmd())
	cmd.AddCommand(ideaListCmd())
	cmd.AddCommand(ideaShowCmd())
	cmd.AddCommand(ideaVoteCmd())
	cmd.AddCommand(ideaImplementedCmd())
	cmd.AddCommand(thresholdsCmd())
	return cmd
}

func ideaProposeCmd() *cobra.Command {
	var p engine.IdeaProposal
	cmd := &cobra.Command{
		Use:   "propose <title>",
		Short: "Propose an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			p.Title = args[0]
			p.Identity = id
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				idea, err := e.ProposeIdea(ctx, p)
				if err != nil {
					return err
				}
				return printRecord(idea)
			})
		},
	}
	cmd.Flags().StringVar(&p.Description, "description", "", "description")
	cmd.Flags().StringVar(&p.Category, "category", "", "category")
	return cmd
}

func ideaListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ideas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ideas, err := e.ListIdeas(ctx, status)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(ideas))
				for _, i := range ideas {
					tally := fmt.Sprintf("%d/%d/%d", i.UpVotes, i.DownVotes, i.VetoCount)
					need := fmt.Sprintf("q%d a%d v%d", i.Quorum, i.ApprovalThreshold, i.VetoThreshold)
					rows = append(rows, table.Row{i.ID, i.Title, i.Status, tally, need, i.CreatedBy})
				}
				return printTable(ideas, table.Row{"ID", "Title", "Status", "Up/Down/Veto", "Thresholds", "By"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func ideaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <idea-id>",
		Short: "Show an idea and its votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ideaID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				idea, err := e.GetIdea(ctx, ideaID)
				if err != nil {
					return err
				}
				votes, err := e.ListVotes(ctx, ideaID)
				if err != nil {
					return err
				}
				return printRecord(map[string]any{"idea": idea, "votes": votes})
			})
		},
	}
}

func ideaVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <idea-id> <up|down|veto>",
		Short: "Vote on an idea",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			ideaID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				idea, err := e.VoteIdea(ctx, ideaID, domain.VoteType(args[1]), id)
				if err != nil {
					return err
				}
				return printRecord(idea)
			})
		},
	}
}

func ideaImplementedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "implemented <idea-id>",
		Short: "Mark an approved idea implemented",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			ideaID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				idea, err := e.MarkImplemented(ctx, ideaID, id)
				if err != nil {
					return err
				}
				return printRecord(idea)
			})
		},
	}
}

func thresholdsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Show the thresholds a new idea would get now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				days, err := e.WindowDays(ctx)
				if err != nil {
					return err
				}
				th, err := e.CurrentThresholds(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"window_days": days, "thresholds": th})
				}
				fmt.Printf("active agents (last %d days): %d\nquorum: %d  approval: %d  veto: %d\n", days, th.ActiveAgents, th.Quorum, th.Approval, th.Veto)
				return nil
			})
		},
	}
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}
	cmd.AddCommand(projectCreateCmd())
	cmd.AddCommand(projectListCmd())
	cmd.AddCommand(projectShowCmd())
	cmd.AddCommand(projectStatusCmd())
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create <idea-id> <name>",
		Short: "Create a project from an approved idea",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			if opts.SourceIdeaID, err = parseID(args[0]); err != nil {
				return err
			}
			opts.Name = args[1]
			opts.Identity = id
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printRecord(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.GithubRepo, "github-repo", "", "github repository")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	return cmd
}

func projectListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projects, err := e.ListProjects(ctx, status)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, table.Row{p.ID, p.Name, p.Status, p.SourceIdeaID, p.GithubRepo})
				}
				return printTable(projects, table.Row{"ID", "Name", "Status", "Idea", "Repo"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				return printRecord(p)
			})
		},
	}
}

func projectStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-id> <active|paused>",
		Short: "Pause or resume a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			projectID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdateProjectStatus(ctx, projectID, domain.ProjectStatus(args[1]), id)
				if err != nil {
					return err
				}
				return printRecord(p)
			})
		},
	}
}
