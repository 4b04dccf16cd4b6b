package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/repo"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskClaimCmd())
	cmd.AddCommand(taskStatusCmd())
	cmd.AddCommand(taskDependCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var sourceIdea int64
	cmd := &cobra.Command{
		Use:   "create <project-id> <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			if opts.ProjectID, err = parseID(args[0]); err != nil {
				return err
			}
			opts.Title = args[1]
			opts.SourceIdeaID = optionalID(sourceIdea)
			opts.Identity = id
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printRecord(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().IntVar(&opts.Priority, "priority", 0, "priority 0-10")
	cmd.Flags().Int64Var(&sourceIdea, "source-idea", 0, "idea the task came from")
	cmd.Flags().StringVar(&opts.GithubIssueURL, "issue", "", "github issue url")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(tasks))
				for _, t := range tasks {
					rows = append(rows, table.Row{t.ID, t.ProjectID, t.Title, t.Status, t.Priority, deref(t.AssignedTo), t.ReviewCount})
				}
				return printTable(tasks, table.Row{"ID", "Project", "Title", "Status", "Priority", "Assignee", "Reviews"}, rows)
			})
		},
	}
	cmd.Flags().Int64Var(&f.ProjectID, "project", 0, "project filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assigned-to", "", "assignee agent id")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, taskID)
				if err != nil {
					return err
				}
				deps, err := e.ListDependencies(ctx, taskID)
				if err != nil {
					return err
				}
				blocked, err := e.HasOpenBlockers(ctx, taskID)
				if err != nil {
					return err
				}
				return printRecord(map[string]any{"task": t, "dependencies": deps, "blocked": blocked})
			})
		},
	}
}

func taskClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <task-id>",
		Short: "Claim an open task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			taskID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ClaimTask(ctx, taskID, id)
				if err != nil {
					return err
				}
				return printRecord(t)
			})
		},
	}
}

func taskStatusCmd() *cobra.Command {
	var pr, reason string
	cmd := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Move a task through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			taskID, err := parseID(args[0])
			if err != nil {
				return err
			}
			opts := engine.TaskStatusOptions{
				TaskID:        taskID,
				Status:        domain.TaskStatus(args[1]),
				GithubPRURL:   pr,
				ArchiveReason: optionalString(reason),
				Identity:      id,
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTaskStatus(ctx, opts)
				if err != nil {
					return err
				}
				return printRecord(t)
			})
		},
	}
	cmd.Flags().StringVar(&pr, "pr", "", "github pull request url")
	cmd.Flags().StringVar(&reason, "reason", "", "archive reason")
	return cmd
}

func taskDependCmd() *cobra.Command {
	var depType string
	cmd := &cobra.Command{
		Use:   "depend <task-id> <depends-on-id>",
		Short: "Add a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			taskID, err := parseID(args[0])
			if err != nil {
				return err
			}
			dependsOn, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.AddDependency(ctx, taskID, dependsOn, domain.DependencyType(depType), id)
				if err != nil {
					return err
				}
				return printRecord(d)
			})
		},
	}
	cmd.Flags().StringVar(&depType, "type", string(domain.DepBlocks), "blocks or parent-child")
	return cmd
}

func discoveryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "discovery", Short: "File and review discovered work"}
	cmd.AddCommand(discoveryAddCmd())
	cmd.AddCommand(discoveryListCmd())
	cmd.AddCommand(discoveryReviewCmd())
	return cmd
}

func discoveryAddCmd() *cobra.Command {
	var opts engine.DiscoveryOptions
	var current int64
	cmd := &cobra.Command{
		Use:   "add <project-id> <title>",
		Short: "File a discovered task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			if opts.ProjectID, err = parseID(args[0]); err != nil {
				return err
			}
			opts.Title = args[1]
			opts.CurrentTaskID = optionalID(current)
			opts.Identity = id
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.Discover(ctx, opts)
				if err != nil {
					return err
				}
				return printRecord(d)
			})
		},
	}
	cmd.Flags().Int64Var(&current, "task", 0, "task being worked on when found")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().IntVar(&opts.Priority, "priority", 0, "priority 0-10")
	cmd.Flags().StringVar(&opts.TaskType, "type", "", "task type")
	cmd.Flags().StringVar(&opts.Severity, "severity", "", "severity")
	return cmd
}

func discoveryListCmd() *cobra.Command {
	var f repo.DiscoveryFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDiscoveries(ctx, f)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, d := range items {
					rows = append(rows, table.Row{d.ID, d.ProjectID, d.Title, d.Status, d.Priority, d.DiscoveredBy})
				}
				return printTable(items, table.Row{"ID", "Project", "Title", "Status", "Priority", "By"}, rows)
			})
		},
	}
	cmd.Flags().Int64Var(&f.ProjectID, "project", 0, "project filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func discoveryReviewCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "review <discovery-id> <approve_as_task|reject|escalate_to_idea>",
		Short: "Review a discovered task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			discoveryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.ReviewDiscovery(ctx, discoveryID, domain.ReviewDecision(args[1]), optionalString(reason), id)
				if err != nil {
					return err
				}
				return printRecord(d)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}
