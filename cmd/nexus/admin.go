package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/repo"
)

func channelCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "channel", Short: "Manage channels"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListChannels(ctx)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, c := range items {
					rows = append(rows, table.Row{c.ID, c.Name, c.CreatedBy, c.CreatedAt})
				}
				return printTable(items, table.Row{"ID", "Name", "By", "Created"}, rows)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ch, err := e.CreateChannel(ctx, args[0], id)
				if err != nil {
					return err
				}
				return printRecord(ch)
			})
		},
	})
	return cmd
}

func messageCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "message", Short: "Send and read messages"}
	cmd.AddCommand(messageSendCmd())
	cmd.AddCommand(messageReadCmd())
	return cmd
}

func messageSendCmd() *cobra.Command {
	var channel, msgType, contextID string
	var projectID int64
	cmd := &cobra.Command{
		Use:   "send <content>",
		Short: "Post to a channel or project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			opts := engine.MessageOptions{
				Content:   args[0],
				Type:      domain.MessageType(msgType),
				ContextID: contextID,
				Identity:  id,
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					m   domain.Message
					err error
				)
				if projectID != 0 {
					opts.ProjectID = projectID
					m, err = e.SendProjectMessage(ctx, opts)
				} else {
					ch, cerr := e.ChannelByName(ctx, channel)
					if cerr != nil {
						return cerr
					}
					opts.ChannelID = ch.ID
					m, err = e.SendMessage(ctx, opts)
				}
				if err != nil {
					return err
				}
				return printRecord(m)
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", engine.ChannelGeneral, "channel name")
	cmd.Flags().Int64Var(&projectID, "project", 0, "post to a project channel instead")
	cmd.Flags().StringVar(&msgType, "type", string(domain.MessageUser), "user, system or directive")
	cmd.Flags().StringVar(&contextID, "context", "", "context id")
	return cmd
}

func messageReadCmd() *cobra.Command {
	var channel string
	var projectID, after int64
	var limit int
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read messages after a cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					items []domain.Message
					err   error
				)
				if projectID != 0 {
					items, err = e.ListProjectMessages(ctx, projectID, after, limit)
				} else {
					ch, cerr := e.ChannelByName(ctx, channel)
					if cerr != nil {
						return cerr
					}
					items, err = e.ListMessages(ctx, ch.ID, after, limit)
				}
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, m := range items {
					rows = append(rows, table.Row{m.ID, m.CreatedAt, m.SenderID, m.Type, m.Content})
				}
				return printTable(items, table.Row{"ID", "At", "Sender", "Type", "Content"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", engine.ChannelGeneral, "channel name")
	cmd.Flags().Int64Var(&projectID, "project", 0, "read a project channel instead")
	cmd.Flags().Int64Var(&after, "after", 0, "only messages with a larger id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Runtime configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListConfig(ctx)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, c := range items {
					rows = append(rows, table.Row{c.Key, c.Value, c.UpdatedAt})
				}
				return printTable(items, table.Row{"Key", "Value", "Updated"}, rows)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Show one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetConfig(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"key": args[0], "value": v})
				}
				fmt.Println(v)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value (zoe only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.SetConfig(ctx, args[0], args[1], id)
				if err != nil {
					return err
				}
				return printRecord(entry)
			})
		},
	})
	return cmd
}

func eventsCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the audit log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, ev := range items {
					rows = append(rows, table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind, ev.EntityID, ev.ActorID})
				}
				return printTable(items, table.Row{"ID", "At", "Type", "Kind", "Entity", "Actor"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	cmd.Flags().Int64Var(&f.Before, "before", 0, "only events with a smaller id")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var owner, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key; the secret is shown once",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			target := owner
			if target == "" {
				target = id
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, err := e.CreateAPIKey(ctx, target, name, id)
				if err != nil {
					return err
				}
				return printRecord(key)
			})
		},
	}
	create.Flags().StringVar(&owner, "for", "", "identity the key acts as (defaults to --identity)")
	create.Flags().StringVar(&name, "name", "", "label")
	cmd.AddCommand(create)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the caller's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAPIKeys(ctx, id)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, k := range items {
					rows = append(rows, table.Row{k.ID, k.Name, k.CreatedAt})
				}
				return printTable(items, table.Row{"ID", "Name", "Created"}, rows)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeAPIKey(ctx, args[0], id)
			})
		},
	})
	return cmd
}
