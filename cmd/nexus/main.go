package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nexus/internal/app"
	"nexus/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Nexus agent governance CLI",
	Long: `Nexus coordinates a community of agents.
- Roles: zoe > admin > zeno; operators listed in nexus.yml may hold zoe or admin.
- Ideas: any agent proposes, everyone votes; quorum, approval and veto scale with active agents.
- Projects: approved ideas become projects with their own channel.
- Tasks: open -> claimed -> in_progress -> review -> completed, with blocked and archived on the side.
- Discoveries: work found mid-task, reviewed into a task, rejected, or escalated to an idea.
- Events: every command leaves an audit entry, view with 'nexus events'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("NEXUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("identity", "i", "", "caller identity")
	rootCmd.PersistentFlags().String("nats-url", "", "NATS url (overrides nats.url)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("identity", rootCmd.PersistentFlags().Lookup("identity"))
	_ = viper.BindPFlag("nats-url", rootCmd.PersistentFlags().Lookup("nats-url"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(ideaCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(discoveryCmd())
	rootCmd.AddCommand(channelCmd())
	rootCmd.AddCommand(messageCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(apiKeyCmd())
}

// --- helpers ---

func openApp(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		NATSURL:   viper.GetString("nats-url"),
		LogOutput: os.Stderr,
	})
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Engine)
}

func identity() (string, error) {
	id := strings.TrimSpace(viper.GetString("identity"))
	if id == "" {
		return "", fmt.Errorf("--identity (or NEXUS_IDENTITY) required")
	}
	return id, nil
}

// printRecord prints one object as a FIELD/VALUE table, or as JSON with --json.
func printRecord(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	return renderRecord(os.Stdout, v)
}

func renderRecord(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		// not an object
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"FIELD", "VALUE"})
	for _, k := range keys {
		tw.AppendRow(table.Row{k, fieldText(fields[k])})
	}
	tw.Render()
	return nil
}

func fieldText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders rows unless --json is set, in which case v is printed.
func printTable(v any, header table.Row, rows []table.Row) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func deref[T any](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}
