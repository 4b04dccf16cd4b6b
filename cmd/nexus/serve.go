package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nexus/internal/app"
	"nexus/internal/config"
	"nexus/internal/server"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write nexus.yml and bootstrap the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			operator := viper.GetString("identity")
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(operator)), 0o644); err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Engine.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(res)
			}
			fmt.Printf("Initialized %s (channels: %v, activity window: %d days)\n", path, res.Channels, res.WindowDays)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing nexus.yml")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a, addr, basePath)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func serve(ctx context.Context, a *app.App, addr, basePath string) error {
	if addr == "" {
		addr = a.Config.Server.Addr
	}
	secret := viper.GetString("jwt-secret")
	if secret == "" {
		secret = a.Config.Server.JWTSecret
	}
	if secret == "" {
		return fmt.Errorf("NEXUS_JWT_SECRET or server.jwt_secret is required for bearer auth")
	}
	handler, err := server.New(server.Config{
		Engine:   a.Engine,
		BasePath: basePath,
		Auth:     server.AuthConfig{JWTSecret: secret, DevLogin: a.Config.Server.DevLogin, Logger: a.Log},
	})
	if err != nil {
		return err
	}
	server.StartWebhookDispatcher(ctx, a.Engine, a.Log)

	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	a.Log.Info("serving nexus api", "addr", addr, "base_path", basePath, "docs", "/docs", "metrics", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
