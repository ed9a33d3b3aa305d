package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"weict/internal/platform/config"
	"weict/internal/platform/logger"
	"weict/internal/platform/postgres"
	"weict/internal/registration/store"
)

// startupTimeout bounds connecting to dependencies and running the schema.
const startupTimeout = 15 * time.Second

type runtimeState struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	rt := &runtimeState{}

	root := &cobra.Command{
		Use:           "server",
		Short:         "WE-ICT workshop registration service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.logger = logger.New(cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to an optional config file (env vars take precedence)")

	root.AddCommand(
		newServeCommand(rt),
		newMigrateCommand(rt),
	)
	return root
}

func newMigrateCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the registrations table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
			defer cancel()

			db, err := postgres.Open(ctx, rt.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.NewPostgres(db).EnsureSchema(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			rt.logger.InfoContext(ctx, "registrations schema ready")
			return nil
		},
	}
}
