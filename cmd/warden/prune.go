// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/warden-auth/warden/internal/auth/postgres"
	"github.com/warden-auth/warden/internal/config"
	"github.com/warden-auth/warden/internal/store"
)

// PruneDeps contains injectable dependencies for the prune-sessions command.
type PruneDeps struct {
	// DatabaseFactory opens the PostgreSQL pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string, logger *slog.Logger) (Database, error)

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(string) string
}

// NewPruneSessionsCmd creates the prune-sessions subcommand.
func NewPruneSessionsCmd() *cobra.Command {
	return newPruneSessionsCmd(nil)
}

func newPruneSessionsCmd(deps *PruneDeps) *cobra.Command {
	if deps == nil {
		deps = &PruneDeps{}
	}
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = func(ctx context.Context, url string, logger *slog.Logger) (Database, error) {
			return store.Connect(ctx, url, store.ConnectOptions{Logger: logger})
		}
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}

	var dbURL string
	cmd := &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired sessions from PostgreSQL",
		Long: `Delete persisted sessions whose lifetime has ended. Expired sessions
already fail to resolve; this only reclaims their rows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := databaseURL(dbURL, deps.Getenv)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := deps.DatabaseFactory(ctx, url, slog.Default())
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
			}
			defer db.Close()

			removed, err := postgres.NewSessionStore(db).DeleteExpired(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d expired sessions\n", removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbURL, "database-url", "", "PostgreSQL URL (default: config file, then $"+config.DatabaseURLEnv+")")

	return cmd
}
