// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/auth/memory"
	"github.com/warden-auth/warden/internal/auth/postgres"
	"github.com/warden-auth/warden/internal/config"
	"github.com/warden-auth/warden/internal/logging"
	"github.com/warden-auth/warden/internal/observability"
	"github.com/warden-auth/warden/internal/store"
	"github.com/warden-auth/warden/internal/web"
)

const (
	serviceName     = "warden"
	shutdownTimeout = 5 * time.Second
	readinessPing   = 2 * time.Second
)

// serveConfig holds the loaded configuration plus serve-only switches.
type serveConfig struct {
	*config.Config
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long: `Start the HTTP API with the configured authentication strategy.
Settings come from flag defaults, then the --config file, then flags
given on the command line.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile, nil)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), &serveConfig{Config: cfg, autoMigrate: autoMigrate}, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending database migrations before serving")

	return cmd
}

// runServeWithDeps runs the API server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *serveConfig, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}

	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = func(ctx context.Context, url string, logger *slog.Logger) (Database, error) {
			return store.Connect(ctx, url, store.ConnectOptions{Logger: logger})
		}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) APIServer {
			return web.NewServer(addr, handler, logger)
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, deps.LogOutput,
		logging.WithLevel(logging.ParseLevel(cfg.Log.Level)))
	slog.SetDefault(logger)

	logger.Info("starting warden",
		"http_addr", cfg.HTTP.Addr,
		"auth_type", cfg.Auth.Type,
		"session_store", cfg.Auth.SessionStore,
	)

	if cfg.autoMigrate {
		if !cfg.UsesDatabase() {
			return oops.Code("CONFIG_INVALID").Errorf("--migrate requires a database url")
		}
		if err := autoMigrate(deps.MigratorFactory, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	var db Database
	if cfg.UsesDatabase() {
		var err error
		db, err = deps.DatabaseFactory(ctx, cfg.Database.URL, logger)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		defer db.Close()
		logger.Info("connected to database")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readinessChecker(&ready, db))
		metrics = obsServer.Metrics()
	}

	opts := web.Options{
		CookieName:   cfg.Auth.SessionName,
		SessionTTL:   cfg.Auth.SessionTTL(),
		SecureCookie: cfg.Auth.SecureCookie,
		Logger:       logger,
	}
	var recorder auth.Recorder = auth.NopRecorder{}
	if metrics != nil {
		recorder = metrics
		opts.Metrics = metrics
	}

	svc, err := buildService(cfg.Config, db, recorder, logger)
	if err != nil {
		return err
	}

	apiServer := deps.APIServerFactory(cfg.HTTP.Addr, web.NewHandler(svc, opts), logger)
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("HTTP_START_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
				logger.Warn("failed to stop api server during cleanup", "error", stopErr)
			}
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	ready.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Warden started")
	logger.Info("warden ready", "http_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	ready.Store(false)
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// autoMigrate applies pending migrations and always closes the migrator.
func autoMigrate(factory func(string) (AutoMigrator, error), url string, logger *slog.Logger) (err error) {
	migrator, err := factory(url)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("applying database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return nil
}

// readinessChecker reports ready once serving has started and, with a
// database configured, while the database answers a ping.
func readinessChecker(ready *atomic.Bool, db Database) observability.ReadinessChecker {
	return func() bool {
		if !ready.Load() {
			return false
		}
		if db == nil {
			return true
		}
		ctx, cancel := context.WithTimeout(context.Background(), readinessPing)
		defer cancel()
		return db.Ping(ctx) == nil
	}
}

// buildService wires the repositories, strategy and reset flow for cfg.
// A nil db keeps users and sessions in memory.
func buildService(cfg *config.Config, db postgres.DB, recorder auth.Recorder, logger *slog.Logger) (*auth.Service, error) {
	var users auth.UserRepository
	if db != nil {
		users = postgres.NewUserRepository(db)
	} else {
		users = memory.NewUserRepository()
	}

	sessions, err := buildSessionStore(cfg.Auth, db)
	if err != nil {
		return nil, err
	}

	hasher := auth.NewArgon2idHasher()

	authn, err := auth.NewAuthenticator(auth.AuthenticatorConfig{
		Strategy:      cfg.Auth.Type,
		ExcludedPaths: cfg.Auth.ExcludedPaths,
		CookieName:    cfg.Auth.SessionName,
		Users:         users,
		Hasher:        hasher,
		Sessions:      sessions,
		Options: []auth.StrategyOption{
			auth.WithStrategyRecorder(recorder),
			auth.WithStrategyLogger(logger),
		},
	})
	if err != nil {
		return nil, err
	}

	resets, err := auth.NewResetTokenManager(users, hasher,
		auth.WithResetTTL(cfg.Auth.ResetTTL()),
		auth.WithResetRecorder(recorder),
		auth.WithResetLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return auth.NewService(auth.ServiceConfig{
		Authenticator: authn,
		Users:         users,
		Sessions:      sessions,
		Hasher:        hasher,
		Resets:        resets,
		Recorder:      recorder,
		Logger:        logger,
	})
}

func buildSessionStore(cfg config.AuthConfig, db postgres.DB) (auth.SessionStore, error) {
	switch cfg.SessionStore {
	case config.StorePostgres:
		if db == nil {
			return nil, oops.Code("CONFIG_INVALID").
				Errorf("session_store %q requires a database", config.StorePostgres)
		}
		opts := []postgres.SessionOption{postgres.WithSessionTTL(cfg.SessionTTL())}
		if cfg.EvictExpired {
			opts = append(opts, postgres.WithEvictExpired())
		}
		return postgres.NewSessionStore(db, opts...), nil
	default:
		var opts []memory.SessionOption
		if cfg.EvictExpired {
			opts = append(opts, memory.WithEvictExpired())
		}
		return memory.NewExpiringSessionStore(cfg.SessionTTL(), opts...), nil
	}
}

// monitorServerErrors cancels ctx when a server reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
