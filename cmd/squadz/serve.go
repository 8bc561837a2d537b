// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/account/postgres"
	"github.com/squadz/squadz/internal/auth"
	"github.com/squadz/squadz/internal/config"
	"github.com/squadz/squadz/internal/httpapi"
	"github.com/squadz/squadz/internal/identity"
	"github.com/squadz/squadz/internal/logging"
	"github.com/squadz/squadz/internal/notify"
	"github.com/squadz/squadz/internal/observability"
	"github.com/squadz/squadz/internal/session"
	"github.com/squadz/squadz/internal/store"
	"github.com/squadz/squadz/internal/token"
)

const (
	serviceName     = "squadz"
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the account API",
		Long: `Run the account HTTP API together with the metrics and health
endpoints. SIGINT or SIGTERM triggers a graceful shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg)
		},
	}
}

// closer releases a resource acquired while building the server.
type closer func()

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, cfg.LogFormat, level)
	logger.Info("starting squadz", "http_addr", cfg.HTTPAddr, "metrics_addr", cfg.MetricsAddr)

	if cfg.AutoMigrate {
		if err := autoMigrate(cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}

	connectOpts := store.DefaultConnectOptions()
	connectOpts.Logger = logger
	pool, err := store.Connect(ctx, cfg.DatabaseURL, connectOpts)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	obs := observability.NewServer(cfg.MetricsAddr, pool.Ping, logger)

	notifier, closeNotifier, err := buildNotifier(cfg, obs.Metrics(), logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc, err := buildService(cfg, pool, notifier, obs.Metrics(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		obsErr, err := obs.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErr, "observability", logger)
		defer stopServer(obs.Stop, "observability", logger)
	}

	api := httpapi.NewServer(cfg.HTTPAddr, svc, logger)
	apiErr, err := api.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErr, "http", logger)
	defer stopServer(api.Stop, "http", logger)

	cmd.Println("squadz started")
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func autoMigrate(databaseURL string, logger *slog.Logger) error {
	m, err := migratorFactory(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return err
	}
	logger.Info("schema migrations applied")
	return nil
}

// buildNotifier selects Kafka delivery when brokers are configured and
// log-only delivery otherwise.
func buildNotifier(cfg *config.Config, rec notify.Recorder, logger *slog.Logger) (notify.Notifier, closer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("no kafka brokers configured, notifications are only logged")
		return notify.NewLogNotifier(logger), func() {}, nil
	}
	n, err := notify.NewKafkaNotifier(notify.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
		Metrics: rec,
	})
	if err != nil {
		return nil, nil, err
	}
	return n, func() {
		if err := n.Close(); err != nil {
			logger.Warn("failed to close notifier", "error", err)
		}
	}, nil
}

// buildVerifiers enables each provider that has a client id.
func buildVerifiers(cfg *config.Config) (map[account.Origin]identity.Verifier, error) {
	verifiers := map[account.Origin]identity.Verifier{}
	if cfg.AppleClientID != "" {
		v, err := identity.NewApple(cfg.AppleClientID)
		if err != nil {
			return nil, err
		}
		verifiers[account.OriginApple] = v
	}
	if cfg.GoogleClientID != "" {
		v, err := identity.NewGoogle(cfg.GoogleClientID)
		if err != nil {
			return nil, err
		}
		verifiers[account.OriginGoogle] = v
	}
	return verifiers, nil
}

func buildService(cfg *config.Config, pool *pgxpool.Pool, notifier notify.Notifier, rec auth.Recorder, logger *slog.Logger) (*auth.Service, error) {
	codec, err := token.NewCodec(token.Config{
		AccessKey:  []byte(cfg.JWTAccessSecret),
		RefreshKey: []byte(cfg.JWTRefreshSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	accounts := postgres.NewAccountRepository(pool)
	tx := postgres.NewTransactor(pool)
	issuer, err := session.NewIssuer(codec, accounts, postgres.NewSessionRepository(pool), tx)
	if err != nil {
		return nil, err
	}
	verifiers, err := buildVerifiers(cfg)
	if err != nil {
		return nil, err
	}

	return auth.NewService(auth.Config{
		Accounts:   accounts,
		Transactor: tx,
		Issuer:     issuer,
		Hasher:     auth.NewArgon2idHasher(),
		Notifier:   notifier,
		Verifiers:  verifiers,
		Metrics:    rec,
		Logger:     logger,
	})
}

// monitorServerErrors cancels ctx when a server stops with an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func stopServer(stop func(context.Context) error, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("failed to stop server", "server", name, "error", err)
	}
}
