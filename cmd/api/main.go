package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"rentfit/agreement"
	"rentfit/auth"
	"rentfit/config"
	"rentfit/db"
	"rentfit/metrics"
	"rentfit/outbox"
	"rentfit/render"
	"rentfit/storage"
	"rentfit/tenancy"
	"rentfit/unit"
	"rentfit/user"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rentfit",
		Short:         "Rental agreement API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			// .env is optional; real deployments set the environment directly.
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg))
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", "count", len(applied), "versions", applied)
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if !user.Role(role).Valid() {
				return fmt.Errorf("invalid role %q", role)
			}
			token, err := auth.NewService(nil, cfg.JWTSecret, cfg.TokenTTL).
				IssueToken(auth.Identity{UserID: userID, Role: user.Role(role)})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed in the token")
	cmd.Flags().StringVar(&role, "role", string(user.RoleTenant), "role to embed in the token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newLogger(cfg config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return logger
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := setupTracing(cfg.TracesExporter, os.Stdout)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	users := user.NewRepository(pool)
	var summaries user.Reader = users
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		summaries = user.NewCachedReader(users, rdb, cfg.UserCacheTTL, logger)
	}

	var objects agreement.ObjectStore
	if missing := cfg.Cloudinary.Missing(); len(missing) > 0 {
		logger.Warn("cloudinary not configured; agreement creation will fail", "missing", missing)
		objects = storage.Unconfigured{Missing: missing}
	} else {
		c, err := storage.NewCloudinary(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			return err
		}
		objects = c
	}

	tenancies := tenancy.NewRepository(pool)
	activator := tenancy.NewActivator(tenancies, logger)

	svc := agreement.NewService(agreement.Deps{
		Pool:      pool,
		Store:     agreement.NewRepository(pool),
		Outbox:    outbox.NewRepository(),
		Users:     summaries,
		Units:     unit.NewRepository(pool),
		Tenancies: tenancies,
		Renderer:  render.NewPDFRenderer(),
		Objects:   objects,
		Activator: activator,
		Quorum:    agreement.CountQuorum{Required: cfg.SignerQuorum},
		Metrics:   m,
		Logger:    logger,
		Folder:    cfg.AgreementFolder,
	})

	relayOpts := []outbox.Option{
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithRecorder(m),
		outbox.WithLogger(logger),
		outbox.Handle(outbox.TopicAgreementSigned, activator.HandleAgreementSigned),
		outbox.Handle(outbox.TopicAgreementDeleted, svc.HandleAgreementDeleted),
	}
	if cfg.KafkaBrokers != "" {
		pub, err := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer pub.Close()
		relayOpts = append(relayOpts, outbox.WithPublisher(pub))
	}
	relay := outbox.NewRelay(pool, outbox.NewRepository(), relayOpts...)
	relay.Start(ctx)

	srv := &Server{
		agreements: svc,
		auth:       auth.NewService(users, cfg.JWTSecret, cfg.TokenTTL),
		metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		logger:     logger,
		debug:      cfg.IsDevelopment(),
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := relay.Stop(shutdownCtx); err != nil {
		logger.Error("outbox relay stop failed", "error", err)
	}
	return nil
}
