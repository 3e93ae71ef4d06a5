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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/tinrooster/tedecom-v1/internal/aggregate"
	"github.com/tinrooster/tedecom-v1/internal/api"
	"github.com/tinrooster/tedecom-v1/internal/auth"
	"github.com/tinrooster/tedecom-v1/internal/config"
	"github.com/tinrooster/tedecom-v1/internal/database"
	"github.com/tinrooster/tedecom-v1/internal/logging"
	"github.com/tinrooster/tedecom-v1/internal/notify"
	"github.com/tinrooster/tedecom-v1/internal/render"
	"github.com/tinrooster/tedecom-v1/internal/report"
	"github.com/tinrooster/tedecom-v1/internal/retry"
	"github.com/tinrooster/tedecom-v1/internal/scheduler"
	"github.com/tinrooster/tedecom-v1/internal/templates"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

func run() error {
	// Initialize configuration
	cfg, err := config.LoadConfig(os.Getenv("TEDECOM_CONFIG"))
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level, Component: "tedecom"})
	gin.SetMode(gin.ReleaseMode)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid reports.timezone: %w", err)
	}

	// Initialize database
	db, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx := context.Background()
	if _, err := database.EnsureAdmin(db, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return err
	}

	templateService := templates.NewService(db)
	if n, err := templateService.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("failed to create default templates: %w", err)
	} else if n > 0 {
		log.Info().Int("count", n).Msg("Default templates created")
	}

	retryOpts := retry.Options{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay,
		Backoff:     cfg.Retry.Backoff,
	}

	managerCfg := report.Config{
		DB:            db,
		Aggregator:    aggregate.New(db),
		Templates:     templateService,
		Renderer:      render.NewRegistry(),
		Artifacts:     report.NewArtifactStore(cfg.Reports.OutputDir, retryOpts),
		Metrics:       report.NewMetrics(prometheus.DefaultRegisterer),
		MaxConcurrent: int64(cfg.Reports.MaxConcurrent),
	}
	if cfg.Email.Enabled {
		managerCfg.Mailer = notify.NewMailer(notify.EmailConfig{
			Host:          cfg.Email.SMTPHost,
			Port:          cfg.Email.SMTPPort,
			Username:      cfg.Email.Username,
			Password:      cfg.Email.Password,
			From:          cfg.Email.From,
			RatePerMinute: cfg.Email.RatePerMinute,
		}, retryOpts)
	}
	if cfg.Slack.Token != "" {
		managerCfg.Notifier = notify.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel)
	}

	manager := report.NewManager(managerCfg)
	if err := manager.Init(ctx); err != nil {
		return fmt.Errorf("failed to recover reports: %w", err)
	}

	sched := scheduler.New(manager, scheduler.Options{
		Location:   loc,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err := sched.Init(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	server := api.NewServer(api.Config{
		DB:        db,
		Reports:   manager,
		Scheduler: sched,
		Templates: templateService,
		Auth:      auth.New(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown failed")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Report manager shutdown failed")
	}
	return nil
}
