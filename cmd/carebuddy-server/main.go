package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carebuddy/carebuddy/internal/config"
	"github.com/carebuddy/carebuddy/internal/domain/alert"
	"github.com/carebuddy/carebuddy/internal/domain/careplan"
	"github.com/carebuddy/carebuddy/internal/domain/chat"
	"github.com/carebuddy/carebuddy/internal/domain/emergency"
	"github.com/carebuddy/carebuddy/internal/domain/healthlog"
	"github.com/carebuddy/carebuddy/internal/domain/identity"
	"github.com/carebuddy/carebuddy/internal/domain/reminder"
	"github.com/carebuddy/carebuddy/internal/domain/report"
	"github.com/carebuddy/carebuddy/internal/domain/voice"
	"github.com/carebuddy/carebuddy/internal/platform/db"
	"github.com/carebuddy/carebuddy/internal/platform/llm"
	"github.com/carebuddy/carebuddy/internal/platform/middleware"
	"github.com/carebuddy/carebuddy/internal/platform/notification"
	"github.com/carebuddy/carebuddy/internal/platform/telephony"
	"github.com/carebuddy/carebuddy/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "carebuddy-server",
		Short: "CareBuddy diabetes care companion API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CareBuddy API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	// Leave headroom for a full insight pipeline (four LLM stages).
	e.Use(middleware.RequestTimeout(4*cfg.LLMTimeout() + 10*time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// WebSocket hub for live alert delivery
	hub := websocket.NewHub()
	wsHandler := websocket.NewHandler(hub)
	wsHandler.RegisterRoutes(apiV1)

	// Notifications. The log senders stand in until real SMTP/SMS
	// integrations are configured.
	notifMgr := notification.NewManager(
		&notification.LogEmailSender{Log: logger},
		&notification.LogSMSSender{Log: logger},
		notification.NewTemplateEngine(),
	)
	doctorNotifier := notification.NewDoctorNotifier(notifMgr, logger)
	notifHandler := notification.NewHandler(notifMgr)
	notifHandler.RegisterRoutes(apiV1)

	// Identity
	patientRepo := identity.NewPatientRepoPG(pool)
	doctorRepo := identity.NewDoctorRepoPG(pool)
	identitySvc := identity.NewService(patientRepo, doctorRepo)
	identityHandler := identity.NewHandler(identitySvc)
	identityHandler.RegisterRoutes(apiV1)

	// Care plans
	careplanRepo := careplan.NewCarePlanRepoPG(pool)
	careplanSvc := careplan.NewService(careplanRepo, logger)
	careplanHandler := careplan.NewHandler(careplanSvc)
	careplanHandler.RegisterRoutes(apiV1)

	// Alerts
	alertRepo := alert.NewAlertRepoPG(pool)
	alertSvc := alert.NewService(alertRepo, careplanRepo, identitySvc, doctorNotifier, hub, logger)
	alertHandler := alert.NewHandler(alertSvc)
	alertHandler.RegisterRoutes(apiV1)

	// Health logs. The alert service needs the dose source for missed-dose
	// checks; wired after construction to break the cycle.
	healthlogSvc := healthlog.NewService(
		healthlog.NewGlucoseLogRepoPG(pool),
		healthlog.NewMedicationLogRepoPG(pool),
		healthlog.NewMealLogRepoPG(pool),
		healthlog.NewActivityLogRepoPG(pool),
		careplanRepo,
		alertSvc,
		pool,
	)
	alertSvc.SetDoseSource(healthlogSvc)
	healthlogHandler := healthlog.NewHandler(healthlogSvc)
	healthlogHandler.RegisterRoutes(apiV1)

	// Reminders, regenerated whenever a care plan changes
	reminderSvc := reminder.NewService(reminder.NewRepoPG(pool), careplanRepo, pool, logger)
	careplanSvc.AddObserver(reminderSvc)
	reminderHandler := reminder.NewHandler(reminderSvc)
	reminderHandler.RegisterRoutes(apiV1)

	// Reports
	reportSvc := report.NewService(healthlogSvc, alertSvc, careplanRepo)
	reportHandler := report.NewHandler(reportSvc)
	reportHandler.RegisterRoutes(apiV1)

	// Conversation pipeline
	completer := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout())
	stages := []chat.Stage{
		chat.NewBuddyStage(completer),
		chat.NewExtractStage(completer),
		chat.NewRiskStage(completer),
		chat.NewSummaryStage(completer),
	}
	sessions := chat.NewSessions(cfg.SessionTTL())
	go sessions.Run(ctx, 5*time.Minute)

	orchestrator := chat.NewOrchestrator(
		sessions,
		stages,
		chat.NewKeywordDetector(cfg.EmergencyKeywords),
		careplanSvc,
		alertSvc,
		cfg.LLMTimeout(),
		logger,
	)
	chatHandler := chat.NewHandler(orchestrator)
	chatHandler.RegisterRoutes(apiV1)

	// Voice. Outbound calling stays disabled without full telephony
	// credentials; inbound webhooks work either way.
	var initiator telephony.CallInitiator
	if tc := telephony.NewClient(cfg.TelephonyAccountSID, cfg.TelephonyAuthToken, cfg.TelephonyFromNumber); tc != nil {
		initiator = tc
		logger.Info().Msg("telephony enabled")
	} else {
		logger.Info().Msg("telephony disabled: credentials not configured")
	}
	voiceSvc := voice.NewService(orchestrator, identitySvc, initiator, cfg.TelephonyWebhookBaseURL, logger)
	voiceHandler := voice.NewHandler(voiceSvc)
	voiceHandler.RegisterRoutes(apiV1)

	// Emergency contact and appointment requests
	emergencySvc := emergency.NewService(identitySvc, alertSvc, emergency.NewAppointmentRepoPG(pool), doctorNotifier, logger)
	emergencyHandler := emergency.NewHandler(emergencySvc)
	emergencyHandler.RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
