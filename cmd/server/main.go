package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	conversationmodels "paper-agent-chat/backend/conversation/models"
	"paper-agent-chat/backend/pkg/config"
	"paper-agent-chat/backend/pkg/di"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/pkg/router"
	sessionmodels "paper-agent-chat/backend/session/models"
	"paper-agent-chat/backend/shared/observability"
)

func main() {
	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	cfg := config.New()

	log := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		JSON:      cfg.Logging.Format == "json",
		AddSource: cfg.Server.Env != "production",
	})
	logger.SetGlobal(log)

	db, err := config.NewDB()
	if err != nil {
		log.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&sessionmodels.Session{},
		&conversationmodels.Message{},
		&conversationmodels.MessagePart{},
	); err != nil {
		log.Error("failed to run migrations", "error", err.Error())
		os.Exit(1)
	}

	shutdownTracing := observability.SetupTracing("paper-agent-chat")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics(cfg.Server.MetricsAddr)

	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		log.Error("failed to build application container", "error", err.Error())
		os.Exit(1)
	}
	defer container.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container.TitlePool.Start(ctx)
	container.Health.Start()

	r := router.New(container)
	if schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH"); schemaPath != "" {
		if err := r.AddOpenAPIValidation(schemaPath); err != nil {
			log.Error("failed to enable openapi validation", "error", err.Error())
			os.Exit(1)
		}
	}
	r.SetupRoutes()

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r.Engine(),
		ReadTimeout: cfg.Server.Timeout,
		// No WriteTimeout: chat responses stream for as long as the
		// upstream agent keeps talking.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err.Error())
	}
	log.Info("server stopped")
}
