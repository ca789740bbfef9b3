package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/angola031/Ecoswap-sub003/internal/app"
	"github.com/angola031/Ecoswap-sub003/internal/config"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("INFO: .env file not found or error loading: %v. Relying on OS environment variables.\n", err)
	}

	appLogger := logger.NewLogger()
	defer func() { _ = appLogger.Sync() }()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	appLogger.Info("Application starting...",
		zap.String("service_name", cfg.ServiceName),
		zap.String("http_port", cfg.HTTP.Port),
		zap.String("grpc_port", cfg.GRPC.Port),
		zap.String("metrics_port", cfg.Metrics.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize application", zap.Error(err))
	}
	if err := application.Run(ctx); err != nil {
		appLogger.Error("Application stopped with error", zap.Error(err))
		os.Exit(1)
	}
	appLogger.Info("Application shut down successfully.")
}
