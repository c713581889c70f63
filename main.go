package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/loci-search/internal/pkg/config"
	logging "github.com/FACorreiaa/loci-search/internal/pkg/logger"
	"github.com/FACorreiaa/loci-search/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize logger
	if err := logging.Init(zapcore.InfoLevel, cfg.Env, zap.String("service", "loci-search")); err != nil {
		return err
	}
	logger := logging.Log
	defer logger.Sync()

	// Initialize observability
	otelShutdown, err := server.InitObservability("loci-search", ":9092", logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	// Create server (connects to Postgres and runs migrations)
	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	// Setup router and wire the search pipeline
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, app, err := server.SetupRouter(ctx, cfg, srv.GetDBPool(), logger)
	if err != nil {
		return err
	}
	srv.SetRouter(router)

	// Background sweep for RUNNING jobs whose worker died
	if app.Sweeper != nil {
		go app.Sweeper.Run(ctx)
	}

	// Start pprof server (on separate port, not exposed publicly)
	server.StartPprofServer(":6060", logger)

	// Create HTTP server
	httpServer := srv.HTTPServer()

	// Setup graceful shutdown
	done := make(chan bool, 1)
	go server.GracefulShutdown(httpServer, logger, done)

	// Start server
	logger.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Error("Server error", zap.Error(err))
	}

	// Wait for graceful shutdown to complete
	<-done
	logger.Info("Graceful shutdown complete")

	return nil
}
