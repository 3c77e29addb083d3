package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/validation-workflow/internal/config"
	"github.com/garyjia/validation-workflow/internal/container"
	httpapi "github.com/garyjia/validation-workflow/internal/interfaces/http"
	"github.com/garyjia/validation-workflow/pkg/utils"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	flag.Parse()

	loadEnvFile(*envFile)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "validation-workflow",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting validation workflow service",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := c.Services()
	opts := []httpapi.Option{
		httpapi.WithHealthCheck(func(ctx context.Context) (bool, interface{}) {
			status := c.Health(ctx)
			return status.Overall, status.Components
		}),
	}
	if rec := c.Metrics(); rec != nil {
		opts = append(opts, httpapi.WithMetrics(rec, cfg.Metrics.Path))
	}

	server := httpapi.NewServer(cfg.Server, httpapi.Services{
		Thresholds: services.Threshold,
		Resolver:   services.Resolver,
		Validation: services.Validation,
		Statistics: services.Statistics,
		Rules:      services.Rules,
	}, &zapAdapter{logger: logger.Named("http")}, opts...)

	// Blocks until SIGINT/SIGTERM, then drains within server.shutdown_timeout
	return server.Start(ctx)
}

// loadEnvFile loads path when it exists; variables already set win
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := gotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file %s: %v\n", path, err)
	}
}

// zapAdapter satisfies the key-value Logger of the HTTP layer
type zapAdapter struct {
	logger *zap.Logger
}

func (a *zapAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Sugar().Infow(msg, keysAndValues...)
}

func (a *zapAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Sugar().Errorw(msg, keysAndValues...)
}
