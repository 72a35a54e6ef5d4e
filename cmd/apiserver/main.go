// API server entry point for SlaveryRisk-Intelligence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/bootstrap"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	httpserver "github.com/turtacn/SlaveryRisk-Intelligence/internal/interfaces/http"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/interfaces/http/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, port int) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	defer func() {
		if s, ok := logger.(logging.Syncer); ok {
			_ = s.Sync()
		}
	}()

	if configPath != "" {
		config.Watch(configPath, func(next *config.Config) {
			if lv, ok := logger.(logging.Leveler); ok && lv.Level() != next.Log.Level {
				lv.SetLevel(next.Log.Level)
				logger.Info("log level changed", logging.String("level", next.Log.Level))
			}
		}, func(err error) {
			logger.Warn("config reload rejected", logging.Err(err))
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	checkers := make([]handlers.HealthChecker, 0, len(app.HealthChecks()))
	for _, hc := range app.HealthChecks() {
		checkers = append(checkers, hc)
	}

	routerCfg := httpserver.RouterConfig{
		AssessmentHandler: handlers.NewAssessmentHandler(app.Service, submitter(app), logger),
		ReferenceHandler:  handlers.NewReferenceHandler(app.Store, app.Matcher),
		HealthHandler:     handlers.NewHealthHandler(config.Version, func() assessment.Capabilities { return app.Service.Capabilities() }, checkers...),
		Logging:           middleware.DefaultLoggingConfig(),
		RatePerSecond:     cfg.Server.RatePerSecond,
		MaxBodySize:       cfg.Server.MaxBodySize,
		Mode:              cfg.Server.Mode,
		Logger:            logger,
		MetricsPath:       cfg.Metrics.Path,
	}
	if cfg.Server.RatePerSecond > 0 {
		routerCfg.RateLimiter = app.Limiters.Register(resilience.DependencyHTTP, cfg.Server.RatePerSecond, cfg.Server.RateBurst)
	}
	if app.Metrics != nil {
		routerCfg.Metrics = app.Metrics
		routerCfg.MetricsHandler = app.Collector.Handler()
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("apiserver started",
		logging.String("version", config.Version),
		logging.Int("port", cfg.Server.Port),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown failed", logging.Err(err))
		return err
	}
	logger.Info("apiserver stopped")
	return nil
}

// submitter returns nil when Kafka is disabled so the async endpoint
// answers FeatureDisabled.
func submitter(app *bootstrap.App) handlers.Submitter {
	if app.Submitter == nil {
		return nil
	}
	return app.Submitter
}
