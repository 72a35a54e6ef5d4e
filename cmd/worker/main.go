// Background worker entry point for SlaveryRisk-Intelligence. It consumes
// assessment requests from Kafka, scores them and publishes the completed
// events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/worker"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/bootstrap"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/SlaveryRisk-Intelligence/internal/interfaces/http"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

const (
	defaultHealthPort = 8081
	drainTimeout      = 2 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	concurrency := flag.Int("concurrency", 0, "consumer group members (overrides kafka.concurrency)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	noDedup := flag.Bool("no-dedup", false, "skip Redis request deduplication")
	flag.Parse()

	if err := run(*configPath, *concurrency, *healthPort, !*noDedup); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, concurrency, healthPort int, dedup bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeConfigInvalid, "worker: kafka.enabled must be true")
	}
	if concurrency > 0 {
		cfg.Kafka.Concurrency = concurrency
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	logger = logger.Named("worker")
	defer func() {
		if s, ok := logger.(logging.Syncer); ok {
			_ = s.Sync()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []bootstrap.Option
	if dedup {
		opts = append(opts, bootstrap.WithClaims())
	}
	app, err := bootstrap.Build(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	var claims worker.Claimer
	if app.Claims != nil {
		claims = app.Claims
	}
	handler := worker.NewHandler(app.Service, claims, worker.DefaultClaimTTL, logger)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFrom(cfg.Kafka), handler.Handle, app.Producer, app.Metrics, logger)
	if err != nil {
		return err
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	health := startHealthServer(app, healthPort, logger)

	logger.Info("worker started",
		logging.String("topic", cfg.Kafka.RequestTopic),
		logging.String("group", cfg.Kafka.GroupID),
		logging.Int("members", cfg.Kafka.Concurrency),
		logging.Bool("dedup", claims != nil),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received; draining")

	if err := consumer.Close(); err != nil {
		logger.Warn("consumer close failed", logging.Err(err))
	}
	processed, retried, deadLettered := consumer.Counts()
	logger.Info("consumer stopped",
		logging.Int64("processed", processed),
		logging.Int64("retried", retried),
		logging.Int64("dead_lettered", deadLettered),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := health.Stop(shutdownCtx); err != nil {
		logger.Warn("health server shutdown failed", logging.Err(err))
	}
	return nil
}

// startHealthServer serves the probes and metrics on their own port.
func startHealthServer(app *bootstrap.App, port int, logger logging.Logger) *httpserver.Server {
	checkers := make([]handlers.HealthChecker, 0, len(app.HealthChecks()))
	for _, hc := range app.HealthChecks() {
		checkers = append(checkers, hc)
	}
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(config.Version, func() assessment.Capabilities { return app.Service.Capabilities() }, checkers...),
		Mode:          "release",
		Logger:        logger,
		MetricsPath:   app.Config.Metrics.Path,
	}
	if app.Metrics != nil {
		routerCfg.MetricsHandler = app.Collector.Handler()
	}

	srv := httpserver.NewServer(config.ServerConfig{Port: port, ShutdownTimeout: 5 * time.Second}, httpserver.NewRouter(routerCfg), logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}()
	return srv
}
