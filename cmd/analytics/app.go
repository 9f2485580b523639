package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/resilientlabs/analytics-api/internal/cache"
	"github.com/resilientlabs/analytics-api/internal/circuitbreaker"
	"github.com/resilientlabs/analytics-api/internal/config"
	"github.com/resilientlabs/analytics-api/internal/external"
	"github.com/resilientlabs/analytics-api/internal/health"
	"github.com/resilientlabs/analytics-api/internal/kvstore"
	"github.com/resilientlabs/analytics-api/internal/metricstore"
	"github.com/resilientlabs/analytics-api/internal/observability"
	"github.com/resilientlabs/analytics-api/internal/ratelimit"
	"github.com/resilientlabs/analytics-api/internal/server"
)

// application owns every component for the process lifetime. All
// components are explicit instances wired here and passed by reference;
// nothing is reachable through global mutable state.
type application struct {
	config   *config.Config
	logger   observability.Logger
	tracer   *observability.Tracer
	kv       *kvstore.RedisStore
	breakers *circuitbreaker.Registry
	external *external.Service
	server   *server.Server
}

// newApplication wires all components from the configuration.
func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "analytics-api",
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, err
	}

	kvCfg := kvstore.DefaultRedisConfig()
	kvCfg.URL = cfg.Redis.URL
	kvCfg.Prefix = cfg.Redis.KeyPrefix
	kvCfg.Logger = logger
	if cfg.Redis.PoolSize > 0 {
		kvCfg.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.ConnectTimeout > 0 {
		kvCfg.DialTimeout = cfg.Redis.ConnectTimeout.Duration()
	}
	if cfg.Redis.ReadTimeout > 0 {
		kvCfg.ReadTimeout = cfg.Redis.ReadTimeout.Duration()
	}
	if cfg.Redis.WriteTimeout > 0 {
		kvCfg.WriteTimeout = cfg.Redis.WriteTimeout.Duration()
	}
	if cfg.Redis.ConnectionRetries > 0 {
		kvCfg.ConnectionRetries = cfg.Redis.ConnectionRetries
	}
	if cfg.Redis.InitialBackoff > 0 {
		kvCfg.InitialBackoff = cfg.Redis.InitialBackoff.Duration()
	}
	if cfg.Redis.MaxBackoff > 0 {
		kvCfg.MaxBackoff = cfg.Redis.MaxBackoff.Duration()
	}

	kv, err := kvstore.NewRedisStore(kvCfg)
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.NewLimiter(kv, &ratelimit.Config{
		Threshold: cfg.RateLimit.Requests,
		Window:    cfg.RateLimit.Window.Duration(),
	}, logger)
	if err != nil {
		return nil, err
	}

	cacheSvc, err := cache.NewService(kv, &cache.Config{
		DefaultTTL: cfg.Cache.TTL.Duration(),
	}, logger)
	if err != nil {
		return nil, err
	}

	breakers := circuitbreaker.NewRegistry(&circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		ResetTimeout:     cfg.CircuitBreaker.ResetTimeout.Duration(),
	}, logger)
	breaker, err := breakers.GetOrCreate("external")
	if err != nil {
		return nil, err
	}

	ext, err := external.NewService(&external.Config{
		FailureRate: cfg.External.FailureRate,
		MinLatency:  cfg.External.MinLatency.Duration(),
		MaxLatency:  cfg.External.MaxLatency.Duration(),
	}, logger)
	if err != nil {
		return nil, err
	}

	checker := health.NewChecker()
	checker.RegisterCheck("redis", kv.Ping)

	srv := server.New(&server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:    cfg.Server.WriteTimeout.Duration(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}, server.Deps{
		Logger:   logger,
		Metrics:  metricstore.New(),
		Cache:    cacheSvc,
		Limiter:  limiter,
		Breakers: breakers,
		Breaker:  breaker,
		External: ext,
		Checker:  checker,
	})

	return &application{
		config:   cfg,
		logger:   logger,
		tracer:   tracer,
		kv:       kv,
		breakers: breakers,
		external: ext,
		server:   srv,
	}, nil
}

// run serves HTTP until a shutdown signal arrives.
func (app *application) run(configPath string) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	watcher := app.startConfigWatcher(configPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		app.logger.Info("received shutdown signal",
			observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			app.logger.Error("server failed", observability.Error(err))
		}
	}

	app.shutdown(watcher)
}

// startConfigWatcher hot-reloads runtime-tunable settings: the simulated
// external failure rate and the log level. Structural settings (ports,
// thresholds, backend URL) require a restart.
func (app *application) startConfigWatcher(configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		if err := app.external.SetFailureRate(newCfg.External.FailureRate); err != nil {
			app.logger.Error("failed to apply new failure rate", observability.Error(err))
		}
		if err := app.logger.SetLevel(newCfg.Logging.Level); err != nil {
			app.logger.Error("failed to apply new log level", observability.Error(err))
		}
	}, config.WithWatcherLogger(app.logger))
	if err != nil {
		app.logger.Warn("config watcher unavailable", observability.Error(err))
		return nil
	}

	if err := watcher.Start(); err != nil {
		app.logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}
	return watcher
}

// shutdown drains the server and releases resources.
func (app *application) shutdown(watcher *config.Watcher) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		watcher.Stop()
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if err := app.tracer.Shutdown(ctx); err != nil {
		app.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	if err := app.kv.Close(); err != nil {
		app.logger.Error("failed to close key-value store", observability.Error(err))
	}

	app.logger.Info("analytics-api stopped")
}
