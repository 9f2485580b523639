// Package main is the entry point for the resilient analytics API.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/resilientlabs/analytics-api/internal/config"
	"github.com/resilientlabs/analytics-api/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags, logger)

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", observability.Error(err))
	}

	app.run(flags.configPath)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("ANALYTICS_CONFIG_PATH", "configs/analytics.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("ANALYTICS_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("ANALYTICS_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("analytics-api version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger from flags.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads the configuration, falling back to defaults
// when no file is present at the default path.
func loadAndValidateConfig(flags cliFlags, logger observability.Logger) *config.Config {
	logger.Info("starting analytics-api",
		observability.String("version", version),
		observability.String("config", flags.configPath))

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !flagWasSet("config") {
			logger.Warn("configuration file not found, using defaults",
				observability.String("path", flags.configPath))
			cfg = config.DefaultConfig()
		} else {
			logger.Fatal("failed to load configuration", observability.Error(err))
		}
	}

	// The config file may override the log level.
	if cfg.Logging.Level != "" {
		if err := logger.SetLevel(cfg.Logging.Level); err != nil {
			logger.Warn("invalid log level in configuration", observability.Error(err))
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		observability.Int("rate_limit_requests", int(cfg.RateLimit.Requests)),
		observability.String("rate_limit_window", cfg.RateLimit.Window.Duration().String()),
		observability.Int("breaker_threshold", cfg.CircuitBreaker.FailureThreshold),
		observability.String("breaker_reset_timeout", cfg.CircuitBreaker.ResetTimeout.Duration().String()),
		observability.String("cache_ttl", cfg.Cache.TTL.Duration().String()))

	return cfg
}

// flagWasSet reports whether the named flag was passed explicitly.
func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
