// Package main is the entry point for the business administration API
// gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/observability"
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
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		fmt.Fprintf(os.Stderr, "bizgw: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses args. Flag defaults come from the environment.
func parseFlags(args []string) (cliFlags, error) {
	fs := flag.NewFlagSet("bizgw", flag.ContinueOnError)
	var f cliFlags
	fs.StringVar(&f.configPath, "config", getEnvOrDefault("GATEWAY_CONFIG_PATH", ""),
		"Path to configuration file (embedded defaults when empty)")
	fs.StringVar(&f.logLevel, "log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the config file")
	fs.StringVar(&f.logFormat, "log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", ""),
		"Log format (json, console); overrides the config file")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "bizgw version %s\n", version)
	fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// loadConfig loads and validates configuration, then applies the flag
// overrides for logging.
func loadConfig(flags cliFlags) (*config.GatewayConfig, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Observability.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Observability.LogFormat = flags.logFormat
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.GatewayConfig) (observability.Logger, error) {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		return nil, err
	}
	observability.SetGlobalLogger(logger)
	return logger, nil
}

// run starts the gateway and blocks until ctx is done, then shuts down.
func run(ctx context.Context, flags cliFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)

	logger.Info("starting bizgw",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("clusters", len(cfg.Clusters)),
	)

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := app.gateway.Start(ctx); err != nil {
		app.close(context.Background())
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")
	return app.shutdown(context.Background())
}
