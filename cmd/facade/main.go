// Package main is the entry point for the Foundry facade.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/observability"
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
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(flags, cfg.Logging)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting foundry-facade",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.String("environment", cfg.Environment),
	)

	ctx := context.Background()

	app, err := initApplication(ctx, cfg, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize application", observability.Error(err))
		return
	}

	runServer(ctx, app, logger)
}

// parseFlags parses command line flags. Flags fall back to FACADE_*
// environment variables, and log settings then fall back to the config file.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	configPath := fs.String("config", getEnvOrDefault("FACADE_CONFIG_PATH", "configs/facade.yaml"),
		"Path to configuration file")
	logLevel := fs.String("log-level", getEnvOrDefault("FACADE_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", getEnvOrDefault("FACADE_LOG_FORMAT", ""),
		"Log format (json, console)")
	showVersion := fs.Bool("version", false, "Show version information")
	_ = fs.Parse(args)

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("foundry-facade version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags, cfg config.LoggingConfig) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  firstNonEmpty(flags.logLevel, cfg.Level, "info"),
		Format: firstNonEmpty(flags.logFormat, cfg.Format, "json"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// fatalWithSync flushes the logger before exiting.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	os.Exit(1)
}
