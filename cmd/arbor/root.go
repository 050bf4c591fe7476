package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a statechart driven ticket backlog coordinator",
	Long: `Arbor coordinates a ticket list, a details sidebar and title updates as one
parallel statechart. Views send events and read tags; backend calls run as actors.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to a YAML configuration file")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("backend", "", "Ticket backend: memory, redis or http")
	pf.String("redis-addr", "", "Redis address for the redis backend")
	pf.String("backend-url", "", "Ticket API base URL for the http backend")
	pf.Duration("latency", 0, "Artificial latency of the memory backend")
}

// loadConfig reads the configuration file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("backend") {
		cfg.Backend.Kind, _ = flags.GetString("backend")
	}
	if flags.Changed("redis-addr") {
		cfg.Backend.Redis.Addr, _ = flags.GetString("redis-addr")
	}
	if flags.Changed("backend-url") {
		cfg.Backend.URL, _ = flags.GetString("backend-url")
	}
	if flags.Changed("latency") {
		cfg.Backend.Latency, _ = flags.GetDuration("latency")
	}

	return cfg, cfg.Validate()
}

// setup loads the configuration and builds the application under a signal context.
func setup(cmd *cobra.Command) (*cli.App, *cli.SignalContext, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	sigCtx := cli.NewSignalContext(cmd.Context())
	app, err := cli.NewApp(sigCtx, cfg, logger)
	if err != nil {
		sigCtx.Cancel()
		return nil, nil, err
	}
	return app, sigCtx, nil
}

// newLogger writes to Stderr so that Stdout stays free for the REPL and MCP stdio.
func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format), nil
}
