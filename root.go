package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mlaakso/sharewatch/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// loadedCfg and loadedDurations hold the effective configuration resolved by
// PersistentPreRunE, available to all subcommands afterwards.
var (
	loadedCfg       *config.Config
	loadedDurations *config.Durations
)

// defaultConfigPath is used when --config is not given.
const defaultConfigPath = "config.toml"

// Log rotation limits for the optional file log.
const (
	logMaxSizeMB  = 20
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sharewatch",
		Short:   "Shared-folder permission watcher",
		Long:    "Watches shared folder trees for permission changes and reports them, and scans directory groups for the folder trees shared with them.",
		Version: version,
		// Silence cobra's default error/usage printing — main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "log in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig resolves the effective configuration and stores it for use by
// subcommands.
func loadConfig() error {
	path := flagConfigPath
	if path == "" {
		path = defaultConfigPath
	}

	cfg, durations, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	loadedCfg = cfg
	loadedDurations = durations

	return nil
}

// buildLogger creates an slog.Logger configured by the loaded config and CLI
// flags. Config-file log level is the baseline; --verbose and --quiet
// override it because CLI flags always win. When log_file is set, output is
// duplicated into a size-rotated file.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if loadedCfg != nil {
		switch loadedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	var out io.Writer = os.Stderr

	if loadedCfg != nil && loadedCfg.LogFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   loadedCfg.LogFile,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
		})
	}

	opts := &slog.HandlerOptions{Level: level}

	// Pipes and CI get structured output; terminals get the text handler.
	if flagJSON || !isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	return slog.New(slog.NewTextHandler(out, opts))
}
