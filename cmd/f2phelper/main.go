package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose  bool
	logLevel string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "f2phelper",
	Short: "Mark members and free-to-play pages of the Old School RuneScape wiki",
	Long: `f2phelper annotates wiki pages with a members or free-to-play icon and
title styling, driven by per-visitor preferences.

It can run as an annotating proxy in front of the wiki, annotate saved pages
offline, or generate the link color stylesheets from the wiki's categories.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		level, err := zapcore.ParseLevel(strings.TrimSpace(logLevel))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("F2P_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(inspectCmd)
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
