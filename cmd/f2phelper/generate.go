package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"f2phelper/internal/category"
)

var generateOpts struct {
	config      string
	out         string
	concurrency int
	timeout     time.Duration
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build the link color stylesheets from wiki categories",
	Long: `Generate lists the pages of every configured category through the wiki
API and writes one stylesheet per group plus all.css, which the proxy links
into annotated pages.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateOpts.config, "config", "c", "", "Category config YAML (default: built in)")
	f.StringVarP(&generateOpts.out, "out", "o", envOr("F2P_CSS_DIR", "output"), "Output directory")
	f.IntVar(&generateOpts.concurrency, "concurrency", 4, "Concurrent category fetches")
	f.DurationVar(&generateOpts.timeout, "timeout", 10*time.Minute, "Overall timeout")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg := category.DefaultConfig()
	if generateOpts.config != "" {
		loaded, err := category.LoadConfig(generateOpts.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx := cmd.Context()
	if generateOpts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, generateOpts.timeout)
		defer cancel()
	}

	gen := &category.Generator{
		Config:      cfg,
		Fetcher:     category.NewClient(cfg.WikiURL, logger),
		OutDir:      generateOpts.out,
		Logger:      logger,
		Concurrency: generateOpts.concurrency,
	}
	res, err := gen.Run(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, f := range res.Files {
		fmt.Fprintf(out, "%s\t%d selectors\t%d bytes\n", f.Path, f.Selectors, f.Bytes)
	}
	if len(res.Failed) > 0 {
		logger.Warn("Some categories were only partially listed", zap.Strings("categories", res.Failed))
	}
	return nil
}
