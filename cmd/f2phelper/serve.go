package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"f2phelper/internal/proxy"
)

var serveOpts struct {
	addr     string
	upstream string
	db       string
	cssDir   string
	sitesDir string
	cacheTTL time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the annotating wiki proxy",
	Long: `Serve proxies the wiki and annotates every /w/ page for the requesting
visitor. Defaults come from F2P_* environment variables; flags override them.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	def := proxy.DefaultConfig()
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.addr, "addr", def.Addr, "Listen address, e.g. :8081")
	f.StringVar(&serveOpts.upstream, "upstream", def.Upstream, "Wiki base URL")
	f.StringVar(&serveOpts.db, "db", def.DBPath, "SQLite preference database (empty keeps preferences in memory)")
	f.StringVar(&serveOpts.cssDir, "css-dir", def.CSSDir, "Directory holding generated stylesheets")
	f.StringVar(&serveOpts.sitesDir, "sites-dir", def.SitesDir, "Directory holding per-host fetch configs")
	f.DurationVar(&serveOpts.cacheTTL, "cache-ttl", def.CacheTTL, "Upstream page cache lifetime (0 disables)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := proxy.DefaultConfig()
	cfg.Addr = serveOpts.addr
	cfg.Upstream = serveOpts.upstream
	cfg.DBPath = serveOpts.db
	cfg.CSSDir = serveOpts.cssDir
	cfg.SitesDir = serveOpts.sitesDir
	cfg.CacheTTL = serveOpts.cacheTTL
	cfg.Logger = logger

	handler, err := proxy.New(cfg)
	if err != nil {
		return err
	}
	defer handler.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("upstream", cfg.Upstream),
			zap.Bool("sqlite", cfg.DBPath != ""))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
