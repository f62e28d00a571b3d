package proxy

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"f2phelper/internal/prefs"
)

const (
	defaultAddr     = ":8081"
	defaultUpstream = "https://oldschool.runescape.wiki"
	defaultSitesDir = "config/sites"
	defaultCSSDir   = "output"
	defaultCacheTTL = 5 * time.Minute
)

// Config describes server wiring and runtime behaviour.
type Config struct {
	Addr     string
	Upstream string
	// DBPath selects the SQLite preference database. Empty keeps
	// preferences in memory.
	DBPath   string
	CSSDir   string
	SitesDir string
	CacheTTL time.Duration
	LogLevel string

	Logger *zap.Logger
	Clock  func() time.Time
	// Prefs overrides the backend chosen from DBPath.
	Prefs prefs.Namespacer
	// Registry receives the server's metrics. Nil creates a private one.
	Registry   *prometheus.Registry
	HTTPClient *http.Client
}

// DefaultConfig populates configuration from environment variables.
func DefaultConfig() Config {
	cfg := Config{
		Addr:     envOr("F2P_ADDR", defaultAddr),
		Upstream: envOr("F2P_UPSTREAM", defaultUpstream),
		DBPath:   strings.TrimSpace(os.Getenv("F2P_DB")),
		CSSDir:   envOr("F2P_CSS_DIR", defaultCSSDir),
		SitesDir: envOr("F2P_SITES_DIR", defaultSitesDir),
		CacheTTL: defaultCacheTTL,
		LogLevel: envOr("F2P_LOG_LEVEL", "info"),
		Clock:    time.Now,
	}
	if raw := strings.TrimSpace(os.Getenv("F2P_CACHE_TTL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
			cfg.CacheTTL = d
		}
	}
	if cfg.Addr == defaultAddr {
		if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
			cfg.Addr = ":" + port
		}
	}
	return cfg
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

// Server exposes the HTTP handlers implementing the proxy behaviour.
type Server struct {
	cfg      Config
	router   *chi.Mux
	logger   *zap.Logger
	upstream *url.URL
	prefs    prefs.Namespacer
	closers  []io.Closer
	visitors *visitorStore
	jars     *cookieJarStore
	cache    *pageCache
	sites    *siteConfigStore
	fetch    *httpFetcher
	metrics  *metrics
	reverse  *httputil.ReverseProxy
	clock    func() time.Time

	browserOnce sync.Once
	browser     *renderer
}

// New wires a new proxy server with the provided configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Upstream == "" {
		cfg.Upstream = defaultUpstream
	}
	if cfg.SitesDir == "" {
		cfg.SitesDir = defaultSitesDir
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	upstream, err := url.Parse(strings.TrimRight(cfg.Upstream, "/"))
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", cfg.Upstream)
	}

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		logger:   cfg.Logger,
		upstream: upstream,
		visitors: newVisitorStore(cfg.Clock),
		jars:     newCookieJarStore(cfg.Clock),
		cache:    newPageCache(cfg.Clock, cfg.CacheTTL),
		sites:    newSiteConfigStore(cfg.SitesDir, cfg.Logger),
		fetch:    newHTTPFetcher(cfg.HTTPClient),
		clock:    cfg.Clock,
	}
	if s.metrics, err = newMetrics(cfg.Registry); err != nil {
		return nil, err
	}
	switch {
	case cfg.Prefs != nil:
		s.prefs = cfg.Prefs
	case cfg.DBPath != "":
		db, err := prefs.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		s.prefs = db
		s.closers = append(s.closers, db)
	default:
		s.prefs = prefs.NewMemory()
	}
	s.reverse = s.newReverseProxy()
	s.router.Use(func(next http.Handler) http.Handler {
		return withLogging(s.logger, s.metrics, next)
	})
	s.registerRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the preference database and the headless browser.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	if s.browser != nil {
		s.browser.Close()
	}
	return errors.Join(errs...)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Get("/", s.handleIndex)
	r.Get("/ping", s.handlePing)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	r.Get("/w/*", s.handlePage)
	r.Route("/_f2p", func(r chi.Router) {
		r.Get("/settings", s.handleSettings)
		r.Post("/prefs", s.handlePrefs)
		r.Get("/css/{file}", s.handleCSS)
		r.Get("/icon.png", s.handleIcon)
	})
	r.NotFound(s.reverse.ServeHTTP)
	r.MethodNotAllowed(s.reverse.ServeHTTP)
}

func (s *Server) newReverseProxy() *httputil.ReverseProxy {
	target := s.upstream
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.Out.Header.Del("Cookie")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn("Upstream request failed", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
}

// pageRenderer starts the headless browser on first use.
func (s *Server) pageRenderer() *renderer {
	s.browserOnce.Do(func() {
		s.browser = newRenderer(s.logger)
	})
	return s.browser
}
