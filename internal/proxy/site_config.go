package proxy

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Fetch modes a site config can select.
const (
	ModeHTTP = "http"
	ModeJS   = "js"
)

// SiteConfig tunes how pages of one upstream host are fetched. It is read
// from <SitesDir>/<host>.json; parent domains are tried when the exact
// host has no file.
type SiteConfig struct {
	Mode         string            `json:"mode"`
	Headers      map[string]string `json:"headers,omitempty"`
	WaitSelector string            `json:"wait_selector,omitempty"`
	WaitAfterMS  int               `json:"wait_after_ms,omitempty"`
	TimeoutMS    int               `json:"timeout_ms,omitempty"`
}

type siteConfigStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.RWMutex
	cache  map[string]*SiteConfig
}

func newSiteConfigStore(dir string, logger *zap.Logger) *siteConfigStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &siteConfigStore{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*SiteConfig),
	}
}

// Find returns the config for target's host, or a plain http config when
// none exists.
func (s *siteConfigStore) Find(target string) *SiteConfig {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return &SiteConfig{Mode: ModeHTTP}
	}
	host := strings.ToLower(u.Hostname())
	s.mu.RLock()
	cfg, ok := s.cache[host]
	s.mu.RUnlock()
	if ok {
		return cfg
	}

	cfg = &SiteConfig{Mode: ModeHTTP}
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels)-1; i++ {
		if found := s.load(strings.Join(labels[i:], ".")); found != nil {
			cfg = found
			break
		}
	}
	s.mu.Lock()
	s.cache[host] = cfg
	s.mu.Unlock()
	return cfg
}

func (s *siteConfigStore) load(host string) *SiteConfig {
	if s.dir == "" {
		return nil
	}
	path := filepath.Join(s.dir, host+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cfg SiteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.logger.Warn("Ignoring unreadable site config", zap.String("path", path), zap.Error(err))
		return nil
	}
	switch cfg.Mode = strings.TrimSpace(strings.ToLower(cfg.Mode)); cfg.Mode {
	case ModeJS, ModeHTTP:
	case "":
		cfg.Mode = ModeHTTP
	default:
		s.logger.Warn("Unknown site fetch mode, using http", zap.String("path", path), zap.String("mode", cfg.Mode))
		cfg.Mode = ModeHTTP
	}
	s.logger.Debug("Loaded site config", zap.String("host", host), zap.String("mode", cfg.Mode))
	return &cfg
}
