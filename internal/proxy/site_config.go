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

// Site fetch modes.
const (
	ModeHTTP = "http"
	ModeJS   = "js"
)

// SiteConfig is read from <host>.json in the sites directory. The most
// specific domain wins: a.b.example.com tries a.b.example.com.json, then
// b.example.com.json, then example.com.json and com.json.
type SiteConfig struct {
	Mode    string            `json:"mode"`
	Headers map[string]string `json:"headers,omitempty"`
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

func (s *siteConfigStore) Find(target string) *SiteConfig {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	s.mu.RLock()
	if cfg, ok := s.cache[host]; ok {
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	var found *SiteConfig
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels) && found == nil; i++ {
		found = s.load(strings.Join(labels[i:], "."))
	}
	s.mu.Lock()
	s.cache[host] = found
	s.mu.Unlock()
	return found
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
		s.logger.Warn("bad site config", zap.String("path", path), zap.Error(err))
		return nil
	}
	cfg.Mode = strings.TrimSpace(strings.ToLower(cfg.Mode))
	switch cfg.Mode {
	case "", ModeHTTP:
		cfg.Mode = ModeHTTP
	case ModeJS:
	default:
		s.logger.Warn("unknown site mode", zap.String("path", path), zap.String("mode", cfg.Mode))
		cfg.Mode = ModeHTTP
	}
	return &cfg
}
