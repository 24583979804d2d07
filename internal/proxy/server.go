// Package proxy is an HTTP front end that fetches pages, relabels them and
// serves the result, keeping navigation inside the proxy.
package proxy

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sloganeer/internal/config"
	"sloganeer/relabel"
)

const defaultIndexHTML = `<!DOCTYPE html>
<html><body>
<h1>sloganeer</h1>
<form action="/fetch" method="get">
<h3>Fetch URL</h3>
URL: <input name="url" size="60"><br>
<button type="submit">Fetch</button>
</form>
</body></html>`

const (
	defaultSitesDir = "config/sites"
	defaultTimeout  = 30 * time.Second
	defaultSettle   = 2 * time.Second
)

// Renderer relabels a page inside a real browser and returns its markup.
type Renderer interface {
	Relabel(ctx context.Context, target, css string, cfg relabel.Config, settle time.Duration) (string, relabel.Stats, error)
}

// Config describes server wiring and runtime behaviour.
type Config struct {
	IndexHTML string
	Rules     *RuleStore
	SitesDir  string
	// CacheTTL of zero disables the page cache.
	CacheTTL time.Duration
	// UpstreamRPS of zero disables per-host rate limiting.
	UpstreamRPS   float64
	UpstreamBurst int
	Timeout       time.Duration
	Transport     http.RoundTripper
	// Browser serves sites configured with mode "js". Without one they are
	// fetched over plain HTTP.
	Browser Renderer
	Settle  time.Duration
	Logger  *zap.Logger
}

// DefaultConfig uses the built-in rules and server settings.
func DefaultConfig() Config {
	return FromSettings(config.Default(), nil)
}

// FromSettings maps loaded settings onto a proxy configuration. Settings that
// fail validation fall back to the built-in rules.
func FromSettings(c config.Config, logger *zap.Logger) Config {
	rules, err := NewRuleStore(RulesFromSettings(c))
	if err != nil {
		d := config.Default()
		rules, _ = NewRuleStore(RulesFromSettings(d))
	}
	return Config{
		IndexHTML:     defaultIndexHTML,
		Rules:         rules,
		SitesDir:      c.Server.SitesDir,
		CacheTTL:      c.Server.CacheTTL,
		UpstreamRPS:   c.Server.UpstreamRPS,
		UpstreamBurst: c.Server.UpstreamBurst,
		Timeout:       c.Server.Timeout,
		Settle:        c.Browser.Settle,
		Logger:        logger,
	}
}

// RulesFromSettings extracts the substitution rules from c.
func RulesFromSettings(c config.Config) Rules {
	return Rules{
		Labels:     c.Labels,
		Slogans:    c.Slogans,
		Seed:       c.Seed,
		Stylesheet: c.Stylesheet,
	}
}

// Server exposes the HTTP handlers implementing the proxy behaviour.
type Server struct {
	cfg        Config
	mux        *http.ServeMux
	handler    http.Handler
	logger     *zap.Logger
	rules      *RuleStore
	cookieJars *cookieJarStore
	cache      *pageCache
	sites      *siteConfigStore
	limits     *hostLimiter
}

// New wires a new proxy server with the provided configuration.
func New(cfg Config) *Server {
	if cfg.IndexHTML == "" {
		cfg.IndexHTML = defaultIndexHTML
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultConfig().Rules
	}
	if cfg.SitesDir == "" {
		cfg.SitesDir = defaultSitesDir
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	logger := cfg.Logger.Named("proxy")
	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		logger:     logger,
		rules:      cfg.Rules,
		cookieJars: newCookieJarStore(),
		cache:      newPageCache(cfg.CacheTTL),
		sites:      newSiteConfigStore(cfg.SitesDir, logger),
		limits:     newHostLimiter(cfg.UpstreamRPS, cfg.UpstreamBurst),
	}
	s.registerRoutes()
	s.handler = withLogging(logger, s.mux)
	return s
}

// Handler exposes the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler { return s }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/fetch", s.handleFetch)
	s.mux.HandleFunc("/ping", s.handlePing)
}
