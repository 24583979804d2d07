// Package config loads sloganeer settings.
//
// Configuration hierarchy (highest to lowest priority):
//  1. CLI flags
//  2. Environment variables (SLOGANEER_*)
//  3. Config file (~/.sloganeer/config.yaml)
//  4. Defaults
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"sloganeer/relabel"
)

// EnvPrefix prefixes every environment override, e.g. SLOGANEER_SERVER_ADDR.
const EnvPrefix = "SLOGANEER"

// Config is the full application configuration.
type Config struct {
	Labels     []string      `yaml:"labels" mapstructure:"labels"`
	Slogans    []string      `yaml:"slogans" mapstructure:"slogans"`
	Seed       uint64        `yaml:"seed" mapstructure:"seed"`
	Stylesheet string        `yaml:"stylesheet" mapstructure:"stylesheet"`
	Server     ServerConfig  `yaml:"server" mapstructure:"server"`
	Browser    BrowserConfig `yaml:"browser" mapstructure:"browser"`
}

// ServerConfig drives `sloganeer serve`.
type ServerConfig struct {
	Addr          string        `yaml:"addr" mapstructure:"addr"`
	SitesDir      string        `yaml:"sites_dir" mapstructure:"sites_dir"`
	CacheTTL      time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	UpstreamRPS   float64       `yaml:"upstream_rps" mapstructure:"upstream_rps"`
	UpstreamBurst int           `yaml:"upstream_burst" mapstructure:"upstream_burst"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BrowserConfig drives the Chrome host.
type BrowserConfig struct {
	Headless bool          `yaml:"headless" mapstructure:"headless"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Settle is how long a js-mode page keeps relabeling before it is
	// snapshotted.
	Settle time.Duration `yaml:"settle" mapstructure:"settle"`
}

// DefaultStylesheet restyles storefront primary buttons drawn with spans,
// whose colors live on the wrapper rather than on the label.
const DefaultStylesheet = `.a-button-primary,
.a-button-primary .a-button-inner {
	background-color: rgb(220,220,220) !important;
	border-color: rgb(220,220,220) !important;
	box-shadow: none !important;
	outline: none !important;
}
`

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Labels: []string{
			"Buy Now",
			"Add to Cart",
			"Proceed to Checkout",
			"Checkout",
			"Order Now",
			"Complete Purchase",
			"Purchase",
			"Subscribe",
			"Subscribe Now",
			"Continue to Payment",
			"Move to Cart",
			"Buy it Now",
			"Add",
			"Options",
			"Find a Store",
		},
		Slogans: []string{
			"Consume",
			"Obey",
			"Stay Asleep",
			"Marry and Reproduce",
			"Submit",
			"Watch T.V.",
			"Do Not Think",
			"Money Is Your God",
			"Conform",
			"No Thought",
			"Do Not Question Authority",
		},
		Stylesheet: DefaultStylesheet,
		Server: ServerConfig{
			Addr:          ":8080",
			SitesDir:      "config/sites",
			CacheTTL:      5 * time.Minute,
			UpstreamRPS:   2,
			UpstreamBurst: 4,
			Timeout:       30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  45 * time.Second,
			Settle:   2 * time.Second,
		},
	}
}

// SetDefaults registers every key with v so that environment variables can
// override keys the config file does not mention.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("labels", d.Labels)
	v.SetDefault("slogans", d.Slogans)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("stylesheet", d.Stylesheet)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.sites_dir", d.Server.SitesDir)
	v.SetDefault("server.cache_ttl", d.Server.CacheTTL)
	v.SetDefault("server.upstream_rps", d.Server.UpstreamRPS)
	v.SetDefault("server.upstream_burst", d.Server.UpstreamBurst)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.timeout", d.Browser.Timeout)
	v.SetDefault("browser.settle", d.Browser.Settle)
}

// DefaultPath is ~/.sloganeer/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: find home directory: %w", err)
	}
	return filepath.Join(home, ".sloganeer", "config.yaml"), nil
}

// NewViper returns a viper instance with defaults, env binding and, when one
// exists, the config file read in. An empty file means the default location,
// which may be absent.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
		return v, nil
	}
	path, err := DefaultPath()
	if err != nil {
		return v, nil
	}
	v.AddConfigPath(filepath.Dir(path))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return v, nil
}

// Load unmarshals v and validates the result.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that an engine can be built and the server limits are sane.
func (c Config) Validate() error {
	if _, err := relabel.New(c.Engine(nil)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Server.UpstreamRPS < 0 {
		return fmt.Errorf("config: server.upstream_rps must not be negative, got %v", c.Server.UpstreamRPS)
	}
	if c.Server.UpstreamRPS > 0 && c.Server.UpstreamBurst < 1 {
		return fmt.Errorf("config: server.upstream_burst must be at least 1, got %d", c.Server.UpstreamBurst)
	}
	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("config: server.cache_ttl must not be negative, got %s", c.Server.CacheTTL)
	}
	return nil
}

// Engine converts c into engine settings. A non-zero seed makes every engine
// built from c pick the same sequence.
func (c Config) Engine(logger *zap.Logger) relabel.Config {
	return relabel.Config{
		Labels:  append([]string(nil), c.Labels...),
		Slogans: append([]string(nil), c.Slogans...),
		Seed:    c.Seed,
		Logger:  logger,
	}
}

// Watch re-loads v whenever its config file changes and reports the result.
// Invalid edits are reported with an error and the zero Config.
func Watch(v *viper.Viper, fn func(Config, error)) {
	v.OnConfigChange(func(fsnotify.Event) {
		fn(Load(v))
	})
	v.WatchConfig()
}

// WriteYAML encodes c with a short header.
func WriteYAML(w io.Writer, c Config) error {
	if _, err := fmt.Fprintf(w, "# sloganeer configuration\n#\n"+
		"# Configuration hierarchy (highest to lowest priority):\n"+
		"#   1. CLI flags\n#   2. Environment variables (%s_*)\n"+
		"#   3. This config file\n#   4. Built-in defaults\n\n", EnvPrefix); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encode yaml: %w", err)
	}
	return enc.Close()
}
