// Package config loads and validates the project configuration file.
//
// A project is configured by a single config.yaml at the project root.
// Environment files (.env, .env.local) are loaded first and ${VAR}
// references in the YAML are expanded before parsing, so credentials for
// notifications never need to live in the config file itself.
package config

import (
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
)

// DefaultFile is the configuration file name looked up in the project
// root.
const DefaultFile = "config.yaml"

// Config is the project configuration.
type Config struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`

	ContentDir  string `yaml:"content_dir"`
	Output      string `yaml:"output"`
	ThemeDir    string `yaml:"theme_dir"`
	SyntaxTheme string `yaml:"syntax_theme"`
	PrettyURLs  *bool  `yaml:"pretty_urls"`

	// Templates maps pages to theme templates: the first rule whose
	// pattern matches a page's slug selects the template. Order matters,
	// which is why this is a list and not a map.
	Templates []TemplateRule `yaml:"templates"`

	// ThemeConstants are site-wide values handed to every template.
	ThemeConstants map[string]string `yaml:"theme_constants"`

	GitInfo    bool `yaml:"git_info"`
	CheckLinks bool `yaml:"check_links"`

	History       HistoryConfig `yaml:"history"`
	Serve         ServeConfig   `yaml:"serve"`
	Watch         WatchConfig   `yaml:"watch"`
	Notifications NotifyConfig  `yaml:"notifications"`
}

// TemplateRule maps a slug glob to a theme template name.
type TemplateRule struct {
	Pattern  string `yaml:"pattern"`
	Template string `yaml:"template"`
}

// HistoryConfig controls the build history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServeConfig controls rocket serve.
type ServeConfig struct {
	Addr       string `yaml:"addr"`
	LiveReload bool   `yaml:"live_reload"`
}

// WatchConfig controls the content watcher.
type WatchConfig struct {
	DebounceMS      int    `yaml:"debounce_ms"`
	RebuildInterval string `yaml:"rebuild_interval"`
}

// NotifyConfig controls build event publishing.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, rerrors.ConfigNotFound(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.ConfigInvalid("failed to read config file", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, rerrors.ConfigInvalid("failed to parse config file", err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Pretty reports whether pretty URLs are enabled. Omitting pretty_urls
// means enabled.
func (c *Config) Pretty() bool {
	return c.PrettyURLs == nil || *c.PrettyURLs
}

// Debounce returns the watcher debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// RebuildEvery returns the periodic full-rebuild interval, if one is
// configured. Validation has already checked the syntax.
func (c *Config) RebuildEvery() (time.Duration, bool) {
	if c.Watch.RebuildInterval == "" {
		return 0, false
	}
	d, err := time.ParseDuration(c.Watch.RebuildInterval)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// TemplateFor returns the theme template name for a page slug: the first
// matching rule wins, falling back to "default". Patterns use path.Match
// syntax, so a * does not cross slug separators.
func (c *Config) TemplateFor(slug string) string {
	for _, rule := range c.Templates {
		if ok, err := path.Match(rule.Pattern, slug); err == nil && ok {
			return rule.Template
		}
	}
	return "default"
}
