package config

import (
	"fmt"
	"path"
	"time"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/markdown"
)

// validate checks the configuration after defaults have been applied.
func (c *Config) validate() error {
	if c.Output == c.ContentDir {
		return rerrors.ConfigInvalid("output and content_dir must differ", nil)
	}
	if c.Output == c.ThemeDir {
		return rerrors.ConfigInvalid("output and theme_dir must differ", nil)
	}

	// The highlighter silently falls back on unknown styles, which reads
	// like broken highlighting. Reject the typo here instead.
	if !markdown.KnownStyle(c.SyntaxTheme) {
		return rerrors.ConfigInvalid(fmt.Sprintf("unknown syntax_theme %q", c.SyntaxTheme), nil)
	}

	for i, rule := range c.Templates {
		if rule.Pattern == "" || rule.Template == "" {
			return rerrors.ConfigInvalid(fmt.Sprintf("templates[%d] needs both pattern and template", i), nil)
		}
		if _, err := path.Match(rule.Pattern, "probe"); err != nil {
			return rerrors.ConfigInvalid(fmt.Sprintf("templates[%d] pattern %q is malformed", i, rule.Pattern), err)
		}
	}

	if c.Watch.RebuildInterval != "" {
		d, err := time.ParseDuration(c.Watch.RebuildInterval)
		if err != nil {
			return rerrors.ConfigInvalid("watch.rebuild_interval is not a duration", err)
		}
		if d <= 0 {
			return rerrors.ConfigInvalid("watch.rebuild_interval must be positive", nil)
		}
	}

	if c.Notifications.Enabled && c.Notifications.URL == "" {
		return rerrors.ConfigInvalid("notifications.enabled requires notifications.url", nil)
	}

	return nil
}
