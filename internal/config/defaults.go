package config

import "git.home.luguber.info/inful/rocket/internal/markdown"

// applyDefaults fills in every omitted field after unmarshalling, so the
// rest of the program never has to special-case empty values.
func applyDefaults(cfg *Config) {
	if cfg.Title == "" {
		cfg.Title = "Documentation"
	}
	if cfg.Version == "" {
		cfg.Version = "0.0.0"
	}
	if cfg.ContentDir == "" {
		cfg.ContentDir = "content"
	}
	if cfg.Output == "" {
		cfg.Output = "build"
	}
	if cfg.ThemeDir == "" {
		cfg.ThemeDir = "theme"
	}
	if cfg.SyntaxTheme == "" {
		cfg.SyntaxTheme = markdown.DefaultSyntaxTheme
	}
	if cfg.ThemeConstants == nil {
		cfg.ThemeConstants = map[string]string{}
	}

	if cfg.History.Path == "" {
		cfg.History.Path = ".rocket/history.db"
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = ":8080"
	}
	if cfg.Watch.DebounceMS <= 0 {
		cfg.Watch.DebounceMS = 250
	}
	if cfg.Notifications.Subject == "" {
		cfg.Notifications.Subject = "rocket.builds"
	}
}
