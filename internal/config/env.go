package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads environment variables from .env then .env.local.
// Existing process environment variables are never overwritten, so real
// environment always beats the files and .env beats .env.local.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if err := godotenv.Load(name); err == nil {
			slog.Debug("loaded environment file", "path", name)
		}
	}
}
