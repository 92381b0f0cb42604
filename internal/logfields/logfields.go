package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeySlug       = "slug"
	KeySource     = "source"
	KeyStage      = "stage"
	KeyDirective  = "directive"
	KeyTemplate   = "template"
	KeyDurationMS = "duration_ms"
	KeyPages      = "pages"
	KeyFailed     = "failed"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Slug(s string) slog.Attr          { return slog.String(KeySlug, s) }
func Source(path string) slog.Attr     { return slog.String(KeySource, path) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Directive(name string) slog.Attr  { return slog.String(KeyDirective, name) }
func Template(name string) slog.Attr   { return slog.String(KeyTemplate, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Pages(n int) slog.Attr            { return slog.Int(KeyPages, n) }
func Failed(n int) slog.Attr           { return slog.Int(KeyFailed, n) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
