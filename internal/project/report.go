package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/rocket/internal/linkcheck"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// PageFailure records one page that was skipped during a build pass.
type PageFailure struct {
	Source string `json:"source"`
	Phase  string `json:"phase"` // evaluate | link
	Error  string `json:"error"`
}

// BuildReport captures what happened during one site build. It is
// persisted next to the generated site, appended to history, and
// published to NATS when notifications are on.
type BuildReport struct {
	ID             string                   `json:"id"`
	SchemaVersion  int                      `json:"schema_version"`
	Start          time.Time                `json:"start"`
	End            time.Time                `json:"end"`
	Pages          int                      `json:"pages"`
	RenderedPages  int                      `json:"rendered_pages"`
	FailedPages    []PageFailure            `json:"failed_pages,omitempty"`
	StageDurations map[string]time.Duration `json:"stage_durations"`
	Warnings       []string                 `json:"warnings,omitempty"`
	Errors         []string                 `json:"errors,omitempty"`
	LinkIssues     []linkcheck.Issue        `json:"link_issues,omitempty"`
	Canceled       bool                     `json:"canceled,omitempty"`
	Outcome        BuildOutcome             `json:"outcome"`
	ToolVersion    string                   `json:"tool_version"`
}

func newBuildReport(id, toolVersion string) *BuildReport {
	return &BuildReport{
		ID:             id,
		SchemaVersion:  1,
		Start:          time.Now(),
		StageDurations: make(map[string]time.Duration),
		ToolVersion:    toolVersion,
	}
}

func (r *BuildReport) addWarning(msg string) { r.Warnings = append(r.Warnings, msg) }

func (r *BuildReport) addError(msg string) { r.Errors = append(r.Errors, msg) }

func (r *BuildReport) addPageFailure(source, phase string, err error) {
	r.FailedPages = append(r.FailedPages, PageFailure{Source: source, Phase: phase, Error: err.Error()})
}

// Duration returns the wall-clock build time.
func (r *BuildReport) Duration() time.Duration { return r.End.Sub(r.Start) }

func (r *BuildReport) finish() {
	if r.End.IsZero() {
		r.End = time.Now()
	}
}

// deriveOutcome sets Outcome from the recorded errors and warnings.
func (r *BuildReport) deriveOutcome() {
	switch {
	case r.Canceled:
		r.Outcome = OutcomeCanceled
	case len(r.Errors) > 0:
		r.Outcome = OutcomeFailed
	case len(r.Warnings) > 0 || len(r.FailedPages) > 0 || len(r.LinkIssues) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	return fmt.Sprintf("pages=%d rendered=%d failed=%d duration=%s warnings=%d link_issues=%d outcome=%s",
		r.Pages, r.RenderedPages, len(r.FailedPages), r.Duration().Truncate(time.Millisecond),
		len(r.Warnings), len(r.LinkIssues), r.Outcome)
}

// Persist writes the report into the output directory: build-report.json
// for machines, build-report.txt for humans. Both writes go through a
// temp file and rename. Best effort; callers log failures but the build
// outcome is already decided.
func (r *BuildReport) Persist(root string) error {
	r.finish()
	if r.Outcome == "" {
		r.deriveOutcome()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}

	jb, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	jsonPath := filepath.Join(root, "build-report.json")
	tmp := jsonPath + ".tmp"
	if err := os.WriteFile(tmp, jb, 0o644); err != nil {
		return fmt.Errorf("write report json: %w", err)
	}
	if err := os.Rename(tmp, jsonPath); err != nil {
		return fmt.Errorf("rename report json: %w", err)
	}

	txtPath := filepath.Join(root, "build-report.txt")
	tmp = txtPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(r.Summary()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write report summary: %w", err)
	}
	if err := os.Rename(tmp, txtPath); err != nil {
		return fmt.Errorf("rename report summary: %w", err)
	}
	return nil
}
