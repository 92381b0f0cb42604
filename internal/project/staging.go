package project

import (
	"os"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
)

// beginStaging creates an isolated sibling directory the build writes
// into, so a failed build never leaves the live output half-written.
func (bs *buildState) beginStaging(outputDir string) error {
	stage := outputDir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return rerrors.FileSystemError("clear staging directory", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return rerrors.FileSystemError("create staging directory", err)
	}
	bs.stageDir = stage
	bs.builder.logger.Debug("initialized staging directory", "staging", stage, "final", outputDir)
	return nil
}

// finalizeStaging promotes the staging directory to the final output
// location: the old output moves aside to <output>.prev, staging renames
// into place, and the backup is removed in the background.
func (bs *buildState) finalizeStaging(outputDir string) error {
	if bs.stageDir == "" {
		return rerrors.InternalError("no staging directory initialized", nil)
	}
	if _, err := os.Stat(bs.stageDir); err != nil {
		return rerrors.FileSystemError("staging directory missing at finalize", err)
	}

	prev := outputDir + ".prev"
	if _, err := os.Stat(prev); err == nil {
		if err := os.RemoveAll(prev); err != nil {
			bs.builder.logger.Warn("failed to remove previous backup", "path", prev, "error", err)
		}
	}
	if _, err := os.Stat(outputDir); err == nil {
		if err := os.Rename(outputDir, prev); err != nil {
			return rerrors.FileSystemError("backup existing output", err)
		}
	}
	if err := os.Rename(bs.stageDir, outputDir); err != nil {
		return rerrors.FileSystemError("promote staging directory", err)
	}
	bs.stageDir = ""

	go func() {
		if err := os.RemoveAll(prev); err != nil {
			bs.builder.logger.Warn("failed to remove previous backup", "path", prev, "error", err)
		}
	}()
	bs.builder.logger.Debug("promoted staging directory", "output", outputDir)
	return nil
}

// abortStaging removes the staging directory after a failed build.
func (bs *buildState) abortStaging() {
	if bs.stageDir == "" {
		return
	}
	dir := bs.stageDir
	bs.stageDir = ""
	if err := os.RemoveAll(dir); err != nil {
		bs.builder.logger.Warn("failed to remove staging directory after abort", "staging", dir, "error", err)
	}
}
