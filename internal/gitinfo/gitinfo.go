// Package gitinfo extracts per-page metadata from the enclosing git
// repository: the most recent commit touching a source file supplies
// last-modified and commit values for the theme. Everything here is
// best-effort; a project outside any repository simply gets no metadata.
package gitinfo

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/rocket/internal/logfields"
)

// Info is the last-commit metadata for one source file.
type Info struct {
	LastMod time.Time
	Commit  string
}

// Repo wraps an opened git work tree for page metadata lookups.
type Repo struct {
	repo   *git.Repository
	root   string
	logger *slog.Logger
}

// Open finds the git work tree enclosing dir. Not being inside a
// repository is an expected condition, reported as ok=false.
func Open(dir string, logger *slog.Logger) (*Repo, bool) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		logger.Debug("no git repository found", logfields.Source(dir), logfields.Error(err))
		return nil, false
	}

	wt, err := repo.Worktree()
	if err != nil {
		logger.Debug("git repository has no work tree", logfields.Source(dir), logfields.Error(err))
		return nil, false
	}

	return &Repo{repo: repo, root: wt.Filesystem.Root(), logger: logger}, true
}

// FileInfo returns the most recent commit metadata for the given file.
// Uncommitted or untracked files report ok=false.
func (r *Repo) FileInfo(path string) (Info, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{}, false
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return Info{}, false
	}
	rel = filepath.ToSlash(rel)

	iter, err := r.repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		r.logger.Debug("git log failed", logfields.Source(rel), logfields.Error(err))
		return Info{}, false
	}
	defer iter.Close()

	commit, err := iter.Next()
	if err != nil {
		return Info{}, false
	}

	return Info{
		LastMod: commit.Committer.When,
		Commit:  commit.Hash.String(),
	}, true
}
