package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
)

// runNew scaffolds a fresh project under parent/name: a config file, two
// starter pages, and a minimal theme.
func runNew(parent, name string, logger *slog.Logger) error {
	if !validProjectName(name) {
		return rerrors.New(rerrors.CategoryValidation, rerrors.SeverityError,
			"project name must contain only letters and digits").
			WithContext("name", name)
	}

	root := filepath.Join(parent, name)
	if _, err := os.Stat(root); err == nil {
		return rerrors.New(rerrors.CategoryFileSystem, rerrors.SeverityError,
			fmt.Sprintf("directory %q already exists", root))
	}

	files := map[string]string{
		"config.yaml":          fmt.Sprintf(starterConfig, name),
		"content/index.rocket": starterIndex,
		"content/about.rocket": starterAbout,
		"theme/default.html":   starterTheme,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return rerrors.FileSystemError("create project directory", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return rerrors.FileSystemError("write starter file", err)
		}
	}

	logger.Info("project created", "dir", root)
	fmt.Printf("Created %s. Next:\n\n  cd %s\n  rocket serve --watch\n", root, name)
	return nil
}

// validProjectName accepts names made of letters and digits only, matching
// the directory name the project will live in.
func validProjectName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
