// Package security validates names and paths that reach the filesystem.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateArtifactName rejects logical artifact names that are not plain file
// stems. Names are joined onto search roots, so separators, traversal and
// hidden-file prefixes are never accepted.
func ValidateArtifactName(name string) error {
	if name == "" {
		return fmt.Errorf("artifact name is empty")
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("artifact name %q must not start with a dot", name)
	}
	if len(name) > maxArtifactNameLen {
		return fmt.Errorf("artifact name %q is longer than %d characters", name, maxArtifactNameLen)
	}
	for _, r := range name {
		if !isNameRune(r) {
			return fmt.Errorf("artifact name %q contains characters outside [A-Za-z0-9._-]", name)
		}
	}
	return nil
}

const maxArtifactNameLen = 128

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
}

// ValidatePathWithinDirectory checks that filePath, after cleaning and
// symlink resolution, stays inside safeDir. For paths that do not exist yet
// the nearest existing parent is resolved instead, so a symlinked parent
// cannot be used to escape.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}

	canonicalPath := canonicalize(absPath)

	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	relPath, err := filepath.Rel(canonicalSafeDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// canonicalize resolves symlinks in absPath, or in its nearest existing
// ancestor when absPath itself does not exist.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for check := absPath; ; {
		parent := filepath.Dir(check)
		if parent == check {
			return absPath
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, absPath)
			return filepath.Join(resolved, rel)
		}
		check = parent
	}
}

// ValidateOutputDir checks that dir lies within the working directory or the
// system temp directory. Tools that write artifacts call this first.
func ValidateOutputDir(dir string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	for _, allowed := range []string{cwd, os.TempDir()} {
		if ValidatePathWithinDirectory(dir, allowed) == nil {
			return nil
		}
	}
	return fmt.Errorf("output directory %s must be within %s or %s", dir, cwd, os.TempDir())
}

// SanitizeFilename makes a safe filename from an arbitrary string. Characters
// other than ASCII letters, digits, dot, underscore or dash become a single
// underscore, the result is capped at 128 bytes and trimmed of leading or
// trailing dots and underscores.
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxArtifactNameLen {
			break
		}
		switch {
		case isNameRune(r):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
