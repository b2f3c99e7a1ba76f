// Package validation provides input validation functions shared across the
// plan engine and git session packages. This package has no dependencies on
// the rest of the module to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ValidateSessionID validates that a session ID doesn't contain path separators.
// This prevents path traversal attacks when session IDs are used in file paths,
// e.g. the git session store's <config-root>/git-sessions/<sessionId>.json.
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid session ID %q: contains path separators", id)
	}
	return nil
}

// ValidatePlanPath validates a plan file change path against the safety
// gate's rules: must be relative, must not escape via "..", and must not
// exceed maxLen bytes.
func ValidatePlanPath(p string, maxLen int) error {
	if p == "" {
		return errors.New("path cannot be empty")
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "/") || hasWindowsDrive(p) {
		return fmt.Errorf("path %q is absolute", p)
	}
	cleaned := path.Clean(filepathToSlash(p))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(p, "..") {
		return fmt.Errorf("path %q escapes the repository root", p)
	}
	if len(p) > maxLen {
		return fmt.Errorf("path %q exceeds max length %d", p, maxLen)
	}
	return nil
}

func hasWindowsDrive(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
