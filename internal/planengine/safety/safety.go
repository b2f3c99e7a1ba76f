// Package safety implements the Plan Safety Gate (C6): the deterministic
// validation and redaction pass applied to AI-proposed changes after JSON
// parsing and before persistence.
package safety

import (
	"fmt"
	"strings"

	"github.com/codepunk/cli/internal/config"
	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/codepunk/cli/internal/validation"
)

const (
	DiagnosticUnsafePath         = "UnsafePath"
	DiagnosticSecretRedacted     = "SecretRedacted"
	DiagnosticTruncatedContent   = "TruncatedContent"
	DiagnosticTruncatedAggregate = "TruncatedAggregate"
)

// ErrTooManyFiles is returned by CheckFileCount when count exceeds the
// configured maximum; the caller must produce no plan in this case.
type ErrTooManyFiles struct {
	Count int
	Max   int
}

func (e *ErrTooManyFiles) Error() string {
	return fmt.Sprintf("File count %d exceeds limit %d", e.Count, e.Max)
}

// Apply runs the full gate pipeline over files in order: file count, path
// safety, secret redaction, per-file truncation, aggregate truncation. It
// mutates files in place and returns the union of diagnostics added
// (generation.safetyFlags), or an error if the whole generation must be
// aborted (TooManyFiles).
func Apply(files []planstore.PlanFileChange, opts config.SafetyOptions) ([]string, error) {
	if err := CheckFileCount(len(files), opts); err != nil {
		return nil, err
	}

	flagSet := map[string]bool{}

	for i := range files {
		f := &files[i]
		validatePathSafety(f, opts)
		redactSecrets(f, opts)
		truncatePerFile(f, opts)
		for _, d := range f.Diagnostics {
			flagSet[d] = true
		}
	}

	truncateAggregate(files, opts, flagSet)

	flags := make([]string, 0, len(flagSet))
	for d := range flagSet {
		flags = append(flags, d)
	}
	return flags, nil
}

// CheckFileCount returns ErrTooManyFiles if count exceeds opts.MaxFiles.
func CheckFileCount(count int, opts config.SafetyOptions) error {
	if opts.MaxFiles > 0 && count > opts.MaxFiles {
		return &ErrTooManyFiles{Count: count, Max: opts.MaxFiles}
	}
	return nil
}

// validatePathSafety marks f with DiagnosticUnsafePath if its path is
// absolute, escapes the repo root, or exceeds maxPathLength. The entry is
// retained for reporting; apply-time code must refuse entries carrying this
// diagnostic.
func validatePathSafety(f *planstore.PlanFileChange, opts config.SafetyOptions) {
	if err := validation.ValidatePlanPath(f.Path, opts.MaxPathLength); err != nil {
		f.AddDiagnostic(DiagnosticUnsafePath)
	}
}

// redactSecrets replaces each configured secret pattern occurring in
// f.Rationale (case-insensitive substring match) with "<REDACTED>".
func redactSecrets(f *planstore.PlanFileChange, opts config.SafetyOptions) {
	if f.Rationale == "" {
		return
	}
	redacted := f.Rationale
	changed := false
	for _, pattern := range opts.SecretPatterns {
		if pattern == "" {
			continue
		}
		if replaced, did := replaceCaseInsensitive(redacted, pattern, "<REDACTED>"); did {
			redacted = replaced
			changed = true
		}
	}
	if changed {
		f.Rationale = redacted
		f.AddDiagnostic(DiagnosticSecretRedacted)
	}
}

func replaceCaseInsensitive(s, pattern, replacement string) (string, bool) {
	lowerS := strings.ToLower(s)
	lowerPattern := strings.ToLower(pattern)
	if !strings.Contains(lowerS, lowerPattern) {
		return s, false
	}
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(lowerS[i:], lowerPattern)
		if idx < 0 {
			b.WriteString(s[i:])
			break
		}
		abs := i + idx
		b.WriteString(s[i:abs])
		b.WriteString(replacement)
		i = abs + len(pattern)
	}
	return b.String(), true
}

// truncatePerFile truncates f.Rationale to opts.MaxPerFileBytes UTF-8 bytes,
// walking back past continuation bytes to avoid splitting a rune, appending
// an ellipsis and adding DiagnosticTruncatedContent.
func truncatePerFile(f *planstore.PlanFileChange, opts config.SafetyOptions) {
	if opts.MaxPerFileBytes <= 0 || len(f.Rationale) <= opts.MaxPerFileBytes {
		return
	}
	f.Rationale = truncateUTF8(f.Rationale, opts.MaxPerFileBytes) + "..."
	f.AddDiagnostic(DiagnosticTruncatedContent)
}

// truncateUTF8 truncates s to at most n bytes on a valid UTF-8 boundary.
func truncateUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && isUTF8Continuation(s[n]) {
		n--
	}
	return s[:n]
}

func isUTF8Continuation(b byte) bool {
	return b&0xC0 == 0x80
}

// truncateAggregate maintains a running total of retained per-file rationale
// bytes (each capped at MaxPerFileBytes already). Once the running total
// would exceed MaxTotalBytes, the current entry's rationale is cut to the
// remaining budget on a UTF-8 boundary and marked
// DiagnosticTruncatedAggregate, and all subsequent entries are dropped
// (their rationale cleared), so the retained total never exceeds
// MaxTotalBytes.
func truncateAggregate(files []planstore.PlanFileChange, opts config.SafetyOptions, flagSet map[string]bool) {
	if opts.MaxTotalBytes <= 0 {
		return
	}
	total := 0
	dropping := false
	for i := range files {
		f := &files[i]
		if dropping {
			f.Rationale = ""
			continue
		}
		n := len(f.Rationale)
		if total+n > opts.MaxTotalBytes {
			f.Rationale = truncateUTF8(f.Rationale, opts.MaxTotalBytes-total)
			f.AddDiagnostic(DiagnosticTruncatedAggregate)
			flagSet[DiagnosticTruncatedAggregate] = true
			dropping = true
			continue
		}
		total += n
	}
}
