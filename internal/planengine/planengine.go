// Package planengine implements the Plan Engine (C5): staging, diffing, and
// applying multi-file changes recorded in a PlanRecord. It owns no storage
// of its own — every mutation is read from and saved back through a
// planstore.Store.
package planengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codepunk/cli/internal/planengine/contenthash"
	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/codepunk/cli/internal/planengine/unifieddiff"
	"github.com/codepunk/cli/internal/redact"
)

// Engine is the Plan Engine (C5).
type Engine struct {
	store *planstore.Store
	// RepoRoot is the directory staged paths are resolved relative to.
	RepoRoot string
}

// New returns an Engine backed by store, resolving staged paths relative to
// repoRoot.
func New(store *planstore.Store, repoRoot string) *Engine {
	return &Engine{store: store, RepoRoot: repoRoot}
}

func strPtr(s string) *string { return &s }

// Create writes a new empty PlanRecord with the given goal and returns its id.
func (e *Engine) Create(ctx context.Context, goal string) (string, error) {
	id, err := planstore.NewPlanID(time.Now())
	if err != nil {
		return "", err
	}
	def := planstore.PlanDefinition{
		ID:         id,
		Goal:       goal,
		CreatedUtc: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := e.store.Create(ctx, def); err != nil {
		return "", err
	}
	return id, nil
}

// StageOptions controls one Stage call.
type StageOptions struct {
	Path         string
	AfterContent *string
	IsDelete     bool
	Rationale    string
}

// Stage adds or replaces a file entry in the plan identified by planID:
//   - isDelete: snapshot beforeContent from disk if present, record a
//     deletion marker diff.
//   - afterContent present: snapshot beforeContent, compute both hashes,
//     build a unified diff.
//   - otherwise: snapshot-only, no afterContent/diff.
func (e *Engine) Stage(ctx context.Context, planID string, opts StageOptions) error {
	rec, err := e.store.Load(ctx, planID)
	if err != nil {
		return err
	}

	change := planstore.PlanFileChange{
		Path:      opts.Path,
		Rationale: opts.Rationale,
		IsDelete:  opts.IsDelete,
	}

	onDisk, existed, err := e.readFile(opts.Path)
	if err != nil {
		return err
	}

	switch {
	case opts.IsDelete:
		if existed {
			change.BeforeContent = strPtr(onDisk)
			change.HashBefore = contenthash.SHA256Hex(onDisk)
		}
		change.Diff = fmt.Sprintf(unifieddiff.DeleteMarker, opts.Path)
	case opts.AfterContent != nil:
		change.BeforeContent = strPtr(onDisk)
		change.AfterContent = opts.AfterContent
		change.HashBefore = contenthash.SHA256Hex(onDisk)
		change.HashAfter = contenthash.SHA256Hex(*opts.AfterContent)
		change.Diff = unifieddiff.Unified(opts.Path, onDisk, *opts.AfterContent)
	default:
		change.BeforeContent = strPtr(onDisk)
		change.HashBefore = contenthash.SHA256Hex(onDisk)
	}

	rec.Files = upsertFile(rec.Files, change)
	return e.store.Save(ctx, rec)
}

func upsertFile(files []planstore.PlanFileChange, change planstore.PlanFileChange) []planstore.PlanFileChange {
	for i, f := range files {
		if f.Path == change.Path {
			files[i] = change
			return files
		}
	}
	return append(files, change)
}

func (e *Engine) readFile(relPath string) (content string, existed bool, err error) {
	abs := filepath.Join(e.RepoRoot, relPath)
	data, err := os.ReadFile(abs) //nolint:gosec // path validated by the safety gate before apply; staging reads are advisory
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", relPath, err)
	}
	return string(data), true, nil
}

// Diff returns the per-file diff strings for a plan.
func (e *Engine) Diff(ctx context.Context, planID string) (map[string]string, error) {
	rec, err := e.store.Load(ctx, planID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rec.Files))
	for _, f := range rec.Files {
		out[f.Path] = f.Diff
	}
	return out, nil
}

// FileOutcome is the apply-time result for one file.
type FileOutcome struct {
	Path       string `json:"path"`
	Action     string `json:"action"`
	HadDrift   bool   `json:"hadDrift"`
	BackupPath string `json:"backupPath,omitempty"`
}

// ApplySummary is the aggregate counts returned by Apply.
type ApplySummary struct {
	Applied  int `json:"applied"`
	Skipped  int `json:"skipped"`
	Drift    int `json:"drift"`
	BackedUp int `json:"backedUp"`
}

// Apply actions, enumerated; no other values are permitted.
const (
	ActionApplied       = "applied"
	ActionDryRun        = "dry-run"
	ActionDeleted       = "deleted"
	ActionDryRunDelete  = "dry-run-delete"
	ActionSkipMissing   = "skip-missing"
	ActionSkippedDrift  = "skipped-drift"
	ActionSkippedError  = "skipped-error"
	ActionDeleteError   = "delete-error"
)

// Apply runs the plan's staged changes against RepoRoot, per file in stored
// order. A per-file error never aborts the run. Entries carrying the
// UnsafePath diagnostic are always refused regardless of force.
func (e *Engine) Apply(ctx context.Context, planID string, dryRun, force bool) (ApplySummary, []FileOutcome, error) {
	rec, err := e.store.Load(ctx, planID)
	if err != nil {
		return ApplySummary{}, nil, err
	}

	var summary ApplySummary
	outcomes := make([]FileOutcome, 0, len(rec.Files))
	backupDir := ""
	timestamp := time.Now().UTC().Format("20060102150405")

	ensureBackupDir := func() (string, error) {
		if backupDir != "" {
			return backupDir, nil
		}
		dir := e.store.BackupDir(planID, timestamp)
		if !dryRun {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("creating backup directory: %w", err)
			}
		}
		backupDir = dir
		return backupDir, nil
	}

	for _, f := range rec.Files {
		if f.AfterContent == nil && !f.IsDelete {
			// Snapshot-only entry: pass-through informational, never modifies
			// the workspace and never appears in the apply report.
			continue
		}
		outcome := e.applyOne(ctx, f, dryRun, force, ensureBackupDir)
		outcomes = append(outcomes, outcome)
		tally(&summary, outcome)
	}

	if err := e.store.Save(ctx, rec); err != nil {
		return summary, outcomes, err
	}
	return summary, outcomes, nil
}

func tally(summary *ApplySummary, o FileOutcome) {
	if o.HadDrift {
		summary.Drift++
	}
	switch o.Action {
	case ActionApplied:
		summary.Applied++
		if o.BackupPath != "" {
			summary.BackedUp++
		}
	case ActionDeleted:
		if o.BackupPath != "" {
			summary.BackedUp++
		}
	case ActionSkippedDrift, ActionSkipMissing, ActionSkippedError, ActionDeleteError:
		summary.Skipped++
	}
}

func (e *Engine) applyOne(_ context.Context, f planstore.PlanFileChange, dryRun, force bool, ensureBackupDir func() (string, error)) FileOutcome {
	outcome := FileOutcome{Path: f.Path}

	if hasDiagnostic(f.Diagnostics, "UnsafePath") {
		outcome.Action = ActionSkippedError
		return outcome
	}

	abs := filepath.Join(e.RepoRoot, f.Path)
	currentContent, existed, readErr := e.readFile(f.Path)

	if f.HashBefore != "" && existed {
		currentHash := contenthash.SHA256Hex(currentContent)
		if currentHash != f.HashBefore {
			outcome.HadDrift = true
			if !force {
				outcome.Action = ActionSkippedDrift
				return outcome
			}
		}
	}

	switch {
	case f.IsDelete:
		if dryRun {
			outcome.Action = ActionDryRunDelete
			return outcome
		}
		if !existed {
			outcome.Action = ActionSkipMissing
			return outcome
		}
		dir, err := ensureBackupDir()
		if err != nil {
			outcome.Action = ActionDeleteError
			return outcome
		}
		if err := backupFile(dir, f.Path, currentContent); err != nil {
			outcome.Action = ActionDeleteError
			return outcome
		}
		if err := os.Remove(abs); err != nil {
			outcome.Action = ActionDeleteError
			return outcome
		}
		outcome.Action = ActionDeleted
		outcome.BackupPath = filepath.Join(dir, f.Path)
		return outcome

	case f.AfterContent != nil:
		if readErr != nil {
			outcome.Action = ActionSkippedError
			return outcome
		}
		if dryRun {
			outcome.Action = ActionDryRun
			return outcome
		}
		dir, err := ensureBackupDir()
		if err != nil {
			outcome.Action = ActionSkippedError
			return outcome
		}
		if existed {
			if err := backupFile(dir, f.Path, currentContent); err != nil {
				outcome.Action = ActionSkippedError
				return outcome
			}
			outcome.BackupPath = filepath.Join(dir, f.Path)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			outcome.Action = ActionSkippedError
			return outcome
		}
		tmp := abs + ".tmp"
		if err := os.WriteFile(tmp, []byte(*f.AfterContent), 0o644); err != nil { //nolint:gosec // plan-produced content written to the user's own repo
			outcome.Action = ActionSkippedError
			return outcome
		}
		if err := os.Rename(tmp, abs); err != nil {
			outcome.Action = ActionSkippedError
			return outcome
		}
		outcome.Action = ActionApplied
		return outcome

	default:
		// Unreachable: Apply filters out snapshot-only entries before calling
		// applyOne.
		return outcome
	}
}

func backupFile(backupDir, relPath, content string) error {
	dest := filepath.Join(backupDir, relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(content), 0o644) //nolint:gosec // backup mirrors source file permissions closely enough for recovery
}

func hasDiagnostic(diags []string, want string) bool {
	for _, d := range diags {
		if d == want {
			return true
		}
	}
	return false
}

// AttachFiles appends generator-produced files to the plan's record without
// running Stage's disk-snapshot logic; used by the AI Plan Generator (C7)
// after the safety gate has already run over the files. Rationale text gets
// one more entropy/pattern-based scrub on top of the safety gate's literal
// secret-pattern matching, since model-authored text can contain secret
// shapes the configured literal patterns don't cover.
func (e *Engine) AttachFiles(ctx context.Context, planID string, files []planstore.PlanFileChange, generation *planstore.PlanGeneration) error {
	rec, err := e.store.Load(ctx, planID)
	if err != nil {
		return err
	}
	for i := range files {
		if redacted := redact.String(files[i].Rationale); redacted != files[i].Rationale {
			files[i].Rationale = redacted
			files[i].AddDiagnostic("SecretRedacted")
		}
	}
	rec.Files = append(rec.Files, files...)
	rec.Generation = generation
	return e.store.Save(ctx, rec)
}
