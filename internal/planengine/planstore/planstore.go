// Package planstore persists PlanRecords and their index under
// <config-root>/plans/. It owns the on-disk layout exclusively; callers
// (the Plan Engine) mutate records in memory and hand them back here to
// save atomically.
//
// Layout:
//
//	<config-root>/plans/
//	  index.json                           -- []PlanDefinition
//	  <planId>.json                         -- PlanRecord
//	  backups/<planId>-<yyyyMMddHHmmss>/    -- originals from one apply run
package planstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/codepunk/cli/internal/jsonutil"
)

// ErrNotFound is returned when a planId has no matching record.
var ErrNotFound = errors.New("plan not found")

// PlanDefinition is the header stored in index.json.
type PlanDefinition struct {
	ID        string `json:"id"`
	Goal      string `json:"goal"`
	CreatedUtc string `json:"createdUtc"`
}

// PlanFileChange is one staged file entry within a PlanRecord.
type PlanFileChange struct {
	Path          string   `json:"path"`
	BeforeContent *string  `json:"beforeContent,omitempty"`
	AfterContent  *string  `json:"afterContent,omitempty"`
	HashBefore    string   `json:"hashBefore,omitempty"`
	HashAfter     string   `json:"hashAfter,omitempty"`
	Diff          string   `json:"diff,omitempty"`
	Rationale     string   `json:"rationale,omitempty"`
	IsDelete      bool     `json:"isDelete"`
	Generated     bool     `json:"generated"`
	Diagnostics   []string `json:"diagnostics,omitempty"`
}

// AddDiagnostic appends d to the entry's diagnostics if not already present.
func (f *PlanFileChange) AddDiagnostic(d string) {
	if slicesContains(f.Diagnostics, d) {
		return
	}
	f.Diagnostics = append(f.Diagnostics, d)
}

func slicesContains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// TokenUsage is the approximate-or-reported token usage attached to a
// PlanSummary or PlanGeneration.
type TokenUsage struct {
	SampleChars  int `json:"sampleChars"`
	ApproxTokens int `json:"approxTokens"`
}

// PlanSummary records provenance when a plan was seeded from a session
// transcript (plan create --from-session).
type PlanSummary struct {
	Source         string     `json:"source"`
	Goal           string     `json:"goal"`
	CandidateFiles []string   `json:"candidateFiles"`
	Rationale      string     `json:"rationale,omitempty"`
	UsedMessages   int        `json:"usedMessages"`
	TotalMessages  int        `json:"totalMessages"`
	Truncated      bool       `json:"truncated"`
	TokenUsage     TokenUsage `json:"tokenUsage"`
}

// PlanGeneration records provenance for the AI-driven path.
type PlanGeneration struct {
	Provider         string   `json:"provider"`
	Model            string   `json:"model"`
	PromptTokens     *int     `json:"promptTokens,omitempty"`
	CompletionTokens *int     `json:"completionTokens,omitempty"`
	TotalTokens      *int     `json:"totalTokens,omitempty"`
	Iterations       int      `json:"iterations"`
	SafetyFlags      []string `json:"safetyFlags,omitempty"`
	CreatedUtc       string   `json:"createdUtc"`
}

// PlanRecord is the full persisted record for one plan.
type PlanRecord struct {
	Definition PlanDefinition  `json:"definition"`
	Files      []PlanFileChange `json:"files"`
	Summary    *PlanSummary    `json:"summary,omitempty"`
	Generation *PlanGeneration `json:"generation,omitempty"`
}

// Store is the Plan Store (C4).
type Store struct {
	root string // <config-root>/plans
}

// New returns a Store rooted at <configRoot>/plans.
func New(configRoot string) *Store {
	return &Store{root: filepath.Join(configRoot, "plans")}
}

func (s *Store) indexPath() string        { return filepath.Join(s.root, "index.json") }
func (s *Store) recordPath(id string) string { return filepath.Join(s.root, id+".json") }

// BackupDir returns the directory for one apply run's backups, given a
// timestamp formatted as yyyyMMddHHmmss.
func (s *Store) BackupDir(planID, timestamp string) string {
	return filepath.Join(s.root, "backups", planID+"-"+timestamp)
}

// NewPlanID generates an identifier of the form yyyyMMddHHmmss-xxxxxx,
// chronologically sortable without collisions within one second per process.
func NewPlanID(now time.Time) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating plan id suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102150405"), hex.EncodeToString(buf)), nil
}

func atomicWriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// LoadIndex reads index.json, reconstructing it by scanning *.json record
// files in the plans directory if the index itself is missing or corrupt.
func (s *Store) LoadIndex(_ context.Context) ([]PlanDefinition, error) {
	data, err := os.ReadFile(s.indexPath()) //nolint:gosec // path derived from config root
	if err == nil {
		var defs []PlanDefinition
		if jsonErr := json.Unmarshal(data, &defs); jsonErr == nil {
			return defs, nil
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading plan index: %w", err)
	}
	return s.rebuildIndex()
}

func (s *Store) rebuildIndex() ([]PlanDefinition, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []PlanDefinition{}, nil
		}
		return nil, fmt.Errorf("scanning plans directory: %w", err)
	}
	var defs []PlanDefinition
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == "index.json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, e.Name())) //nolint:gosec
		if err != nil {
			continue
		}
		var rec PlanRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		defs = append(defs, rec.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

func (s *Store) saveIndex(defs []PlanDefinition) error {
	return atomicWriteJSON(s.indexPath(), defs)
}

// Create writes a new empty PlanRecord and adds it to the index.
func (s *Store) Create(ctx context.Context, def PlanDefinition) (*PlanRecord, error) {
	rec := &PlanRecord{Definition: def}
	if err := s.Save(ctx, rec); err != nil {
		return nil, err
	}
	defs, err := s.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}
	defs = append(defs, def)
	if err := s.saveIndex(defs); err != nil {
		return nil, err
	}
	return rec, nil
}

// Load reads a PlanRecord by id. Records written before summary/generation/
// diagnostics fields existed load successfully with those fields nil/empty.
func (s *Store) Load(_ context.Context, id string) (*PlanRecord, error) {
	data, err := os.ReadFile(s.recordPath(id)) //nolint:gosec // path derived from config root + validated id
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading plan record %s: %w", id, err)
	}
	var rec PlanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing plan record %s: %w", id, err)
	}
	return &rec, nil
}

// Save atomically persists rec under its own record file. It does not touch
// the index; callers that create new plans use Create instead.
func (s *Store) Save(_ context.Context, rec *PlanRecord) error {
	return atomicWriteJSON(s.recordPath(rec.Definition.ID), rec)
}
