// Package retention implements component I: age-based deletion of
// backup artifacts with hard safety invariants. Grounded directly on
// internal/retention/retention.go (Policy, CleanupResult, oldest-first
// sort) and internal/security/retention.go's "never delete below a
// floor" posture, generalized to a stronger "never delete everything"
// SafetyAbort and to file-tree artifacts (directories and zips)
// instead of database dump files.
package retention

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/example/fileguardian/internal/errs"
)

// Artifact is one backup artifact candidate for deletion.
type Artifact struct {
	BackupID string // "<backup_name>_<timestamp>"
	Path     string // directory or .zip path
	Created  time.Time
}

// Result reports what Cleanup did.
type Result struct {
	Deleted     []string `json:"deleted"`
	Retained    []string `json:"retained"`
	AbortReason string   `json:"abort_reason,omitempty"`
}

// Options configures a Cleanup run.
type Options struct {
	Destination    string
	RetentionDays  int // 0 or negative is treated as "never delete" (infinite retention)
	NameFilter     string
	Now            func() time.Time // EngineContext.Clock; defaults to time.Now
}

// Discover enumerates backup artifacts directly under dest, skipping
// the states/ directory, and reports their creation time (directory
// mtime, or file mtime for archives).
func Discover(dest string) ([]Artifact, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "read destination directory")
	}

	var artifacts []Artifact
	for _, e := range entries {
		name := e.Name()
		if name == "states" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backupID := strings.TrimSuffix(name, ".zip")
		artifacts = append(artifacts, Artifact{
			BackupID: backupID,
			Path:     filepath.Join(dest, name),
			Created:  info.ModTime(),
		})
	}
	return artifacts, nil
}

// Cleanup deletes every artifact older than opts.RetentionDays,
// refusing to proceed if that would remove every artifact currently
// present (SafetyAbort: "possible clock skew"), and never traversing
// outside opts.Destination.
func Cleanup(opts Options) (*Result, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	absDest, err := filepath.Abs(opts.Destination)
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "resolve destination")
	}

	artifacts, err := Discover(absDest)
	if err != nil {
		return nil, err
	}

	var candidates []Artifact
	for _, a := range artifacts {
		if opts.NameFilter != "" && !strings.Contains(a.BackupID, opts.NameFilter) {
			continue
		}
		candidates = append(candidates, a)
	}

	if opts.RetentionDays <= 0 {
		res := &Result{}
		for _, a := range artifacts {
			res.Retained = append(res.Retained, a.BackupID)
		}
		return res, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Created.Before(candidates[j].Created) })

	cutoff := now().AddDate(0, 0, -opts.RetentionDays)
	var toDelete []Artifact
	for _, a := range candidates {
		if a.Created.Before(cutoff) {
			toDelete = append(toDelete, a)
		}
	}

	if len(artifacts) > 0 && len(toDelete) == len(artifacts) {
		return nil, errs.New(errs.SafetyAbort, "retention would delete every backup artifact in the destination; possible clock skew, aborting with zero deletions")
	}

	result := &Result{}
	deletedIDs := make(map[string]bool, len(toDelete))
	for _, a := range toDelete {
		if err := removeWithinRoot(absDest, a.Path); err != nil {
			return nil, err
		}
		result.Deleted = append(result.Deleted, a.BackupID)
		deletedIDs[a.BackupID] = true
	}
	for _, a := range candidates {
		if !deletedIDs[a.BackupID] {
			result.Retained = append(result.Retained, a.BackupID)
		}
	}

	if err := pruneOrphanedState(absDest, deletedIDs, artifacts); err != nil {
		return nil, err
	}

	return result, nil
}

// removeWithinRoot deletes path (file or directory), refusing to touch
// anything outside root.
func removeWithinRoot(root, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errs.Wrap(errs.IOFailure, err, "resolve artifact path")
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errs.Newf(errs.SafetyAbort, "refusing to delete path outside destination: %q", path)
	}
	if err := os.RemoveAll(absPath); err != nil {
		return errs.Wrapf(errs.IOFailure, err, "delete artifact %s", path)
	}
	return nil
}

// pruneOrphanedState removes <backup-id>.json state files for deleted
// artifacts, but never latest.json or prev.json, and never a state
// file for an artifact that still exists (e.g. excluded by NameFilter).
func pruneOrphanedState(dest string, deletedIDs map[string]bool, allArtifacts []Artifact) error {
	statesDir := filepath.Join(dest, "states")
	entries, err := os.ReadDir(statesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.IOFailure, err, "read states directory")
	}

	stillReferenced := make(map[string]bool, len(allArtifacts))
	for _, a := range allArtifacts {
		if !deletedIDs[a.BackupID] {
			stillReferenced[a.BackupID] = true
		}
	}

	for _, e := range entries {
		name := e.Name()
		if name == "latest.json" || name == "prev.json" || name == ".lock" {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if deletedIDs[id] && !stillReferenced[id] {
			if err := os.Remove(filepath.Join(statesDir, name)); err != nil && !os.IsNotExist(err) {
				return errs.Wrapf(errs.IOFailure, err, "remove orphaned state file %s", name)
			}
		}
	}
	return nil
}
