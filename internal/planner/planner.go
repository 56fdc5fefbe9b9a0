// Package planner decides Full vs Incremental and diffs two snapshots.
// Grounded on internal/backup/incremental.go's BackupType/ChangedFile
// shapes, generalized to a New/Modified/Deleted/Unchanged
// classification.
package planner

import (
	"github.com/example/fileguardian/internal/errs"
	"github.com/example/fileguardian/internal/logger"
	"github.com/example/fileguardian/internal/metadata"
	"github.com/example/fileguardian/internal/pathsafe"
	"github.com/example/fileguardian/internal/snapshot"
)

// Classification of a single relative path between two snapshots.
type Classification string

const (
	NewFile   Classification = "New"
	Modified  Classification = "Modified"
	Deleted   Classification = "Deleted"
	Unchanged Classification = "Unchanged"
)

// Diff is the result of comparing an old snapshot to a new one.
type Diff struct {
	New       []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// IsEmpty reports whether the diff contains no changes at all,
// used to verify the idempotence property Diff(s, s) == empty.
func (d Diff) IsEmpty() bool {
	return len(d.New) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// DiffSnapshots classifies every path across old and new by the rule:
// mtime alone never classifies as Modified, only content_hash or
// size_bytes differing does. Independently of the Snapshotter's own
// check at enumeration time, it re-checks the union of both
// snapshots' paths for case-only collisions: a prior snapshot and a
// freshly walked one can each be individually clean yet collide once
// combined, and a host that enumerated them case-sensitively gives no
// guarantee the eventual restore target will.
func DiffSnapshots(old, new *snapshot.Snapshot) (Diff, error) {
	var d Diff
	if old == nil {
		old = snapshot.New()
	}
	if new == nil {
		new = snapshot.New()
	}

	union := make([]string, 0, len(old.Entries)+len(new.Entries))
	union = append(union, old.SortedPaths()...)
	union = append(union, new.SortedPaths()...)
	if a, b, found := pathsafe.DetectCaseCollisions(union); found {
		return Diff{}, errs.Newf(errs.StateCorruption, "case-only path collision: %q vs %q", a, b)
	}

	for _, p := range new.SortedPaths() {
		ne := new.Entries[p]
		oe, existed := old.Entries[p]
		switch {
		case !existed:
			d.New = append(d.New, p)
		case ne.Unreadable || oe.Unreadable:
			d.Modified = append(d.Modified, p)
		case oe.ContentHash != ne.ContentHash || oe.SizeBytes != ne.SizeBytes:
			d.Modified = append(d.Modified, p)
		default:
			d.Unchanged = append(d.Unchanged, p)
		}
	}
	for _, p := range old.SortedPaths() {
		if _, stillPresent := new.Entries[p]; !stillPresent {
			d.Deleted = append(d.Deleted, p)
		}
	}
	return d, nil
}

// Decision is the outcome of deciding a run's backup type.
type Decision struct {
	Type    metadata.BackupType
	Warning string // non-empty when the caller's request was overridden
}

// DecideType implements the Full-vs-Incremental decision:
// a forced Full always wins; an Incremental request with no prior
// latest snapshot becomes a Full with a warning; otherwise
// an Incremental is produced against latest.
func DecideType(forceFull bool, requestIncremental bool, hasLatest bool) Decision {
	if forceFull || !requestIncremental {
		return Decision{Type: metadata.Full}
	}
	if !hasLatest {
		return Decision{Type: metadata.Full, Warning: "no prior backup found; producing a Full backup instead of the requested Incremental"}
	}
	return Decision{Type: metadata.Incremental}
}

// SelectedFiles returns the set of relative paths an Incremental (or
// Full) artifact must physically contain: New ∪ Modified for an
// Incremental, every path in new for a Full.
func SelectedFiles(backupType metadata.BackupType, new *snapshot.Snapshot, d Diff) []string {
	if backupType == metadata.Full {
		return new.SortedPaths()
	}
	out := make([]string, 0, len(d.New)+len(d.Modified))
	out = append(out, d.New...)
	out = append(out, d.Modified...)
	return out
}

// LogDiff emits a summary line for a completed diff, used by the
// engine after planning a run.
func LogDiff(log logger.Logger, d Diff) {
	log.Info("diff computed",
		"new", len(d.New),
		"modified", len(d.Modified),
		"deleted", len(d.Deleted),
		"unchanged", len(d.Unchanged),
	)
}
