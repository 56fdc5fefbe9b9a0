package planner

import (
	"sort"
	"time"

	"github.com/example/fileguardian/internal/errs"
	"github.com/example/fileguardian/internal/metadata"
)

// Candidate is everything the chain resolver needs to know about one
// backup artifact without having extracted or verified it yet.
type Candidate struct {
	BackupID   string
	Type       metadata.BackupType
	Timestamp  time.Time
	ParentID   string // empty for Full
}

// ResolveChain selects the latest Full on or before target, followed
// by every Incremental strictly newer than that Full and no later
// than target, ordered chronologically. Grounded on
// other_examples' incremental_manager.go resolveRestoreChain: walk
// parent pointers with cycle detection, reverse to base-to-target
// order. Here the candidates are already flat (loaded from each
// artifact's .backup-metadata.json) so the walk is a sort plus a
// window filter rather than a linked-list traversal; ParentID is not
// consulted. The remaining guard rejects a window that contains the
// same backup id twice.
func ResolveChain(candidates []Candidate, target *time.Time) ([]Candidate, error) {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	cutoff := time.Now()
	if target != nil {
		cutoff = *target
	}

	var base *Candidate
	for i := range sorted {
		c := sorted[i]
		if c.Type == metadata.Full && !c.Timestamp.After(cutoff) {
			base = &sorted[i]
		}
	}
	if base == nil {
		return nil, errs.New(errs.StateCorruption, "no Full backup found at or before the requested point in time")
	}

	chain := []Candidate{*base}
	seen := map[string]bool{base.BackupID: true}

	for _, c := range sorted {
		if c.Type != metadata.Incremental {
			continue
		}
		if !c.Timestamp.After(base.Timestamp) || c.Timestamp.After(cutoff) {
			continue
		}
		if seen[c.BackupID] {
			return nil, errs.Newf(errs.StateCorruption, "cycle detected in backup chain at %q", c.BackupID)
		}
		seen[c.BackupID] = true
		chain = append(chain, c)
	}

	return chain, nil
}
